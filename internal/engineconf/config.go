// Package engineconf holds process-wide engine configuration, grounded on
// the teacher's internal/conf package: a single Settings struct populated by
// spf13/viper from defaults plus an optional on-disk override, exposed
// through an explicit Load/Get pair rather than ambient global mutation.
package engineconf

import (
	"errors"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/spf13/viper"

	"github.com/LuoYun-Team/soundflow-engine/internal/enginelog"
	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
)

// AudioFormatConfig mirrors audioformat.Format's fields for serialization.
type AudioFormatConfig struct {
	SampleRateHz int    `mapstructure:"sample_rate_hz"`
	Channels     int    `mapstructure:"channels"`
	Layout       string `mapstructure:"layout"`
}

// LoggingConfig controls enginelog.Init.
type LoggingConfig struct {
	ConsoleEnabled bool   `mapstructure:"console_enabled"`
	ConsoleLevel   string `mapstructure:"console_level"`
	FilePath       string `mapstructure:"file_path"`
	FileLevel      string `mapstructure:"file_level"`
	MaxSizeMB      int    `mapstructure:"max_size_mb"`
	MaxBackups     int    `mapstructure:"max_backups"`
	MaxAgeDays     int    `mapstructure:"max_age_days"`
}

// CaptureConfig controls internal/capture's pre/post-roll ring buffer.
type CaptureConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	RetentionSecs  float64 `mapstructure:"retention_seconds"`
}

// Settings is the full process-wide configuration tree.
type Settings struct {
	Debug          bool              `mapstructure:"debug"`
	DefaultFormat  AudioFormatConfig `mapstructure:"default_format"`
	StretchPreset  string            `mapstructure:"stretch_preset"`
	BlockFrames    int               `mapstructure:"block_frames"`
	Logging        LoggingConfig     `mapstructure:"logging"`
	Capture        CaptureConfig     `mapstructure:"capture"`
	Device         DeviceConfig      `mapstructure:"device"`
}

// DeviceConfig holds device selection hints read from configuration. Nothing
// in this module passes it to device.Open, whose Config.Backend accepts ""
// (platform default), "alsa", "wasapi" or "coreaudio".
type DeviceConfig struct {
	Backend string `mapstructure:"backend"` // defaults to "null"
	Name    string `mapstructure:"name"`
}

var (
	mu       sync.RWMutex
	current  *Settings
	loadOnce sync.Once
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("default_format.sample_rate_hz", 48000)
	v.SetDefault("default_format.channels", 2)
	v.SetDefault("default_format.layout", "stereo")
	v.SetDefault("stretch_preset", "balanced")
	v.SetDefault("block_frames", 1024)

	v.SetDefault("logging.console_enabled", true)
	v.SetDefault("logging.console_level", "info")
	v.SetDefault("logging.file_path", "")
	v.SetDefault("logging.file_level", "info")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 10)
	v.SetDefault("logging.max_age_days", 30)

	v.SetDefault("capture.enabled", false)
	v.SetDefault("capture.retention_seconds", 10.0)

	v.SetDefault("device.backend", "null")
	v.SetDefault("device.name", "default")
}

// Load reads configuration from path (if non-empty and present) layered
// over defaults, stores it as the process-wide Settings, and returns it.
// Safe to call multiple times; each call replaces the stored Settings.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
				return nil, engineerr.New(err).Component("engineconf").Kind(engineerr.KindIO).
					Context("path", path).Build()
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, engineerr.New(err).Component("engineconf").Kind(engineerr.KindValidation).Build()
	}

	mu.Lock()
	current = &s
	mu.Unlock()

	return &s, nil
}

// Get returns the process-wide Settings, loading defaults on first use.
func Get() *Settings {
	loadOnce.Do(func() {
		if current == nil {
			_, _ = Load("")
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// ParseLevel maps the config's string levels to slog levels, including the
// engine's custom trace/fatal levels.
func ParseLevel(s string) slog.Level {
	switch s {
	case "trace":
		return enginelog.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "fatal":
		return enginelog.LevelFatal
	default:
		return slog.LevelInfo
	}
}

// ApplyLogging initializes enginelog from the Logging section.
func (s *Settings) ApplyLogging() {
	enginelog.Init(enginelog.Config{
		ConsoleEnabled: s.Logging.ConsoleEnabled,
		ConsoleLevel:   ParseLevel(s.Logging.ConsoleLevel),
		FilePath:       s.Logging.FilePath,
		FileLevel:      ParseLevel(s.Logging.FileLevel),
		MaxSizeMB:      s.Logging.MaxSizeMB,
		MaxBackups:     s.Logging.MaxBackups,
		MaxAgeDays:     s.Logging.MaxAgeDays,
		Compress:       true,
	})
}
