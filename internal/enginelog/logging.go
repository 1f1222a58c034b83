// Package enginelog provides structured logging built on log/slog, mirroring
// the teacher's internal/logging package: a process-wide structured JSON
// sink and a human-readable sink, both driven off a single dynamic level.
//
// The audio thread (§5 of the design spec) must never block on I/O, so
// every call on the Pull/Process/Render hot paths is gated below TRACE in
// practice: callers should call ForService once at setup and hold the
// returned *slog.Logger rather than look it up per block.
package enginelog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

var (
	mu          sync.RWMutex
	initialized bool
	base        *slog.Logger
	level       = new(slog.LevelVar)
	fileCloser  io.Closer
)

// Config controls where structured logs are written.
type Config struct {
	// ConsoleEnabled writes human-readable text to stderr when true.
	ConsoleEnabled bool
	ConsoleLevel   slog.Level
	// FilePath, when non-empty, receives JSON logs rotated by lumberjack.
	FilePath   string
	FileLevel  slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig matches the teacher's conf/defaults.go values.
func DefaultConfig() Config {
	return Config{
		ConsoleEnabled: true,
		ConsoleLevel:   slog.LevelInfo,
		FilePath:       "",
		FileLevel:      slog.LevelInfo,
		MaxSizeMB:      100,
		MaxBackups:     10,
		MaxAgeDays:     30,
		Compress:       true,
	}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			if name, exists := levelNames[lvl]; exists {
				a.Value = slog.StringValue(name)
			}
		}
	}
	return a
}

// Init wires up the global logger. Safe to call more than once; later
// calls replace the sinks (used by tests and by config reloads).
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	if fileCloser != nil {
		_ = fileCloser.Close()
		fileCloser = nil
	}

	level.Set(cfg.ConsoleLevel)

	handlers := make([]slog.Handler, 0, 2)
	if cfg.ConsoleEnabled {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: replaceAttr,
		}))
	}
	if cfg.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		fileCloser = lj
		handlers = append(handlers, slog.NewJSONHandler(lj, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: replaceAttr,
		}))
	}

	var h slog.Handler
	switch len(handlers) {
	case 0:
		h = slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})
	case 1:
		h = handlers[0]
	default:
		h = &fanoutHandler{handlers: handlers}
	}

	base = slog.New(h)
	initialized = true
}

// ForService returns a logger scoped to a single component name, e.g.
// "wsola", "renderer", "player", "mixer". Matches the teacher's per-module
// logger convention.
func ForService(name string) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !initialized {
		return slog.Default().With("component", name)
	}
	return base.With("component", name)
}

// SetLevel adjusts the dynamic level without reinitializing sinks.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// fanoutHandler duplicates records to every wrapped handler. Kept tiny on
// purpose: this is a control-thread/setup concern, never called from the
// audio thread's steady-state path.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
