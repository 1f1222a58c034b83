// Package device drives a cross-platform playback device via
// tphakala/malgo, the teacher's own go.mod dependency for audio I/O. The
// teacher only ever opens malgo.Capture devices (its own audiocore
// sources pull microphone input); this engine is a playback engine, so
// Backend is generalized here to malgo.Playback and the Data callback is
// inverted: instead of malgo handing samples to the app
// (internal/audiocore/sources/malgo/malgo.go's onAudioData), the app
// pulls samples from a Source and hands them to malgo.
//
// Grounded on internal/audiocore/sources/malgo/device.go (backend
// selection, device enumeration/selection) and malgo.go (context/device
// lifecycle, DeviceCallbacks wiring, onDeviceStop telemetry pattern).
package device

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/getsentry/sentry-go"
	"github.com/tphakala/malgo"

	"github.com/LuoYun-Team/soundflow-engine/internal/enginelog"
	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
)

// Source is anything that can fill an interleaved float32 buffer on
// demand; internal/mixer.Mixer and internal/player.Player both satisfy
// this by construction, keeping the device package decoupled from them.
type Source interface {
	Pull(frameCount int, out []float32) error
}

// Info describes one enumerated playback device.
type Info struct {
	Index int
	Name  string
	ID    string
}

func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, engineerr.Newf("unsupported operating system %q", runtime.GOOS).
			Component("device").Kind(engineerr.KindUnsupportedFormat).Build()
	}
}

// Enumerate lists the playback devices malgo can see on this host.
func Enumerate() ([]Info, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}
	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, engineerr.New(err).Component("device").Kind(engineerr.KindHost).Build()
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, engineerr.New(err).Component("device").Kind(engineerr.KindHost).Build()
	}
	out := make([]Info, 0, len(infos))
	for i := range infos {
		out = append(out, Info{Index: i, Name: infos[i].Name(), ID: infos[i].ID.String()})
	}
	return out, nil
}

func selectDevice(infos []malgo.DeviceInfo, name string) (*malgo.DeviceInfo, error) {
	if name == "" || name == "default" {
		for i := range infos {
			if infos[i].IsDefault == 1 {
				return &infos[i], nil
			}
		}
		if len(infos) > 0 {
			return &infos[0], nil
		}
	}
	for i := range infos {
		if infos[i].Name() == name {
			return &infos[i], nil
		}
	}
	return nil, engineerr.Newf("no matching playback device for %q", name).
		Component("device").Kind(engineerr.KindNotFound).Build()
}

// Config configures the playback device opened by Open.
type Config struct {
	Backend      string // "" selects the platform default
	DeviceName   string // "" or "default" selects the system default
	SampleRate   int
	Channels     int
	BufferFrames int
}

// Playback owns a live malgo output device and feeds it by pulling from
// a Source on malgo's own real-time callback thread. The callback must
// never block or allocate; Pull is expected to honor that contract
// (internal/mixer.Mixer and internal/player.Player do).
type Playback struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	dev     *malgo.Device
	source  atomic.Pointer[Source]
	running atomic.Bool
	logger  *slog.Logger
}

func Open(cfg Config) (*Playback, error) {
	backend, err := resolveBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, engineerr.New(err).Component("device").Kind(engineerr.KindHost).Build()
	}

	infos, err := malgoCtx.Devices(malgo.Playback)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, engineerr.New(err).Component("device").Kind(engineerr.KindHost).Build()
	}
	target, err := selectDevice(infos, cfg.DeviceName)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.Playback.DeviceID = target.ID.Pointer()
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	if cfg.BufferFrames > 0 {
		deviceConfig.PeriodSizeInFrames = uint32(cfg.BufferFrames)
	}

	p := &Playback{ctx: malgoCtx, logger: enginelog.ForService("device")}

	callbacks := malgo.DeviceCallbacks{
		Data: p.onData,
		Stop: p.onStop,
	}
	dev, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		return nil, engineerr.New(err).Component("device").Kind(engineerr.KindHost).Build()
	}
	p.dev = dev
	return p, nil
}

func resolveBackend(name string) (malgo.Backend, error) {
	switch name {
	case "":
		return backendForPlatform()
	case "alsa":
		return malgo.BackendAlsa, nil
	case "wasapi":
		return malgo.BackendWasapi, nil
	case "coreaudio":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, engineerr.Newf("unknown backend %q", name).
			Component("device").Kind(engineerr.KindValidation).Build()
	}
}

// SetSource swaps the pull source used by the real-time callback. Safe
// to call from a control thread while the device is running.
func (p *Playback) SetSource(src Source) {
	p.source.Store(&src)
}

// Start begins playback; the device's internal callback thread will
// start invoking onData.
func (p *Playback) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.dev.Start(); err != nil {
		return engineerr.New(err).Component("device").Kind(engineerr.KindHost).Build()
	}
	p.running.Store(true)
	return nil
}

// Stop halts playback; safe to call even if already stopped.
func (p *Playback) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running.Load() {
		return nil
	}
	if err := p.dev.Stop(); err != nil {
		return engineerr.New(err).Component("device").Kind(engineerr.KindHost).Build()
	}
	p.running.Store(false)
	return nil
}

// Close releases the device and context. The Playback must not be used
// afterward.
func (p *Playback) Close() error {
	_ = p.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dev != nil {
		p.dev.Uninit()
	}
	if p.ctx != nil {
		if err := p.ctx.Uninit(); err != nil {
			return engineerr.New(err).Component("device").Kind(engineerr.KindHost).Build()
		}
	}
	return nil
}

// onData is malgo's real-time callback: it must fill output and must
// never block. It converts the raw byte buffer to a float32 view and
// pulls exactly one block from the current Source.
func (p *Playback) onData(output, _ []byte, frameCount uint32) {
	srcPtr := p.source.Load()
	if srcPtr == nil {
		return
	}
	out := bytesToFloat32(output)
	if err := (*srcPtr).Pull(int(frameCount), out); err != nil {
		p.logger.Warn("pull from source failed", "error", err)
	}
}

// bytesToFloat32 reinterprets a malgo-owned byte buffer (configured as
// malgo.FormatF32) as a float32 slice with no copy, since this runs on
// the real-time callback and must not allocate.
func bytesToFloat32(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	n := len(b) / 4
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}

// onStop fires when malgo's backend halts the device unexpectedly (e.g.
// the device was unplugged). This is reported to Sentry the way the
// teacher's error/telemetry layer reports CategoryAudio failures, since
// an unattended player losing its output device is exactly the kind of
// event §9's "fatal/device_stopped telemetry" note calls out.
func (p *Playback) onStop() {
	p.running.Store(false)
	sentry.CaptureMessage("playback device stopped unexpectedly")
	p.logger.Error("playback device stopped unexpectedly")
}
