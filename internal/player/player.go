// Package player implements the Sound Player (§4.6): a component that
// pulls from a provider.Provider (commonly a Composition wrapped as a
// provider via CompositionProvider), optionally runs the pulled audio
// through a WSOLA stage when preserve_pitch is requested, or a direct
// linear resample otherwise, and writes the result onward to a mixer.
//
// Grounded on the teacher's internal/audiocore AudioSource/transport pair
// (Start/Stop/pause-via-running-flag) adapted to the spec's richer
// Stopped/Playing/Paused state machine, and on internal/wsola +
// internal/dsp for the two speed-change strategies (§4.6: "applies a WSOLA
// stage ... or direct resampling").
package player

import (
	"log/slog"
	"math"
	"sync"

	"github.com/LuoYun-Team/soundflow-engine/internal/composition"
	"github.com/LuoYun-Team/soundflow-engine/internal/dsp"
	"github.com/LuoYun-Team/soundflow-engine/internal/enginelog"
	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
	"github.com/LuoYun-Team/soundflow-engine/internal/provider"
	"github.com/LuoYun-Team/soundflow-engine/internal/wsola"
)

// State is the player's observable transport state (§4.6).
type State string

const (
	Stopped State = "stopped"
	Playing State = "playing"
	Paused  State = "paused"
)

// CompositionProvider adapts a *composition.Composition to provider.Provider
// so a Player can pull from it the same way it would from any decoder-backed
// source (§4.6: "often the composition renderer wrapped as a provider").
type CompositionProvider struct {
	comp     *composition.Composition
	onEOS    []func()
	onPos    []func(int64)
	firedEOS bool
}

// WrapComposition returns a Provider view of comp.
func WrapComposition(comp *composition.Composition) *CompositionProvider {
	return &CompositionProvider{comp: comp}
}

// Read pulls frameCount = len(out)/channels frames from the composition at
// its current play cursor and advances the cursor.
func (c *CompositionProvider) Read(out []float32) int {
	channels := c.comp.Format.Channels
	if channels <= 0 {
		channels = 1
	}
	frameCount := len(out) / channels
	if frameCount == 0 {
		return 0
	}
	if err := c.comp.Pull(frameCount, out[:frameCount*channels]); err != nil {
		return 0
	}
	pos := int64(c.comp.PlayCursor() * float64(c.comp.Format.SampleRateHz))
	for _, fn := range c.onPos {
		fn(pos)
	}
	total := c.comp.CalculateTotalDuration()
	if total > 0 && c.comp.PlayCursor() >= total && !c.firedEOS {
		c.firedEOS = true
		for _, fn := range c.onEOS {
			fn()
		}
	}
	return frameCount * channels
}

// LengthSamples returns the composition's total duration in raw
// (channel-multiplied) samples, matching MemoryProvider's convention so
// every Provider.LengthSamples/Seek pair shares one unit.
func (c *CompositionProvider) LengthSamples() int64 {
	frames := int64(c.comp.CalculateTotalDuration() * float64(c.comp.Format.SampleRateHz))
	return frames * int64(c.ChannelCount())
}
func (c *CompositionProvider) SampleRate() int   { return c.comp.Format.SampleRateHz }
func (c *CompositionProvider) ChannelCount() int { return c.comp.Format.Channels }
func (c *CompositionProvider) CanSeek() bool     { return true }

// Seek repositions the composition's play cursor to the given raw
// (channel-multiplied) sample offset.
func (c *CompositionProvider) Seek(sampleOffset int64) error {
	c.firedEOS = false
	channels := c.ChannelCount()
	if channels <= 0 {
		channels = 1
	}
	seconds := float64(sampleOffset) / float64(channels) / float64(c.comp.Format.SampleRateHz)
	return c.comp.Seek(seconds)
}

func (c *CompositionProvider) OnEndOfStream(fn func())                 { c.onEOS = append(c.onEOS, fn) }
func (c *CompositionProvider) OnPositionChanged(fn func(sampleOffset int64)) {
	c.onPos = append(c.onPos, fn)
}

// Player streams a Provider through an optional speed/stretch stage to
// whatever writes its Pull output onward (a Mixer input slot, §4.7).
type Player struct {
	mu sync.RWMutex

	src      provider.Provider
	channels int

	state         State
	timeSamples   int64 // position within the source, in frames
	playbackSpeed float64
	preservePitch bool
	volume        float64

	stretcher     *wsola.Stretcher
	stretchPreset wsola.Preset

	logger *slog.Logger
}

// New wraps src for playback. src's channel count fixes the player's
// channel count for its lifetime (matches §3: "a single composition and
// the player attached to it must share one format").
func New(src provider.Provider) *Player {
	return &Player{
		src:           src,
		channels:      src.ChannelCount(),
		state:         Stopped,
		playbackSpeed: 1.0,
		preservePitch: true,
		volume:        1.0,
		stretchPreset: wsola.Balanced,
		logger:        enginelog.ForService("player"),
	}
}

// Play transitions to Playing; a no-op from Playing.
func (p *Player) Play() {
	p.mu.Lock()
	p.state = Playing
	p.mu.Unlock()
}

// Pause transitions to Paused, retaining the current position.
func (p *Player) Pause() {
	p.mu.Lock()
	if p.state == Playing {
		p.state = Paused
	}
	p.mu.Unlock()
}

// Stop transitions to Stopped and rewinds to the start.
func (p *Player) Stop() {
	p.mu.Lock()
	p.state = Stopped
	p.timeSamples = 0
	if p.src.CanSeek() {
		_ = p.src.Seek(0)
	}
	if p.stretcher != nil {
		p.stretcher.Reset()
	}
	p.mu.Unlock()
}

// Seek repositions playback to an absolute time in seconds.
func (p *Player) Seek(timeSeconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.src.CanSeek() {
		return engineerr.Newf("source does not support seeking").
			Component("player").Kind(engineerr.KindInvalidOperation).Build()
	}
	frameOffset := int64(timeSeconds * float64(p.src.SampleRate()))
	offset := frameOffset * int64(p.channels)
	if err := p.src.Seek(offset); err != nil {
		return err
	}
	p.timeSamples = frameOffset
	if p.stretcher != nil {
		p.stretcher.Reset()
	}
	return nil
}

// State reports the current transport state.
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Time reports the current playback position in seconds.
func (p *Player) Time() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return float64(p.timeSamples) / float64(p.src.SampleRate())
}

// Duration reports the source's total length in seconds, or +Inf for an
// open (length-unknown) stream.
func (p *Player) Duration() float64 {
	n := p.src.LengthSamples()
	if n < 0 {
		return math.Inf(1)
	}
	return float64(n) / float64(p.src.SampleRate()*p.channels)
}

// SetPlaybackSpeed sets the playback speed multiplier (1.0 = normal).
func (p *Player) SetPlaybackSpeed(speed float64) error {
	if speed <= 0 {
		return engineerr.Newf("playback_speed must be positive, got %v", speed).
			Component("player").Kind(engineerr.KindValidation).Build()
	}
	p.mu.Lock()
	p.playbackSpeed = speed
	if p.stretcher != nil {
		_ = p.stretcher.SetSpeed(speed)
	}
	p.mu.Unlock()
	return nil
}

// PlaybackSpeed reports the current speed multiplier.
func (p *Player) PlaybackSpeed() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playbackSpeed
}

// SetPreservePitch toggles whether a non-unity speed runs through WSOLA
// (true) or a direct linear resample (false), per §4.6.
func (p *Player) SetPreservePitch(preserve bool) {
	p.mu.Lock()
	p.preservePitch = preserve
	p.mu.Unlock()
}

// SetVolume sets the player's output gain.
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
}

// Volume reports the player's current output gain.
func (p *Player) Volume() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume
}

// SetTimeStretchQuality reconfigures the internal WSOLA instance without
// dropping the audio context (§4.6): the stretcher's own Configure resets
// only its internal buffers, bounding any discontinuity to one window
// boundary rather than restarting the player.
func (p *Player) SetTimeStretchQuality(preset wsola.Preset) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stretchPreset = preset
	if p.stretcher == nil {
		return nil
	}
	return p.stretcher.ConfigurePreset(preset)
}

func (p *Player) ensureStretcher() error {
	if p.stretcher != nil {
		return nil
	}
	st, err := wsola.NewFromPreset(p.channels, p.stretchPreset)
	if err != nil {
		return err
	}
	if err := st.SetSpeed(p.playbackSpeed); err != nil {
		return err
	}
	p.stretcher = st
	return nil
}

// Pull writes frameCount frames (channels samples each) into out, honoring
// the current transport state: silence when Stopped/Paused, otherwise the
// source run through the speed/stretch stage (§4.6, §4.2).
func (p *Player) Pull(frameCount int, out []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range out {
		out[i] = 0
	}
	if p.state != Playing {
		return nil
	}

	speed := p.playbackSpeed
	if speed == 1.0 {
		n := p.src.Read(out[:frameCount*p.channels])
		p.timeSamples += int64(n / p.channels)
		dsp.ApplyVolume(out[:n], p.volume)
		if n < frameCount*p.channels {
			p.logger.Warn("player source starved", "requested", frameCount, "got", n/max1(p.channels))
		}
		return nil
	}

	if p.preservePitch {
		if err := p.ensureStretcher(); err != nil {
			return err
		}
		return p.pullStretched(frameCount, out)
	}
	return p.pullResampled(frameCount, speed, out)
}

// pullStretched drives the WSOLA stretcher until frameCount output frames
// have been produced, pulling source input on demand.
func (p *Player) pullStretched(frameCount int, out []float32) error {
	produced := 0
	scratch := make([]float32, p.stretcher.SynthesisHopFrames()*p.channels)
	srcBuf := make([]float32, p.stretcher.WindowFrames()*p.channels)

	for produced < frameCount {
		written, _, sourceRepresented := p.stretcher.Process(nil, scratch)
		if written == 0 {
			n := p.src.Read(srcBuf)
			if n == 0 {
				break
			}
			written, _, sourceRepresented = p.stretcher.Process(srcBuf[:n], scratch)
			if written == 0 {
				continue
			}
		}
		remain := frameCount - produced
		copyFrames := written / p.channels
		if copyFrames > remain {
			copyFrames = remain
		}
		copy(out[produced*p.channels:(produced+copyFrames)*p.channels], scratch[:copyFrames*p.channels])
		produced += copyFrames
		p.timeSamples += int64(sourceRepresented)
	}

	dsp.ApplyVolume(out[:produced*p.channels], p.volume)
	return nil
}

// pullResampled applies speed via direct linear interpolation, reading
// speed*frameCount source frames and squeezing them into frameCount output
// frames (§4.6: preserve_pitch=false path).
func (p *Player) pullResampled(frameCount int, speed float64, out []float32) error {
	srcFrames := int(float64(frameCount)*speed) + 1
	raw := make([]float32, srcFrames*p.channels)
	n := p.src.Read(raw)
	srcFramesRead := n / p.channels
	if srcFramesRead == 0 {
		return nil
	}
	ratio := float64(srcFramesRead) / float64(frameCount)
	dsp.LinearResample(raw[:srcFramesRead*p.channels], p.channels, frameCount, ratio, out)
	p.timeSamples += int64(srcFramesRead)
	dsp.ApplyVolume(out, p.volume)
	return nil
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
