// Package wsola implements the WSOLA time-stretcher (§4.2): pitch-preserved
// playback at arbitrary speed, driven entirely by pull — it never blocks on
// further input and produces at most one synthesis hop per iteration.
//
// Grounded on the teacher's real-time audio processing conventions
// (internal/audiocore's pull-style Process contract and per-block,
// allocation-free hot path) since no DSP time-stretcher exists in the
// retrieved pack; the algorithm itself follows spec.md §4.2 exactly.
package wsola

import (
	"log/slog"
	"math"

	"github.com/LuoYun-Team/soundflow-engine/internal/audiobuf"
	"github.com/LuoYun-Team/soundflow-engine/internal/enginelog"
	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
)

// Config describes the three WSOLA parameters, expressed in frames.
type Config struct {
	WindowFrames       int
	SynthesisHopFrames int
	SearchRadiusFrames int
}

// Preset names the built-in quality presets from §4.2.
type Preset string

const (
	Fast        Preset = "fast"
	Balanced    Preset = "balanced"
	HighQuality Preset = "highquality"
	Audiophile  Preset = "audiophile"
)

// Presets maps each named quality level to its Config, in frames.
var Presets = map[Preset]Config{
	Fast:        {WindowFrames: 1024, SynthesisHopFrames: 512, SearchRadiusFrames: 128},
	Balanced:    {WindowFrames: 2048, SynthesisHopFrames: 1024, SearchRadiusFrames: 256},
	HighQuality: {WindowFrames: 4096, SynthesisHopFrames: 2048, SearchRadiusFrames: 512},
	Audiophile:  {WindowFrames: 8192, SynthesisHopFrames: 4096, SearchRadiusFrames: 1024},
}

const (
	silenceEnergyFactor = 1e-7
	earlyAcceptNCC      = 0.995
	hysteresisNCC        = 0.02
)

// Stretcher is one WSOLA instance. It is not safe for concurrent use; each
// segment/player that needs time-stretching owns its own instance.
type Stretcher struct {
	channels int

	window       int
	synthesisHop int
	searchRadius int
	analysisHop  int
	targetSpeed  float64

	input *audiobuf.SampleBuffer
	// nominalPos is the absolute sample index (not frame index) into
	// input's coordinate space marking the start of the next analysis
	// window search.
	nominalPos int

	prevTail   []float32 // (window-synthesisHop)*channels
	curFrame   []float32 // window*channels scratch
	combined   []float32 // window*channels scratch
	pending    []float32 // synthesized audio not yet delivered to a caller
	pendingPos int

	isFirst    bool
	isFlushing bool

	logger *slog.Logger
}

// New builds a Stretcher for the given channel count and configuration.
func New(channels int, cfg Config) (*Stretcher, error) {
	s := &Stretcher{
		channels: 1,
		logger:   enginelog.ForService("wsola"),
	}
	if channels < 1 {
		channels = 1
	}
	s.channels = channels
	if err := s.Configure(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromPreset builds a Stretcher using one of the named quality presets.
func NewFromPreset(channels int, preset Preset) (*Stretcher, error) {
	cfg, ok := Presets[preset]
	if !ok {
		return nil, engineerr.Newf("unknown WSOLA preset %q", preset).
			Component("wsola").Kind(engineerr.KindValidation).Context("preset", string(preset)).Build()
	}
	return New(channels, cfg)
}

func validateConfig(cfg Config) error {
	if cfg.WindowFrames <= 0 || cfg.WindowFrames%2 != 0 {
		return engineerr.Newf("window must be a positive even number of frames, got %d", cfg.WindowFrames).
			Component("wsola").Kind(engineerr.KindValidation).Context("window", cfg.WindowFrames).Build()
	}
	if cfg.SynthesisHopFrames <= 0 || cfg.SynthesisHopFrames >= cfg.WindowFrames {
		return engineerr.Newf("synthesis hop must be in (0, window), got %d (window %d)", cfg.SynthesisHopFrames, cfg.WindowFrames).
			Component("wsola").Kind(engineerr.KindValidation).Context("synthesis_hop", cfg.SynthesisHopFrames).Build()
	}
	if cfg.SearchRadiusFrames < 0 {
		return engineerr.Newf("search radius must be >= 0, got %d", cfg.SearchRadiusFrames).
			Component("wsola").Kind(engineerr.KindValidation).Context("search_radius", cfg.SearchRadiusFrames).Build()
	}
	return nil
}

// Configure applies window/synthesisHop/searchRadius, resetting all buffers
// whenever any parameter actually changes (§4.2).
func (s *Stretcher) Configure(cfg Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	changed := cfg.WindowFrames != s.window || cfg.SynthesisHopFrames != s.synthesisHop || cfg.SearchRadiusFrames != s.searchRadius
	s.window = cfg.WindowFrames
	s.synthesisHop = cfg.SynthesisHopFrames
	s.searchRadius = cfg.SearchRadiusFrames
	if s.targetSpeed == 0 {
		s.targetSpeed = 1.0
	}
	s.analysisHop = deriveAnalysisHop(s.synthesisHop, s.targetSpeed)
	if changed {
		s.allocate()
		s.Reset()
	}
	return nil
}

// ConfigurePreset is a convenience wrapper around Configure.
func (s *Stretcher) ConfigurePreset(preset Preset) error {
	cfg, ok := Presets[preset]
	if !ok {
		return engineerr.Newf("unknown WSOLA preset %q", preset).
			Component("wsola").Kind(engineerr.KindValidation).Context("preset", string(preset)).Build()
	}
	return s.Configure(cfg)
}

func (s *Stretcher) allocate() {
	overlap := s.window - s.synthesisHop
	s.prevTail = make([]float32, overlap*s.channels)
	s.curFrame = make([]float32, s.window*s.channels)
	s.combined = make([]float32, s.window*s.channels)
	minCapacity := s.searchRadius + s.window
	if minCapacity < s.window*2 {
		minCapacity = s.window * 2
	}
	s.input = audiobuf.NewSampleBuffer(s.channels, minCapacity*2)
}

// SetChannels re-allocates internal buffers for a new channel count; no-op
// if unchanged.
func (s *Stretcher) SetChannels(n int) {
	if n < 1 {
		n = 1
	}
	if n == s.channels {
		return
	}
	s.channels = n
	s.allocate()
	s.Reset()
}

func deriveAnalysisHop(synthesisHop int, speed float64) int {
	hop := int(math.Round(float64(synthesisHop) * speed))
	if hop < 1 {
		hop = 1
	}
	return hop
}

// SetSpeed fixes the synthesis hop and derives a new analysis hop; it does
// not clear already-buffered audio (§4.2).
func (s *Stretcher) SetSpeed(speed float64) error {
	if speed <= 0 {
		return engineerr.Newf("speed must be > 0, got %v", speed).
			Component("wsola").Kind(engineerr.KindValidation).Context("speed", speed).Build()
	}
	s.targetSpeed = speed
	s.analysisHop = deriveAnalysisHop(s.synthesisHop, speed)
	needed := s.nominalPos/s.channels + s.searchRadius + s.window
	if needed > s.input.CapacityFrames() {
		s.input.Grow(needed + s.window)
	}
	return nil
}

// Reset clears all buffers and flags.
func (s *Stretcher) Reset() {
	s.input.Reset()
	s.nominalPos = 0
	for i := range s.prevTail {
		s.prevTail[i] = 0
	}
	s.pending = s.pending[:0]
	s.pendingPos = 0
	s.isFirst = true
	s.isFlushing = false
}

// Channels reports the configured channel count.
func (s *Stretcher) Channels() int { return s.channels }

// AnalysisHopFrames exposes the currently derived analysis hop, primarily
// for tests and for player-side source-clock bookkeeping.
func (s *Stretcher) AnalysisHopFrames() int { return s.analysisHop }

// SynthesisHopFrames exposes the configured synthesis hop.
func (s *Stretcher) SynthesisHopFrames() int { return s.synthesisHop }

// WindowFrames exposes the configured window length.
func (s *Stretcher) WindowFrames() int { return s.window }

func raisedCosine(i, overlapFrames int) float64 {
	if overlapFrames <= 1 {
		return 1
	}
	return 0.5 - 0.5*math.Cos(math.Pi*float64(i)/float64(overlapFrames-1))
}

// overlapEnergy returns sum of squares of prevTail's channel-0 samples.
func (s *Stretcher) overlapEnergy(overlapFrames int) float64 {
	var e float64
	ch := s.channels
	for i := 0; i < overlapFrames; i++ {
		v := float64(s.prevTail[i*ch])
		e += v * v
	}
	return e
}

func (s *Stretcher) ncc(delta, overlapFrames int) (float64, bool) {
	ch := s.channels
	candidateStart := s.nominalPos + delta*ch
	if candidateStart < 0 {
		return 0, false
	}
	if candidateStart+overlapFrames*ch > s.input.ValidSamples() {
		return 0, false
	}
	raw := s.input.Raw()
	var dot, energyA, energyB float64
	for i := 0; i < overlapFrames; i++ {
		a := float64(s.prevTail[i*ch])
		b := float64(raw[candidateStart+i*ch])
		dot += a * b
		energyA += a * a
		energyB += b * b
	}
	denom := math.Sqrt(energyA*energyB) + 1e-12
	return dot / denom, true
}

// bestOffset performs the search step of §4.2 and returns the chosen delta.
func (s *Stretcher) bestOffset(overlapFrames int) int {
	if s.isFirst {
		return 0
	}
	if s.searchRadius == 0 {
		return 0
	}
	if overlapFrames < s.searchRadius/4 {
		return 0
	}
	if s.overlapEnergy(overlapFrames) < silenceEnergyFactor*float64(overlapFrames) {
		return 0
	}

	bestDelta := 0
	bestNCC, _ := s.ncc(0, overlapFrames)

	for r := 1; r <= s.searchRadius; r++ {
		for _, d := range [2]int{-r, r} {
			ncc, ok := s.ncc(d, overlapFrames)
			if !ok {
				continue
			}
			if ncc > bestNCC+hysteresisNCC {
				bestNCC = ncc
				bestDelta = d
			}
		}
		if bestNCC > earlyAcceptNCC {
			break
		}
	}
	return bestDelta
}

// runIteration executes one full WSOLA step (search, overlap-add, emit,
// advance, accounting). allowPartialWindow relaxes the availability check
// for Flush, where the search radius lookahead is not required.
// It appends the produced samples to s.pending.
func (s *Stretcher) runIteration(allowPartialWindow bool) (sourceFrames float64, ok bool) {
	ch := s.channels
	overlapFrames := s.window - s.synthesisHop

	// Opportunistic compaction (§4.9): discard everything more than one
	// search radius behind the current analysis position.
	discardStart := s.nominalPos - s.searchRadius*ch
	if discardStart > 0 {
		s.input.SetReadPos(discardStart)
		s.input.Compact(func(shifted int) { s.nominalPos -= shifted })
	}

	required := s.nominalPos + s.window*ch
	if !allowPartialWindow {
		required = s.nominalPos + (s.searchRadius+s.window)*ch
	}
	if s.input.ValidSamples() < required {
		return 0, false
	}

	delta := s.bestOffset(overlapFrames)
	frameStart := s.nominalPos + delta*ch
	raw := s.input.Raw()

	copy(s.curFrame, raw[frameStart:frameStart+s.window*ch])

	for i := 0; i < s.window; i++ {
		if i < overlapFrames {
			w := raisedCosine(i, overlapFrames)
			for c := 0; c < ch; c++ {
				idx := i*ch + c
				s.combined[idx] = float32(float64(s.prevTail[idx])*(1-w) + float64(s.curFrame[idx])*w)
			}
		} else {
			for c := 0; c < ch; c++ {
				idx := i*ch + c
				s.combined[idx] = s.curFrame[idx]
			}
		}
	}

	s.pending = append(s.pending, s.combined[:s.synthesisHop*ch]...)
	copy(s.prevTail, s.combined[s.synthesisHop*ch:s.window*ch])

	s.nominalPos += s.analysisHop * ch
	s.isFirst = false

	sourceFrames = float64(s.analysisHop)
	return sourceFrames, true
}

func (s *Stretcher) drainPending(output []float32) int {
	available := len(s.pending) - s.pendingPos
	n := len(output)
	if n > available {
		n = available
	}
	copy(output[:n], s.pending[s.pendingPos:s.pendingPos+n])
	s.pendingPos += n
	if s.pendingPos == len(s.pending) {
		s.pending = s.pending[:0]
		s.pendingPos = 0
	}
	return n
}

// Process buffers inputSamples, synthesizes as many output blocks as fit
// into outputSamples, and reports how much was written, how much input was
// consumed, and the source span, in frames, of the hops synthesized during
// this call (one analysis hop per synthesis hop; used by callers to advance
// a source-time clock). It never
// blocks: if buffered input cannot satisfy a full analysis window, it
// simply emits whatever is already pending.
func (s *Stretcher) Process(inputSamples, outputSamples []float32) (outputWritten, inputConsumed int, sourceSamplesRepresented float64) {
	if len(inputSamples) > 0 {
		s.input.Append(inputSamples)
		inputConsumed = len(inputSamples)
	}

	outPos := 0
	outPos += s.drainPending(outputSamples[outPos:])

	for outPos < len(outputSamples) {
		if len(s.pending) > s.pendingPos {
			outPos += s.drainPending(outputSamples[outPos:])
			continue
		}
		frames, ok := s.runIteration(false)
		if !ok {
			break
		}
		sourceSamplesRepresented += frames
		outPos += s.drainPending(outputSamples[outPos:])
	}

	return outPos, inputConsumed, sourceSamplesRepresented
}

// Flush drains remaining buffered audio until fewer than one window of
// input remains, writing as much as fits into output. Returns the number
// of samples written.
func (s *Stretcher) Flush(output []float32) int {
	s.isFlushing = true
	outPos := 0
	outPos += s.drainPending(output[outPos:])
	for outPos < len(output) {
		if len(s.pending) > s.pendingPos {
			outPos += s.drainPending(output[outPos:])
			continue
		}
		if _, ok := s.runIteration(true); !ok {
			break
		}
		outPos += s.drainPending(output[outPos:])
	}
	return outPos
}
