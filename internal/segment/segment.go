// Package segment implements AudioSegment (§3, §4.3): a positioned clip on
// the timeline that renders, on demand, whatever portion of its source
// falls within a requested window — looping, reversal, time-stretch, speed,
// fades, volume and pan all composed in the order §4.3 specifies.
//
// Grounded on the teacher's internal/audiocore processor-chain style (small
// composed stages run in a fixed order over a block) adapted from bird
// clip/segment bookkeeping to timeline-positioned clips; the WSOLA and
// resampling stages are grounded on internal/wsola and internal/dsp
// respectively, both already grounded on the teacher's hot-path
// conventions.
package segment

import (
	"log/slog"
	"math"

	"github.com/LuoYun-Team/soundflow-engine/internal/dsp"
	"github.com/LuoYun-Team/soundflow-engine/internal/enginelog"
	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
	"github.com/LuoYun-Team/soundflow-engine/internal/provider"
	"github.com/LuoYun-Team/soundflow-engine/internal/wsola"
)

// LoopSettings mirrors §3's loop sub-record. Repetitions in [0, ∞);
// TargetDuration, when non-nil, wins over Repetitions unless Repetitions is
// also set, in which case it caps the loop count (§3, §9 open question ii).
type LoopSettings struct {
	Repetitions    int
	TargetDuration *float64 // seconds
}

// Settings is AudioSegmentSettings (§3).
type Settings struct {
	Volume           float64
	Pan              float64
	IsReversed       bool
	SpeedFactor      float64
	TimeStretchFactor float64
	// TargetStretchDuration, when set, wins over TimeStretchFactor and
	// recomputes it (§3 invariant).
	TargetStretchDuration *float64
	FadeInDuration        float64
	FadeInCurve           dsp.FadeCurve
	FadeOutDuration       float64
	FadeOutCurve          dsp.FadeCurve
	Loop                  LoopSettings
}

// DefaultSettings returns the identity settings: full volume, centered pan,
// no stretch/speed change, no fades, no loop.
func DefaultSettings() Settings {
	return Settings{
		Volume:            1.0,
		Pan:               0,
		SpeedFactor:       1.0,
		TimeStretchFactor: 1.0,
		FadeInCurve:       dsp.FadeLinear,
		FadeOutCurve:      dsp.FadeLinear,
		Loop:              LoopSettings{Repetitions: 1},
	}
}

func (s *Settings) resolveStretchFactor(sourceDuration float64) {
	if s.TargetStretchDuration != nil && sourceDuration > 0 {
		s.TimeStretchFactor = *s.TargetStretchDuration / sourceDuration
	}
	if s.TimeStretchFactor <= 0 {
		s.TimeStretchFactor = 1.0
	}
	if s.SpeedFactor <= 0 {
		s.SpeedFactor = 1.0
	}
}

// Segment is AudioSegment (§3): a source window positioned on a timeline.
type Segment struct {
	arena      *provider.Arena
	providerID provider.ID
	owns       bool

	SourceStartTime   float64
	SourceDuration    float64
	TimelineStartTime float64
	Settings          Settings

	logger *slog.Logger

	// stretcher is this segment's persistent WSOLA instance (§4.2, §4.3):
	// it survives across Render calls so its overlap-add history (prevTail,
	// isFirst) carries forward across the per-block pull pipeline instead of
	// cold-starting at every block boundary. stretchCursor tracks the next
	// raw source frame boundary the continuous feed expects; stretchStarted
	// is false before the first stretched render and after the source is
	// exhausted (so the next pass/loop iteration starts clean).
	stretcher      *wsola.Stretcher
	stretchCursor  int64
	stretchStarted bool
}

// New validates and constructs a Segment bound to a provider already
// registered in arena under providerID.
func New(arena *provider.Arena, providerID provider.ID, owns bool, sourceStartTime, sourceDuration, timelineStartTime float64, settings Settings) (*Segment, error) {
	if sourceDuration <= 0 {
		return nil, engineerr.Newf("source_duration must be positive, got %v", sourceDuration).
			Component("segment").Kind(engineerr.KindValidation).Build()
	}
	settings.resolveStretchFactor(sourceDuration)
	if _, err := arena.Lookup(providerID); err != nil {
		return nil, err
	}
	return &Segment{
		arena:             arena,
		providerID:        providerID,
		owns:              owns,
		SourceStartTime:   sourceStartTime,
		SourceDuration:    sourceDuration,
		TimelineStartTime: timelineStartTime,
		Settings:          settings,
		logger:            enginelog.ForService("segment"),
	}, nil
}

// ProviderID returns the arena-stable ID of this segment's source
// provider, for project persistence (§6 "Project file").
func (s *Segment) ProviderID() provider.ID { return s.providerID }

// OwnsProvider reports owns_provider (§3): whether releasing this segment
// should also release its provider from the arena.
func (s *Segment) OwnsProvider() bool { return s.owns }

// SourceEndTime is source_start_time + source_duration (§3).
func (s *Segment) SourceEndTime() float64 { return s.SourceStartTime + s.SourceDuration }

// StretchedSourceDuration is source_duration * time_stretch_factor (§3).
func (s *Segment) StretchedSourceDuration() float64 {
	return s.SourceDuration * s.Settings.TimeStretchFactor
}

// onePassDuration is the timeline duration of a single, non-looped playback
// of the segment, after time-stretch and speed are applied.
func (s *Segment) onePassDuration() float64 {
	return s.StretchedSourceDuration() / s.Settings.SpeedFactor
}

// loopTotalDuration is the full effective_duration_on_timeline (§3),
// incorporating loop settings.
func (s *Segment) loopTotalDuration() float64 {
	pass := s.onePassDuration()
	if pass <= 0 {
		return 0
	}
	loop := s.Settings.Loop
	if loop.TargetDuration != nil {
		total := *loop.TargetDuration
		if loop.Repetitions > 0 {
			capped := pass * float64(loop.Repetitions)
			if capped < total {
				total = capped
			}
		}
		return total
	}
	reps := loop.Repetitions
	if reps <= 0 {
		reps = 1
	}
	return pass * float64(reps)
}

// TimelineEndTime is timeline_start_time + effective_duration_on_timeline
// (§3).
func (s *Segment) TimelineEndTime() float64 {
	return s.TimelineStartTime + s.loopTotalDuration()
}

// Intersects reports whether [start, start+duration) overlaps this
// segment's timeline range.
func (s *Segment) Intersects(start, duration float64) bool {
	end := start + duration
	return end > s.TimelineStartTime && start < s.TimelineEndTime()
}

// Render writes frameCount frames (channels samples each) into out,
// representing the portion of timeline [timelineStart, timelineStart +
// frameCount/sampleRate) that this segment covers. Positions outside the
// segment's range are left silent (out is zeroed first). Implements the
// five steps of §4.3.
func (s *Segment) Render(timelineStart float64, frameCount, sampleRate, channels int, out []float32) error {
	for i := range out {
		out[i] = 0
	}
	if frameCount <= 0 {
		return nil
	}

	reqDuration := float64(frameCount) / float64(sampleRate)
	segStart := s.TimelineStartTime
	segEnd := s.TimelineEndTime()
	overlapStart := math.Max(timelineStart, segStart)
	overlapEnd := math.Min(timelineStart+reqDuration, segEnd)
	if overlapStart >= overlapEnd {
		return nil // step 1: empty intersection, silence already written
	}

	outFrameOffset := int(math.Round((overlapStart - timelineStart) * float64(sampleRate)))
	overlapFrames := int(math.Round((overlapEnd - overlapStart) * float64(sampleRate)))
	if outFrameOffset < 0 {
		outFrameOffset = 0
	}
	if outFrameOffset+overlapFrames > frameCount {
		overlapFrames = frameCount - outFrameOffset
	}
	if overlapFrames <= 0 {
		return nil
	}

	pass := s.onePassDuration()
	tRel := overlapStart - segStart
	remaining := overlapFrames
	curFrame := outFrameOffset
	for remaining > 0 {
		var tWithinPass float64
		if pass > 0 {
			tWithinPass = math.Mod(tRel, pass)
		}
		chunk := remaining
		if pass > 0 {
			framesLeftInPass := int(math.Round((pass - tWithinPass) * float64(sampleRate)))
			if framesLeftInPass > 0 && framesLeftInPass < chunk {
				chunk = framesLeftInPass
			}
		}
		dst := out[curFrame*channels : (curFrame+chunk)*channels]
		if err := s.renderPass(tWithinPass, chunk, sampleRate, channels, dst); err != nil {
			return err
		}
		curFrame += chunk
		remaining -= chunk
		tRel += float64(chunk) / float64(sampleRate)
	}

	s.applyFades(overlapStart-segStart, overlapFrames, sampleRate, channels, out[outFrameOffset*channels:(outFrameOffset+overlapFrames)*channels])
	dsp.ApplyVolumePan(out[outFrameOffset*channels:(outFrameOffset+overlapFrames)*channels], channels, s.Settings.Volume, s.Settings.Pan)
	return nil
}

// applyFades implements §4.3 step 5. tAbs0 is the timeline time (relative to
// segment start) of the first frame in samples.
func (s *Segment) applyFades(tAbs0 float64, frames, sampleRate, channels int, samples []float32) {
	if s.Settings.FadeInDuration <= 0 && s.Settings.FadeOutDuration <= 0 {
		return
	}
	total := s.loopTotalDuration()
	for i := 0; i < frames; i++ {
		tAbs := tAbs0 + float64(i)/float64(sampleRate)
		gain := 1.0
		if s.Settings.FadeInDuration > 0 && tAbs < s.Settings.FadeInDuration {
			gain *= dsp.ApplyCurve(s.Settings.FadeInCurve, tAbs/s.Settings.FadeInDuration)
		}
		if s.Settings.FadeOutDuration > 0 {
			remaining := total - tAbs
			if remaining < s.Settings.FadeOutDuration {
				frac := remaining / s.Settings.FadeOutDuration
				gain *= dsp.ApplyCurve(s.Settings.FadeOutCurve, frac)
			}
		}
		if gain == 1.0 {
			continue
		}
		for c := 0; c < channels; c++ {
			idx := i*channels + c
			samples[idx] = float32(float64(samples[idx]) * gain)
		}
	}
}

// renderPass produces exactly outFrames frames of post-stretch, post-speed
// audio starting at tWithinPass seconds into one (unlooped) playback pass,
// honoring reversal, time-stretch and speed (§4.3 steps 2-4).
func (s *Segment) renderPass(tWithinPass float64, outFrames, sampleRate, channels int, dst []float32) error {
	prov, err := s.arena.Lookup(s.providerID)
	if err != nil {
		return err
	}

	// Undo the effective_duration mapping: stretchedTime = t*speed,
	// sourceTime = stretchedTime/stretchFactor.
	sourceTimeInPass := tWithinPass * s.Settings.SpeedFactor / s.Settings.TimeStretchFactor
	if s.Settings.IsReversed {
		sourceTimeInPass = s.SourceDuration - sourceTimeInPass
	}

	if s.Settings.TimeStretchFactor == 1.0 {
		s.stretchStarted = false
		return s.renderWindowedPass(prov, sourceTimeInPass, outFrames, sampleRate, channels, dst)
	}
	return s.renderStretchedPass(prov, sourceTimeInPass, outFrames, sampleRate, channels, dst)
}

// renderWindowedPass handles the no-time-stretch case: a single seek+read
// window resampled at SpeedFactor into dst. There is no WSOLA state to carry
// across calls here, so re-seeking every call is correct and cheap.
func (s *Segment) renderWindowedPass(prov provider.Provider, sourceTimeInPass float64, outFrames, sampleRate, channels int, dst []float32) error {
	srcFramesNeeded := int(math.Ceil(float64(outFrames) * s.Settings.SpeedFactor))
	if srcFramesNeeded < 1 {
		srcFramesNeeded = 1
	}
	margin := srcFramesNeeded/4 + 8
	readFrames := srcFramesNeeded + margin

	var startFrame int64
	if s.Settings.IsReversed {
		endFrame := int64(math.Round((s.SourceStartTime + sourceTimeInPass) * float64(sampleRate)))
		startFrame = endFrame - int64(readFrames)
		if startFrame < 0 {
			// Read only up to endFrame so the reversed window still starts there.
			readFrames = int(endFrame)
		}
		if readFrames <= 0 {
			return nil // leave dst as silence
		}
	} else {
		startFrame = int64(math.Round((s.SourceStartTime + sourceTimeInPass) * float64(sampleRate)))
	}
	if startFrame < 0 {
		startFrame = 0
	}

	if prov.CanSeek() {
		if err := prov.Seek(startFrame * int64(channels)); err != nil {
			return err
		}
	}

	raw := make([]float32, readFrames*channels)
	n := prov.Read(raw)
	if n < len(raw) {
		s.logger.Warn("source provider returned fewer samples than requested", "requested", len(raw), "got", n)
		// step-declared failure semantics: zero-fill the shortfall, no error.
	}
	raw = raw[:n]

	if s.Settings.IsReversed {
		dsp.Reverse(raw, channels)
	}

	rawFrames := len(raw) / channels
	if rawFrames == 0 {
		return nil // leave dst as silence
	}
	// Resample at the speed factor; output frames past the end of what was
	// read stay zero (dst was cleared by Render).
	producible := int(float64(rawFrames) / s.Settings.SpeedFactor)
	if producible > outFrames {
		producible = outFrames
	}
	dsp.LinearResample(raw, channels, producible, s.Settings.SpeedFactor, dst)
	return nil
}

// ensureStretcher lazily builds the segment's persistent WSOLA instance so
// its overlap-add history survives across Render calls on the per-block
// pull pipeline (§4.2, §4.3), instead of cold-starting every block.
func (s *Segment) ensureStretcher(channels int) (*wsola.Stretcher, error) {
	if s.stretcher != nil {
		return s.stretcher, nil
	}
	st, err := wsola.NewFromPreset(channels, wsola.Balanced)
	if err != nil {
		return nil, err
	}
	s.stretcher = st
	return st, nil
}

// continuityToleranceFrames bounds how far the ideal source position (fresh
// math each call) may drift from the persisted stretcher's actual read
// cursor before treating the jump as a real discontinuity (loop wrap,
// external seek, a reversal toggle) rather than ordinary rounding drift
// between consecutive blocks.
const continuityToleranceFrames = 4096

// renderStretchedPass produces outFrames of time-stretched audio for one
// pass, feeding the segment's persistent WSOLA instance (§4.2, §4.3). A loop
// wrap, external seek, or reversal toggle looks like a jump in the ideal
// source position and forces a fresh Seek plus a Stretcher Reset; otherwise
// this call continues reading exactly where the previous call's read left
// off, so the overlap-add crossfade carries across block boundaries instead
// of cold-starting every block.
func (s *Segment) renderStretchedPass(prov provider.Provider, sourceTimeInPass float64, outFrames, sampleRate, channels int, dst []float32) error {
	st, err := s.ensureStretcher(channels)
	if err != nil {
		return err
	}
	if err := st.SetSpeed(1.0 / s.Settings.TimeStretchFactor); err != nil {
		return err
	}

	idealFrame := int64(math.Round((s.SourceStartTime + sourceTimeInPass) * float64(sampleRate)))
	if idealFrame < 0 {
		idealFrame = 0
	}

	srcFramesNeeded := int(math.Ceil(float64(outFrames)*s.Settings.SpeedFactor/s.Settings.TimeStretchFactor)) + 1
	if srcFramesNeeded < 1 {
		srcFramesNeeded = 1
	}

	if !s.stretchStarted || absInt64(idealFrame-s.stretchCursor) > continuityToleranceFrames {
		st.Reset()
		s.stretchCursor = idealFrame
		s.stretchStarted = true
	}

	var readStart int64
	if s.Settings.IsReversed {
		readStart = s.stretchCursor - int64(srcFramesNeeded)
	} else {
		readStart = s.stretchCursor
	}
	if readStart < 0 {
		readStart = 0
	}

	if prov.CanSeek() {
		if err := prov.Seek(readStart * int64(channels)); err != nil {
			return err
		}
	}

	raw := make([]float32, srcFramesNeeded*channels)
	n := prov.Read(raw)
	raw = raw[:n]
	framesRead := n / channels

	if s.Settings.IsReversed {
		dsp.Reverse(raw, channels)
		s.stretchCursor -= int64(framesRead)
	} else {
		s.stretchCursor += int64(framesRead)
	}

	scratch := make([]float32, st.SynthesisHopFrames()*channels)
	stretched := make([]float32, 0, outFrames*channels+st.WindowFrames()*channels)

	written, _, _ := st.Process(raw, scratch)
	stretched = append(stretched, scratch[:written]...)
	for len(stretched) < outFrames*channels {
		written, _, _ = st.Process(nil, scratch)
		if written == 0 {
			break
		}
		stretched = append(stretched, scratch[:written]...)
	}

	if framesRead < srcFramesNeeded {
		// Source exhausted for this pass: drain the stretcher's tail now so
		// the end of a non-looping (or final-loop) segment isn't lost, and
		// start the next pass (a loop repeat, or a later unrelated seek)
		// clean rather than carrying stale state into it.
		flushBuf := make([]float32, st.WindowFrames()*channels)
		for {
			fn := st.Flush(flushBuf)
			if fn == 0 {
				break
			}
			stretched = append(stretched, flushBuf[:fn]...)
		}
		s.stretchStarted = false
	}

	stretchedFrames := len(stretched) / channels
	if stretchedFrames == 0 {
		return nil // leave dst as silence
	}
	ratio := float64(stretchedFrames) / float64(outFrames)
	dsp.LinearResample(stretched, channels, outFrames, ratio, dst)
	return nil
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
