// Package track implements Track (§3, §4.4): an ordered collection of
// segments summed for any requested timeline window, with per-track
// mute/solo/volume/pan and an optional analyzer chain.
//
// Grounded on the teacher's internal/audiocore component-collection pattern
// (slice of children plus a sync.RWMutex guarding structural mutation,
// summed into a caller-provided scratch buffer); solo/mute truth-table
// evaluation mirrors the teacher's settings-gated processor enable/disable
// checks.
package track

import (
	"sort"
	"sync"

	"github.com/LuoYun-Team/soundflow-engine/internal/analyzer"
	"github.com/LuoYun-Team/soundflow-engine/internal/audiobuf"
	"github.com/LuoYun-Team/soundflow-engine/internal/dsp"
	"github.com/LuoYun-Team/soundflow-engine/internal/segment"
)

// Settings is the track-level settings record from §3.
type Settings struct {
	Volume   float64
	Pan      float64
	IsMuted  bool
	IsSoloed bool
}

// DefaultSettings returns unity volume, centered pan, unmuted, not soloed.
func DefaultSettings() Settings {
	return Settings{Volume: 1.0}
}

// entry pairs a segment with its insertion order, since "ordering is by
// timeline_start_time ascending with ties broken by insertion order" (§3)
// but "summation is order-independent" (§4.4) — order only matters for
// listing.
type entry struct {
	seg   *segment.Segment
	order int
}

// Track holds an ordered set of segments plus mix settings.
type Track struct {
	mu       sync.RWMutex
	Name     string
	Settings Settings

	segments []entry
	nextOrder int

	analyzers *analyzer.Chain
	scratch   *audiobuf.FloatPool
}

// New returns an empty, named track with default settings.
func New(name string) *Track {
	return &Track{
		Name:      name,
		Settings:  DefaultSettings(),
		analyzers: analyzer.NewChain(),
		scratch:   audiobuf.NewFloatPool(),
	}
}

// AddSegment appends a segment to the track.
func (t *Track) AddSegment(seg *segment.Segment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = append(t.segments, entry{seg: seg, order: t.nextOrder})
	t.nextOrder++
}

// RemoveSegment removes the first occurrence of seg, if present.
func (t *Track) RemoveSegment(seg *segment.Segment) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.segments {
		if e.seg == seg {
			t.segments = append(t.segments[:i], t.segments[i+1:]...)
			return true
		}
	}
	return false
}

// Segments returns the track's segments ordered by timeline_start_time
// ascending, ties broken by insertion order (§3). For user-visible listing
// only; rendering does not depend on this order.
func (t *Track) Segments() []*segment.Segment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sorted := make([]entry, len(t.segments))
	copy(sorted, t.segments)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].seg.TimelineStartTime != sorted[j].seg.TimelineStartTime {
			return sorted[i].seg.TimelineStartTime < sorted[j].seg.TimelineStartTime
		}
		return sorted[i].order < sorted[j].order
	})
	out := make([]*segment.Segment, len(sorted))
	for i, e := range sorted {
		out[i] = e.seg
	}
	return out
}

// Analyzers exposes the track's read-only analyzer chain (§4.8).
func (t *Track) Analyzers() *analyzer.Chain { return t.analyzers }

// MaxTimelineEnd returns the largest timeline_end_time among segments, or 0
// if the track has none.
func (t *Track) MaxTimelineEnd() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var max float64
	for _, e := range t.segments {
		if end := e.seg.TimelineEndTime(); end > max {
			max = end
		}
	}
	return max
}

// Active reports whether this track should contribute given whether any
// track in the composition is soloed (§4.5 solo rule).
func (t *Track) Active(anySoloed bool) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.Settings.IsMuted {
		return false
	}
	if anySoloed {
		return t.Settings.IsSoloed
	}
	return true
}

// Render sums every intersecting segment's contribution into out
// (frameCount*channels samples), then applies track volume/pan and runs
// the analyzer chain (read-only — analyzers never mutate out). Mute/solo
// gating is the caller's responsibility via Active, so a muted track still
// renders correctly as silence when asked to (useful for solo-preview UIs).
func (t *Track) Render(timelineStart float64, frameCount, sampleRate, channels int, out []float32) error {
	for i := range out {
		out[i] = 0
	}
	reqDuration := float64(frameCount) / float64(sampleRate)

	t.mu.RLock()
	segs := make([]*segment.Segment, 0, len(t.segments))
	for _, e := range t.segments {
		if e.seg.Intersects(timelineStart, reqDuration) {
			segs = append(segs, e.seg)
		}
	}
	t.mu.RUnlock()

	scratch := t.scratch.Get(len(out))
	defer t.scratch.Put(scratch)
	for _, seg := range segs {
		// Segment.Render zeroes its own output first, so scratch needs no
		// explicit clear between segments.
		if err := seg.Render(timelineStart, frameCount, sampleRate, channels, scratch); err != nil {
			return err
		}
		dsp.Mix(out, scratch)
	}

	volume := t.Settings.Volume
	if t.Settings.IsMuted {
		volume = 0
	}
	dsp.ApplyVolumePan(out, channels, volume, t.Settings.Pan)
	t.analyzers.Observe(out, channels)
	return nil
}
