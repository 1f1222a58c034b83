// Package composition implements the Composition data model (§3) and its
// Renderer (§4.5): mixes all tracks into a timeline-addressable stream,
// exposes transport (play/stop/seek/continue) and offline render.
//
// Grounded on the teacher's internal/audiocore Manager (owns a collection
// of components behind a mutex, drives them in a fixed per-block order)
// and, for the offline render() path, on golang.org/x/sync/errgroup for
// parallel per-track rendering — the same dependency the teacher already
// carries for its detection-pipeline fan-out, wired here into the one
// place in the core where rendering N tracks is embarrassingly parallel
// and not on the real-time audio thread.
package composition

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/LuoYun-Team/soundflow-engine/internal/audiobuf"
	"github.com/LuoYun-Team/soundflow-engine/internal/audioformat"
	"github.com/LuoYun-Team/soundflow-engine/internal/dsp"
	"github.com/LuoYun-Team/soundflow-engine/internal/enginelog"
	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
	"github.com/LuoYun-Team/soundflow-engine/internal/track"
)

// State is the transport state exposed by §4.6-style components; the
// renderer itself only needs Playing/Stopped (Paused belongs to the player
// wrapping it), but both are defined here since §4.5's play/stop/continue
// trio maps directly onto them.
type State string

const (
	Stopped State = "stopped"
	Playing State = "playing"
)

// Composition is the top-level mix graph (§3): an ordered list of tracks,
// a shared format, master volume, and a dirty flag set by any structural
// mutation.
type Composition struct {
	mu sync.RWMutex

	Format       audioformat.Format
	MasterVolume float64
	dirty        bool
	Metadata     map[string]string

	tracks  []*track.Track
	scratch *audiobuf.FloatPool

	// transport state
	state       State
	playCursor  float64 // seconds
	isSyncDriven bool
	tempoAtCursor float64

	logger interface {
		Warn(msg string, args ...any)
	}
}

// New constructs an empty composition in the given format with unity
// master volume.
func New(format audioformat.Format) *Composition {
	return &Composition{
		Format:        format,
		MasterVolume:  1.0,
		state:         Stopped,
		tempoAtCursor: 120.0,
		scratch:       audiobuf.NewFloatPool(),
		logger:        enginelog.ForService("composition"),
	}
}

// MarkDirty sets the dirty flag; called by any structural mutation (§3).
func (c *Composition) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// IsDirty reports whether the composition has unsaved structural changes.
func (c *Composition) IsDirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dirty
}

// ClearDirty resets the dirty flag, typically after a successful save.
func (c *Composition) ClearDirty() {
	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
}

// AddTrack appends a track and marks the composition dirty.
func (c *Composition) AddTrack(t *track.Track) {
	c.mu.Lock()
	c.tracks = append(c.tracks, t)
	c.dirty = true
	c.mu.Unlock()
}

// RemoveTrack removes the first occurrence of t, marking dirty if found.
func (c *Composition) RemoveTrack(t *track.Track) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, tr := range c.tracks {
		if tr == t {
			c.tracks = append(c.tracks[:i], c.tracks[i+1:]...)
			c.dirty = true
			return true
		}
	}
	return false
}

// Tracks returns the composition's tracks in insertion order.
func (c *Composition) Tracks() []*track.Track {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*track.Track, len(c.tracks))
	copy(out, c.tracks)
	return out
}

// CalculateTotalDuration is max over all tracks of their max
// timeline_end_time (§4.5).
func (c *Composition) CalculateTotalDuration() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var max float64
	for _, t := range c.tracks {
		if end := t.MaxTimelineEnd(); end > max {
			max = end
		}
	}
	return max
}

func (c *Composition) anySoloed() bool {
	for _, t := range c.tracks {
		if t.Settings.IsSoloed {
			return true
		}
	}
	return false
}

// activeTracks snapshots the track list and returns those passing the solo
// rule (§4.5), along with the format fields needed to render them.
func (c *Composition) activeTracks() (active []*track.Track, sampleRate, channels int, masterVolume float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	soloed := c.anySoloed()
	active = make([]*track.Track, 0, len(c.tracks))
	for _, t := range c.tracks {
		if t.Active(soloed) {
			active = append(active, t)
		}
	}
	return active, c.Format.SampleRateHz, c.Format.Channels, c.MasterVolume
}

// renderOffline mixes all active tracks for the window [timelineStart,
// timelineStart+frameCount/sampleRate) into out, running one track's Render
// per goroutine via errgroup since tracks share no mutable state during a
// render. Only Render (the offline, non-real-time entry point) calls this;
// the streaming Pull path below never fans out or allocates per call.
func (c *Composition) renderOffline(timelineStart float64, frameCount int, out []float32) error {
	active, sampleRate, channels, masterVolume := c.activeTracks()

	for i := range out {
		out[i] = 0
	}
	if len(active) == 0 {
		return nil
	}

	buffers := make([][]float32, len(active))
	var g errgroup.Group
	for i, t := range active {
		i, t := i, t
		buffers[i] = make([]float32, len(out))
		g.Go(func() error {
			return t.Render(timelineStart, frameCount, sampleRate, channels, buffers[i])
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, buf := range buffers {
		dsp.Mix(out, buf)
	}
	// Master volume multiplies the final sum once (§4.5); the renderer
	// never clips — any clipping is a device-side concern.
	dsp.ApplyVolume(out, masterVolume)
	return nil
}

// Render is the offline, exact-length entry point (§4.5): produce a
// contiguous float buffer for [timelineStart, timelineStart+duration). This
// is the one place composition rendering fans out across goroutines and
// allocates per track — it is never reached from the streaming Pull path,
// so it carries no real-time constraint.
func (c *Composition) Render(timelineStart, duration float64) ([]float32, error) {
	c.mu.RLock()
	sampleRate := c.Format.SampleRateHz
	channels := c.Format.Channels
	c.mu.RUnlock()

	frameCount := int(duration * float64(sampleRate))
	out := make([]float32, frameCount*channels)
	if err := c.renderOffline(timelineStart, frameCount, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Pull is the streaming entry point: advances the internal play cursor by
// frameCount frames and writes the corresponding window into out. Not
// sync-driven pulls always advance the cursor themselves (§4.5). This sits
// on the real-time audio thread (Mixer.Pull -> Player.Pull ->
// CompositionProvider.Read -> Pull), so unlike Render it never spawns a
// goroutine per track and reuses one pooled scratch buffer across tracks
// instead of allocating one per track per call.
func (c *Composition) Pull(frameCount int, out []float32) error {
	c.mu.RLock()
	cursor := c.playCursor
	sampleRate := c.Format.SampleRateHz
	syncDriven := c.isSyncDriven
	c.mu.RUnlock()

	active, sr, channels, masterVolume := c.activeTracks()

	for i := range out {
		out[i] = 0
	}
	if len(active) == 0 {
		return nil
	}

	scratch := c.scratch.Get(len(out))
	defer c.scratch.Put(scratch)

	for _, t := range active {
		// Track.Render zeroes its own output first, so scratch needs no
		// explicit clear between tracks.
		if err := t.Render(cursor, frameCount, sr, channels, scratch); err != nil {
			return err
		}
		dsp.Mix(out, scratch)
	}
	dsp.ApplyVolume(out, masterVolume)

	if !syncDriven {
		c.mu.Lock()
		c.playCursor += float64(frameCount) / float64(sampleRate)
		c.mu.Unlock()
	}
	return nil
}

// Seek repositions the play cursor to an absolute timeline position.
func (c *Composition) Seek(position float64) error {
	if position < 0 {
		return engineerr.Newf("seek position must be >= 0, got %v", position).
			Component("composition").Kind(engineerr.KindValidation).Build()
	}
	c.mu.Lock()
	c.playCursor = position
	c.mu.Unlock()
	return nil
}

// Play transitions the renderer to the Playing state.
func (c *Composition) Play() {
	c.mu.Lock()
	c.state = Playing
	c.mu.Unlock()
}

// Stop transitions to Stopped and resets the play cursor to zero.
func (c *Composition) Stop() {
	c.mu.Lock()
	c.state = Stopped
	c.playCursor = 0
	c.mu.Unlock()
}

// Continue resumes from the current cursor without resetting it.
func (c *Composition) Continue() {
	c.mu.Lock()
	c.state = Playing
	c.mu.Unlock()
}

// State reports the current transport state.
func (c *Composition) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// PlayCursor reports the current timeline position, in seconds.
func (c *Composition) PlayCursor() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playCursor
}

// SetSyncDriven toggles whether advance_by_sync_ticks (true) or Pull
// itself (false) advances the play cursor.
func (c *Composition) SetSyncDriven(driven bool) {
	c.mu.Lock()
	c.isSyncDriven = driven
	c.mu.Unlock()
}

// AdvanceBySyncTicks advances the play cursor by n*ticksToFrames frames,
// used only when is_sync_driven is true (§4.5).
func (c *Composition) AdvanceBySyncTicks(n int, ticksToFrames float64) {
	c.mu.Lock()
	if c.isSyncDriven {
		c.playCursor += float64(n) * ticksToFrames / float64(c.Format.SampleRateHz)
	}
	c.mu.Unlock()
}

// GetTempoAtCurrentPosition is a read-only accessor used by MIDI sync
// collaborators (§4.5); this core does not compute tempo curves itself.
func (c *Composition) GetTempoAtCurrentPosition() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tempoAtCursor
}

// SetTempoAtCurrentPosition lets an external tempo-map collaborator push a
// value for GetTempoAtCurrentPosition to report.
func (c *Composition) SetTempoAtCurrentPosition(bpm float64) {
	c.mu.Lock()
	c.tempoAtCursor = bpm
	c.mu.Unlock()
}
