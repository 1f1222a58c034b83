// Package mixer implements the Mixer / Master Pipeline (§4.7): sums child
// components' outputs into a fixed frame-count buffer, applies its own
// modifier and analyzer chains, and is nestable (a master mixer may contain
// sub-mixers, each of which is itself a Source).
//
// Grounded on the teacher's internal/audiocore Manager (owns a collection
// of sources behind a mutex, drives them in a fixed per-block order) and on
// its command/apply-at-boundary pattern for structural mutation (§5:
// "Commands mutate shared state ... observed by the audio thread at the
// next block boundary"; "taking a lock on the audio thread is allowed only
// for non-blocking try_lock").
package mixer

import (
	"log/slog"
	"sync"

	"github.com/LuoYun-Team/soundflow-engine/internal/analyzer"
	"github.com/LuoYun-Team/soundflow-engine/internal/audiobuf"
	"github.com/LuoYun-Team/soundflow-engine/internal/dsp"
	"github.com/LuoYun-Team/soundflow-engine/internal/enginelog"
	"github.com/LuoYun-Team/soundflow-engine/internal/modifier"
)

// Source is anything a Mixer can pull a block from: a Player, a Composition
// wrapped by one, or another Mixer (nesting, §4.7).
type Source interface {
	Pull(frameCount int, out []float32) error
}

// Mixer sums its children's output, applies its modifier/analyzer chains,
// and optionally scales by a master volume (set to 1.0 for a non-master
// sub-mixer).
type Mixer struct {
	// commandMu guards only the pending command queue, never the audio
	// thread's read of children — matches §5's per-component command-queue
	// mutex, with the audio thread using TryLock to drain it.
	commandMu sync.Mutex
	pending   []func([]namedSource) []namedSource

	children []namedSource

	Modifiers    *modifier.Chain
	Analyzers    *analyzer.Chain
	MasterVolume float64

	scratch *audiobuf.FloatPool
	logger  *slog.Logger
}

type namedSource struct {
	id     string
	source Source
}

// New returns an empty mixer at unity master volume.
func New() *Mixer {
	return &Mixer{
		Modifiers:    modifier.NewChain(),
		Analyzers:    analyzer.NewChain(),
		MasterVolume: 1.0,
		scratch:      audiobuf.NewFloatPool(),
		logger:       enginelog.ForService("mixer"),
	}
}

// AddComponent enqueues a child source under a stable id (used by
// RemoveComponent); takes effect at the next Pull's block boundary.
func (m *Mixer) AddComponent(id string, src Source) {
	m.commandMu.Lock()
	m.pending = append(m.pending, func(cur []namedSource) []namedSource {
		return append(cur, namedSource{id: id, source: src})
	})
	m.commandMu.Unlock()
}

// RemoveComponent enqueues removal of the child registered under id; takes
// effect at the next Pull's block boundary.
func (m *Mixer) RemoveComponent(id string) {
	m.commandMu.Lock()
	m.pending = append(m.pending, func(cur []namedSource) []namedSource {
		out := make([]namedSource, 0, len(cur))
		for _, ns := range cur {
			if ns.id != id {
				out = append(out, ns)
			}
		}
		return out
	})
	m.commandMu.Unlock()
}

// applyPending drains any queued add/remove commands. Uses TryLock so the
// audio thread never blocks behind a control thread mid-command (§5); if
// the lock is contended this block simply renders the previous snapshot
// and picks up the command on the next call.
func (m *Mixer) applyPending() {
	if !m.commandMu.TryLock() {
		return
	}
	defer m.commandMu.Unlock()
	if len(m.pending) == 0 {
		return
	}
	cur := m.children
	for _, cmd := range m.pending {
		cur = cmd(cur)
	}
	m.children = cur
	m.pending = m.pending[:0]
}

// Pull sums every child's contribution for frameCount frames into out,
// then runs the modifier chain, the analyzer chain (read-only, after
// modifiers, §4.8), and finally the master volume (§4.7: "Each device owns
// exactly one master mixer").
func (m *Mixer) Pull(frameCount int, out []float32) error {
	m.applyPending()

	for i := range out {
		out[i] = 0
	}

	children := m.children
	if len(children) == 0 {
		return nil
	}

	scratch := m.scratch.Get(len(out))
	defer m.scratch.Put(scratch)

	for _, ns := range children {
		for i := range scratch {
			scratch[i] = 0
		}
		if err := ns.source.Pull(frameCount, scratch); err != nil {
			m.logger.Warn("child source pull failed", "child", ns.id, "error", err)
			continue
		}
		dsp.Mix(out, scratch)
	}

	channels := channelsFromFrameCount(len(out), frameCount)
	m.Modifiers.Process(out, channels)
	m.Analyzers.Observe(out, channels)

	if m.MasterVolume != 1.0 {
		dsp.ApplyVolume(out, m.MasterVolume)
	}
	return nil
}

func channelsFromFrameCount(total, frameCount int) int {
	if frameCount <= 0 {
		return 1
	}
	c := total / frameCount
	if c <= 0 {
		return 1
	}
	return c
}

// Len reports the number of children currently active (post last applied
// command, not counting anything still pending).
func (m *Mixer) Len() int {
	return len(m.children)
}
