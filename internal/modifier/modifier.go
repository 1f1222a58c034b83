// Package modifier implements the in-place effect stage of §4.8: a
// Modifier transforms a block's samples in place, and a Chain runs any
// number of them in insertion order without allocating per block.
//
// Grounded on the teacher's internal/myaudio/equalizer being wired in as a
// built-in Modifier (biquad.Chain already does exactly this), and on the
// stable type-name registry design note in §9 ("a registry maps stable
// type-name strings to constructors for persistence").
package modifier

import (
	"sync"

	"github.com/LuoYun-Team/soundflow-engine/internal/filter"
)

// Modifier transforms an interleaved buffer in place.
type Modifier interface {
	Process(samples []float32, channels int)
	// TypeName returns the stable, process-global identifier used by
	// project persistence (§6, §9).
	TypeName() string
}

// Chain runs modifiers in insertion order (§4.8: "applied in insertion
// order before the component's output is returned").
type Chain struct {
	mu        sync.RWMutex
	modifiers []Modifier
}

// NewChain returns an empty modifier chain.
func NewChain() *Chain { return &Chain{} }

// Add appends m to the end of the chain.
func (c *Chain) Add(m Modifier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modifiers = append(c.modifiers, m)
}

// Remove removes the first occurrence of m.
func (c *Chain) Remove(m Modifier) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, mod := range c.modifiers {
		if mod == m {
			c.modifiers = append(c.modifiers[:i], c.modifiers[i+1:]...)
			return true
		}
	}
	return false
}

// Process runs every modifier over samples, in insertion order.
func (c *Chain) Process(samples []float32, channels int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.modifiers {
		m.Process(samples, channels)
	}
}

// Len reports the number of modifiers currently in the chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modifiers)
}

// BiquadModifier adapts a filter.Chain (§4.1) to the Modifier interface so
// EQ can be attached to any component via add_modifier (§4.8).
type BiquadModifier struct {
	Chain *filter.Chain
}

// TypeName is the stable persisted identifier for a biquad chain modifier.
func (b *BiquadModifier) TypeName() string { return "biquad_chain" }

// Process runs the wrapped filter chain over samples.
func (b *BiquadModifier) Process(samples []float32, channels int) {
	_ = channels // filter.Chain derives channel count from each Filter's own setup
	b.Chain.ApplyBatch(samples)
}
