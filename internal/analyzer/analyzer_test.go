package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeakRMS_TracksRunningPeak(t *testing.T) {
	p := NewPeakRMS()
	p.Observe([]float32{0.1, -0.2}, 1)
	p.Observe([]float32{0.9, -0.1}, 1)

	peak, _ := p.Snapshot()
	assert.InDelta(t, 0.9, peak, 1e-6)
}

func TestPeakRMS_ResetPeak(t *testing.T) {
	p := NewPeakRMS()
	p.Observe([]float32{1.0}, 1)
	p.ResetPeak()
	peak, _ := p.Snapshot()
	assert.Equal(t, 0.0, peak)
}

func TestChain_ObservesAllInOrder(t *testing.T) {
	c := NewChain()
	a := NewPeakRMS()
	b := NewPeakRMS()
	c.Add(a)
	c.Add(b)

	samples := []float32{0.5, -0.5}
	c.Observe(samples, 1)

	peakA, _ := a.Snapshot()
	peakB, _ := b.Snapshot()
	assert.Equal(t, peakA, peakB)
	// Observers never mutate.
	assert.Equal(t, []float32{0.5, -0.5}, samples)
}
