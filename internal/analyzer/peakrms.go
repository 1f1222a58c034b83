package analyzer

import (
	"math"
	"sync"
)

// PeakRMS is a built-in analyzer tracking the running peak and RMS level
// of whatever it observes. Readings are exposed through Snapshot for
// control-thread readers; internal/enginemetrics does not read them.
type PeakRMS struct {
	mu   sync.Mutex
	peak float64
	rms  float64
}

// NewPeakRMS returns a fresh, zeroed peak/RMS analyzer.
func NewPeakRMS() *PeakRMS { return &PeakRMS{} }

// TypeName is the stable persisted identifier for this analyzer.
func (p *PeakRMS) TypeName() string { return "peak_rms" }

// Observe updates the running peak and RMS from one block.
func (p *PeakRMS) Observe(samples []float32, channels int) {
	_ = channels
	if len(samples) == 0 {
		return
	}
	var sumSquares float64
	var peak float64
	for _, s := range samples {
		v := float64(s)
		sumSquares += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	rms := math.Sqrt(sumSquares / float64(len(samples)))

	p.mu.Lock()
	if peak > p.peak {
		p.peak = peak
	}
	p.rms = rms
	p.mu.Unlock()
}

// Snapshot returns the current peak and most recent RMS reading.
func (p *PeakRMS) Snapshot() (peak, rms float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peak, p.rms
}

// ResetPeak clears the running peak (RMS is always instantaneous-per-block).
func (p *PeakRMS) ResetPeak() {
	p.mu.Lock()
	p.peak = 0
	p.mu.Unlock()
}
