// Package filter implements the biquad filter bank (§4.1): RBJ Audio EQ
// Cookbook LowPass/HighPass/BandPass/Notch/Peaking/LowShelf/HighShelf/
// AllPass coefficients, Direct-Form-I processing with per-channel state.
//
// Grounded on the teacher's internal/myaudio/equalizer package (NewLowPass,
// NewHighPass, ApplyBatch, per-channel in1/in2/out1/out2 state, IsZero).
// That package only survived the retrieval filter as tests operating on
// []float64; this implementation adapts it to the engine's interleaved
// float32 sample model while keeping float64 coefficients and filter state
// for numerical stability, matching common biquad practice.
package filter

import (
	"math"

	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
)

// Type names a biquad response shape.
type Type string

const (
	LowPass   Type = "lowpass"
	HighPass  Type = "highpass"
	BandPass  Type = "bandpass"
	Notch     Type = "notch"
	Peaking   Type = "peaking"
	LowShelf  Type = "lowshelf"
	HighShelf Type = "highshelf"
	AllPass   Type = "allpass"
)

const (
	minFrequencyHz = 10.0
	minQ           = 0.01
)

// Filter is a Direct-Form-I biquad with independent state per channel.
type Filter struct {
	name Type

	b0a0, b1a0, b2a0, a1a0, a2a0 float64

	in1, in2, out1, out2 []float64

	channels int
}

// IsZero reports whether the filter is the uninitialized zero value.
func (f *Filter) IsZero() bool {
	return f.name == "" && f.channels == 0 && f.in1 == nil
}

// NewFilter builds a filter directly from unnormalized coefficients,
// mirroring the teacher's raw constructor: {b0,b1,b2,a1,a2} are divided by
// a0 at set time (§4.1 "Normalization").
func NewFilter(name Type, a0, a1, a2, b0, b1, b2 float64, channels int) *Filter {
	if channels < 1 {
		channels = 1
	}
	f := &Filter{
		name:     name,
		b0a0:     b0 / a0,
		b1a0:     b1 / a0,
		b2a0:     b2 / a0,
		a1a0:     a1 / a0,
		a2a0:     a2 / a0,
		channels: channels,
	}
	f.allocState()
	return f
}

func (f *Filter) allocState() {
	f.in1 = make([]float64, f.channels)
	f.in2 = make([]float64, f.channels)
	f.out1 = make([]float64, f.channels)
	f.out2 = make([]float64, f.channels)
}

// Reset clears all per-channel filter memory without changing coefficients.
func (f *Filter) Reset() {
	for i := range f.in1 {
		f.in1[i], f.in2[i], f.out1[i], f.out2[i] = 0, 0, 0, 0
	}
}

func clampFrequency(freq, sampleRate float64) float64 {
	nyquistFraction := 0.49 * sampleRate
	if freq < minFrequencyHz {
		return minFrequencyHz
	}
	if freq > nyquistFraction {
		return nyquistFraction
	}
	return freq
}

func clampQ(q float64) float64 {
	if q < minQ {
		return minQ
	}
	return q
}

func validateRate(sampleRate float64) error {
	if sampleRate <= 0 {
		return engineerr.Newf("sample rate must be positive, got %v", sampleRate).
			Component("filter").Kind(engineerr.KindValidation).Build()
	}
	return nil
}

// rbjCoeffs computes the raw {a0,a1,a2,b0,b1,b2} for a given filter type
// using the RBJ Audio EQ Cookbook formulas. gainDB is only consulted by
// Peaking/LowShelf/HighShelf. The shelf filters use the Q form of the
// cookbook; shelfSlope is accepted but does not change the coefficients.
func rbjCoeffs(name Type, sampleRate, frequency, q, gainDB, shelfSlope float64) (a0, a1, a2, b0, b1, b2 float64) {
	frequency = clampFrequency(frequency, sampleRate)
	q = clampQ(q)
	omega := 2 * math.Pi * frequency / sampleRate
	sinW := math.Sin(omega)
	cosW := math.Cos(omega)
	alpha := sinW / (2 * q)
	A := math.Pow(10, gainDB/40)

	switch name {
	case LowPass:
		b0 = (1 - cosW) / 2
		b1 = 1 - cosW
		b2 = (1 - cosW) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW
		a2 = 1 - alpha
	case HighPass:
		b0 = (1 + cosW) / 2
		b1 = -(1 + cosW)
		b2 = (1 + cosW) / 2
		a0 = 1 + alpha
		a1 = -2 * cosW
		a2 = 1 - alpha
	case BandPass:
		b0 = alpha
		b1 = 0
		b2 = -alpha
		a0 = 1 + alpha
		a1 = -2 * cosW
		a2 = 1 - alpha
	case Notch:
		b0 = 1
		b1 = -2 * cosW
		b2 = 1
		a0 = 1 + alpha
		a1 = -2 * cosW
		a2 = 1 - alpha
	case AllPass:
		b0 = 1 - alpha
		b1 = -2 * cosW
		b2 = 1 + alpha
		a0 = 1 + alpha
		a1 = -2 * cosW
		a2 = 1 - alpha
	case Peaking:
		alphaA := alpha * A
		alphaOverA := alpha / A
		b0 = 1 + alphaA
		b1 = -2 * cosW
		b2 = 1 - alphaA
		a0 = 1 + alphaOverA
		a1 = -2 * cosW
		a2 = 1 - alphaOverA
	case LowShelf:
		if shelfSlope <= 0 {
			shelfSlope = 1
		}
		beta := math.Sqrt(A) / q
		_ = shelfSlope // unused: beta is derived from q
		b0 = A * ((A + 1) - (A-1)*cosW + beta*sinW)
		b1 = 2 * A * ((A - 1) - (A+1)*cosW)
		b2 = A * ((A + 1) - (A-1)*cosW - beta*sinW)
		a0 = (A + 1) + (A-1)*cosW + beta*sinW
		a1 = -2 * ((A - 1) + (A+1)*cosW)
		a2 = (A + 1) + (A-1)*cosW - beta*sinW
	case HighShelf:
		if shelfSlope <= 0 {
			shelfSlope = 1
		}
		beta := math.Sqrt(A) / q
		b0 = A * ((A + 1) + (A-1)*cosW + beta*sinW)
		b1 = -2 * A * ((A - 1) + (A+1)*cosW)
		b2 = A * ((A + 1) + (A-1)*cosW - beta*sinW)
		a0 = (A + 1) - (A-1)*cosW + beta*sinW
		a1 = 2 * ((A - 1) - (A+1)*cosW)
		a2 = (A + 1) - (A-1)*cosW - beta*sinW
	default:
		// Identity pass-through for an unrecognized type.
		b0, a0 = 1, 1
	}
	return
}

func newFromCookbook(name Type, sampleRate, frequency, q, gainDB, shelfSlope float64, channels int) (*Filter, error) {
	if err := validateRate(sampleRate); err != nil {
		return nil, err
	}
	a0, a1, a2, b0, b1, b2 := rbjCoeffs(name, sampleRate, frequency, q, gainDB, shelfSlope)
	return NewFilter(name, a0, a1, a2, b0, b1, b2, channels), nil
}

// NewLowPass builds an RBJ low-pass biquad. channels sizes the per-channel
// state arrays.
func NewLowPass(sampleRate, frequency, q float64, channels int) (*Filter, error) {
	return newFromCookbook(LowPass, sampleRate, frequency, q, 0, 0, channels)
}

// NewHighPass builds an RBJ high-pass biquad.
func NewHighPass(sampleRate, frequency, q float64, channels int) (*Filter, error) {
	return newFromCookbook(HighPass, sampleRate, frequency, q, 0, 0, channels)
}

// NewBandPass builds an RBJ constant skirt-gain band-pass biquad.
func NewBandPass(sampleRate, frequency, q float64, channels int) (*Filter, error) {
	return newFromCookbook(BandPass, sampleRate, frequency, q, 0, 0, channels)
}

// NewNotch builds an RBJ notch biquad.
func NewNotch(sampleRate, frequency, q float64, channels int) (*Filter, error) {
	return newFromCookbook(Notch, sampleRate, frequency, q, 0, 0, channels)
}

// NewAllPass builds an RBJ all-pass biquad.
func NewAllPass(sampleRate, frequency, q float64, channels int) (*Filter, error) {
	return newFromCookbook(AllPass, sampleRate, frequency, q, 0, 0, channels)
}

// NewPeaking builds an RBJ peaking EQ biquad with the given gain in dB.
func NewPeaking(sampleRate, frequency, q, gainDB float64, channels int) (*Filter, error) {
	return newFromCookbook(Peaking, sampleRate, frequency, q, gainDB, 0, channels)
}

// NewLowShelf builds an RBJ low-shelf biquad.
func NewLowShelf(sampleRate, frequency, q, gainDB, shelfSlope float64, channels int) (*Filter, error) {
	return newFromCookbook(LowShelf, sampleRate, frequency, q, gainDB, shelfSlope, channels)
}

// NewHighShelf builds an RBJ high-shelf biquad.
func NewHighShelf(sampleRate, frequency, q, gainDB, shelfSlope float64, channels int) (*Filter, error) {
	return newFromCookbook(HighShelf, sampleRate, frequency, q, gainDB, shelfSlope, channels)
}

// Process filters a single sample on one channel, advancing that channel's
// state. Invalid channel indices are clamped to 0 rather than rejected
// (§4.1: "invalid inputs are clamped, not rejected").
func (f *Filter) Process(sample float32, channel int) float32 {
	if channel < 0 || channel >= f.channels {
		channel = 0
	}
	x := float64(sample)
	y := f.b0a0*x + f.b1a0*f.in1[channel] + f.b2a0*f.in2[channel] - f.a1a0*f.out1[channel] - f.a2a0*f.out2[channel]

	f.in2[channel] = f.in1[channel]
	f.in1[channel] = x
	f.out2[channel] = f.out1[channel]
	f.out1[channel] = y

	return float32(y)
}

// ApplyBatch filters an interleaved multi-channel buffer in place, cycling
// through channels 0..channels-1 for successive samples.
func (f *Filter) ApplyBatch(samples []float32) {
	ch := f.channels
	if ch <= 0 {
		ch = 1
	}
	for i := range samples {
		samples[i] = f.Process(samples[i], i%ch)
	}
}

// Chain cascades filters in insertion order (§2/§9: modifier chains apply
// in insertion order, never allocate per block).
type Chain struct {
	filters []*Filter
}

// NewChain returns an empty filter chain.
func NewChain() *Chain { return &Chain{} }

// AddFilter appends f to the chain.
func (c *Chain) AddFilter(f *Filter) error {
	if f == nil {
		return engineerr.Newf("filter cannot be nil").
			Component("filter").Kind(engineerr.KindValidation).Build()
	}
	c.filters = append(c.filters, f)
	return nil
}

// ApplyBatch runs samples through every filter in the chain, in order.
func (c *Chain) ApplyBatch(samples []float32) {
	for _, f := range c.filters {
		f.ApplyBatch(samples)
	}
}

// Reset clears every filter's state.
func (c *Chain) Reset() {
	for _, f := range c.filters {
		f.Reset()
	}
}
