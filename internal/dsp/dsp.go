// Package dsp collects the small per-sample math shared by segment, track
// and composition rendering: fade curves, constant-power panning, and
// linear-interpolation resampling (§4.3 steps 3, 5, 6).
//
// Grounded on the teacher's internal/myaudio gain-staging helpers
// (plain float64 math, no allocation, monomorphic over channel count per
// §9's "static dispatch where feasible" note) and klauspost/cpuid/v2 for
// the same kind of hot-path capability gate the teacher uses before
// dispatching to tphakala/simd accelerated routines.
package dsp

import (
	"math"

	"github.com/klauspost/cpuid/v2"
)

// FadeCurve names one of the three fade shapes from §4.3.
type FadeCurve string

const (
	FadeLinear      FadeCurve = "linear"
	FadeLogarithmic FadeCurve = "logarithmic"
	FadeSCurve      FadeCurve = "s-curve"
)

// ApplyCurve maps x in [0,1] through the named curve, clamping x first.
func ApplyCurve(curve FadeCurve, x float64) float64 {
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	switch curve {
	case FadeLogarithmic:
		return math.Log(1+9*x) / math.Log(10)
	case FadeSCurve:
		return 0.5 - 0.5*math.Cos(math.Pi*x)
	default:
		return x
	}
}

// PanGains returns the constant-power gain pair for pan in [-1, 1]
// (§4.3 step 6): gain_L = cos((pan+1)*pi/4), gain_R = sin((pan+1)*pi/4).
func PanGains(pan float64) (left, right float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	angle := (pan + 1) * math.Pi / 4
	return math.Cos(angle), math.Sin(angle)
}

// wideStrideCapable gates the unrolled paths of ApplyVolumePan (4 stereo
// frames per iteration) and Mix (4 samples per iteration); ApplyVolume does
// not consult it. It is evaluated once at package init
// rather than per block, since cpuid.CPU is immutable for the process
// lifetime and a hot-path syscall/branch-per-block would violate §5's
// no-allocation-and-no-surprises rule for the audio thread.
var wideStrideCapable = cpuid.CPU.Supports(cpuid.AVX2) || cpuid.CPU.Supports(cpuid.NEON)

// ApplyVolumePan scales an interleaved buffer by volume and, for the first
// two channels only, by the constant-power pan law; channels beyond 1 pass
// through pan untouched (§9 open question (iii)). A mono buffer has no
// channel pair to pan and is scaled by volume alone. Stereo (the common case)
// takes a 4-frame unrolled path when wideStrideCapable, mirroring §9's
// "static dispatch where feasible, monomorphized over channel count".
func ApplyVolumePan(samples []float32, channels int, volume, pan float64) {
	if channels <= 1 {
		ApplyVolume(samples, volume)
		return
	}
	left, right := PanGains(pan)

	if channels == 2 && wideStrideCapable {
		applyVolumePanStereoWide(samples, volume, left, right)
		return
	}

	for i := 0; i < len(samples); i += channels {
		samples[i] = float32(float64(samples[i]) * volume * left)
		if channels > 1 {
			samples[i+1] = float32(float64(samples[i+1]) * volume * right)
		}
		for c := 2; c < channels && i+c < len(samples); c++ {
			samples[i+c] = float32(float64(samples[i+c]) * volume)
		}
	}
}

// applyVolumePanStereoWide is ApplyVolumePan's channels==2 path, unrolled
// over 4 frames (8 samples) per iteration.
func applyVolumePanStereoWide(samples []float32, volume, left, right float64) {
	vl, vr := float32(volume*left), float32(volume*right)
	n := len(samples)
	i := 0
	for ; i+8 <= n; i += 8 {
		samples[i] *= vl
		samples[i+1] *= vr
		samples[i+2] *= vl
		samples[i+3] *= vr
		samples[i+4] *= vl
		samples[i+5] *= vr
		samples[i+6] *= vl
		samples[i+7] *= vr
	}
	for ; i+1 < n; i += 2 {
		samples[i] *= vl
		samples[i+1] *= vr
	}
}

// ApplyVolume scales every sample of an interleaved buffer by volume alone,
// with no pan law applied — used by components (§4.6 Player) whose
// contract is volume-only.
func ApplyVolume(samples []float32, volume float64) {
	v := float32(volume)
	for i := range samples {
		samples[i] *= v
	}
}

// Mix sums src into dst in place (linear superposition, §4.4/§4.5).
func Mix(dst, src []float32) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	i := 0
	if wideStrideCapable {
		for ; i+4 <= n; i += 4 {
			dst[i] += src[i]
			dst[i+1] += src[i+1]
			dst[i+2] += src[i+2]
			dst[i+3] += src[i+3]
		}
	}
	for ; i < n; i++ {
		dst[i] += src[i]
	}
}

// Reverse reverses an interleaved buffer frame-by-frame (§4.3 step 4),
// keeping sample order within each frame intact.
func Reverse(samples []float32, channels int) {
	if channels <= 0 {
		channels = 1
	}
	frames := len(samples) / channels
	for i, j := 0, frames-1; i < j; i, j = i+1, j-1 {
		for c := 0; c < channels; c++ {
			samples[i*channels+c], samples[j*channels+c] = samples[j*channels+c], samples[i*channels+c]
		}
	}
}

// LinearResample resamples an interleaved source buffer (srcFrames frames
// of channels samples each) to produce exactly outFrames frames, using
// linear interpolation between adjacent source frames (§4.3 step 3:
// "Apply speed_factor by resampling (linear interpolation in this spec)").
// ratio is sourceFrames-per-outputFrame (ratio > 1 speeds up / shortens).
func LinearResample(src []float32, channels int, outFrames int, ratio float64, out []float32) {
	if channels <= 0 {
		channels = 1
	}
	srcFrames := len(src) / channels
	for i := 0; i < outFrames; i++ {
		srcPos := float64(i) * ratio
		i0 := int(srcPos)
		frac := srcPos - float64(i0)
		i1 := i0 + 1
		if i0 >= srcFrames {
			i0 = srcFrames - 1
		}
		if i0 < 0 {
			i0 = 0
		}
		if i1 >= srcFrames {
			i1 = srcFrames - 1
		}
		if i1 < 0 {
			i1 = 0
		}
		for c := 0; c < channels; c++ {
			a := float64(src[i0*channels+c])
			b := float64(src[i1*channels+c])
			out[i*channels+c] = float32(a + (b-a)*frac)
		}
	}
}
