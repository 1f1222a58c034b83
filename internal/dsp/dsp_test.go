package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyCurve_LinearMidpoint(t *testing.T) {
	assert.InDelta(t, 0.5, ApplyCurve(FadeLinear, 0.5), 1e-9)
}

func TestApplyCurve_SCurveMidpoint(t *testing.T) {
	// §8 scenario 4: s-curve at t=0.5 equals 0.5 +-1e-6.
	assert.InDelta(t, 0.5, ApplyCurve(FadeSCurve, 0.5), 1e-6)
}

func TestApplyCurve_LogarithmicEndpoints(t *testing.T) {
	assert.InDelta(t, 0, ApplyCurve(FadeLogarithmic, 0), 1e-9)
	assert.InDelta(t, 1, ApplyCurve(FadeLogarithmic, 1), 1e-9)
}

func TestApplyCurve_ClampsOutOfRange(t *testing.T) {
	assert.InDelta(t, 0, ApplyCurve(FadeLinear, -5), 1e-9)
	assert.InDelta(t, 1, ApplyCurve(FadeLinear, 5), 1e-9)
}

func TestPanGains_CenterIsEqualPower(t *testing.T) {
	l, r := PanGains(0)
	assert.InDelta(t, l, r, 1e-9)
	assert.InDelta(t, 1.0, l*l+r*r, 1e-9)
}

func TestPanGains_HardLeft(t *testing.T) {
	l, r := PanGains(-1)
	assert.InDelta(t, 1, l, 1e-9)
	assert.InDelta(t, 0, r, 1e-9)
}

func TestApplyVolumePan_ScalesChannelsIndependently(t *testing.T) {
	samples := []float32{1, 1}
	ApplyVolumePan(samples, 2, 1.0, 0)
	assert.InDelta(t, float64(samples[0]), float64(samples[1]), 1e-6)
}

func TestMix_SumsInPlace(t *testing.T) {
	dst := []float32{0.5, 0.5}
	src := []float32{0.5, 0.5}
	Mix(dst, src)
	assert.Equal(t, float32(1.0), dst[0])
	assert.Equal(t, float32(1.0), dst[1])
}

func TestReverse_PreservesFrameStructure(t *testing.T) {
	samples := []float32{0, 10, 1, 11, 2, 12}
	Reverse(samples, 2)
	assert.Equal(t, []float32{2, 12, 1, 11, 0, 10}, samples)
}

func TestLinearResample_IdentityRatio(t *testing.T) {
	src := []float32{0, 1, 2, 3}
	out := make([]float32, 4)
	LinearResample(src, 1, 4, 1.0, out)
	assert.InDeltaSlice(t, []float64{0, 1, 2, 3}, toFloat64(out), 1e-6)
}

func toFloat64(xs []float32) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}
