package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuoYun-Team/soundflow-engine/internal/dsp"
	"github.com/LuoYun-Team/soundflow-engine/internal/provider"
)

const testRate = 48000

func dcProvider(value float32, seconds float64, channels int) (*provider.Arena, provider.ID) {
	n := int(seconds*testRate) * channels
	data := make([]float32, n)
	for i := range data {
		data[i] = value
	}
	arena := provider.NewArena()
	id := arena.Register(provider.NewMemoryProvider(data, testRate, channels), true)
	return arena, id
}

func rampProvider(seconds float64, channels int) (*provider.Arena, provider.ID) {
	frames := int(seconds * testRate)
	data := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		v := float32(i) / float32(frames-1)
		for c := 0; c < channels; c++ {
			data[i*channels+c] = v
		}
	}
	arena := provider.NewArena()
	id := arena.Register(provider.NewMemoryProvider(data, testRate, channels), true)
	return arena, id
}

func TestSegment_SilenceOutsideRange(t *testing.T) {
	arena, id := dcProvider(1.0, 1, 1)
	settings := DefaultSettings()
	seg, err := New(arena, id, true, 0, 1, 2.0, settings) // starts at t=2s
	require.NoError(t, err)

	out := make([]float32, 100)
	require.NoError(t, seg.Render(0, 100, testRate, 1, out))
	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestSegment_TimelineEndTimeMatchesDuration(t *testing.T) {
	arena, id := dcProvider(1.0, 2, 1)
	settings := DefaultSettings()
	seg, err := New(arena, id, true, 0, 2, 0, settings)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, seg.TimelineEndTime(), 1e-9)
}

func TestSegment_LoopByTargetDuration(t *testing.T) {
	arena, id := dcProvider(1.0, 2, 1)
	settings := DefaultSettings()
	target := 7.0
	settings.Loop = LoopSettings{TargetDuration: &target}
	seg, err := New(arena, id, true, 0, 2, 0, settings)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, seg.TimelineEndTime(), 1e-6)
}

func TestSegment_FadeInLinearMidpoint(t *testing.T) {
	arena, id := dcProvider(1.0, 2, 1)
	settings := DefaultSettings()
	settings.FadeInDuration = 1.0
	settings.FadeInCurve = dsp.FadeLinear
	seg, err := New(arena, id, true, 0, 2, 0, settings)
	require.NoError(t, err)

	frames := testRate
	out := make([]float32, frames)
	require.NoError(t, seg.Render(0, frames, testRate, 1, out))

	mid := testRate / 2
	assert.InDelta(t, 0.5, float64(out[mid]), 0.02)
}

func TestSegment_ReverseRamp(t *testing.T) {
	arena, id := rampProvider(1, 1)
	settings := DefaultSettings()
	settings.IsReversed = true
	seg, err := New(arena, id, true, 0, 1, 0, settings)
	require.NoError(t, err)

	out := make([]float32, testRate)
	require.NoError(t, seg.Render(0, testRate, testRate, 1, out))

	// Reversed ramp: value at t should be approximately 1-t.
	quarter := testRate / 4
	expected := 1.0 - 0.25
	assert.InDelta(t, expected, float64(out[quarter]), 0.05)
}

func TestSegment_RenderIsDeterministic(t *testing.T) {
	arena, id := dcProvider(0.5, 2, 1)
	seg, err := New(arena, id, true, 0, 2, 0, DefaultSettings())
	require.NoError(t, err)

	out1 := make([]float32, 1000)
	out2 := make([]float32, 1000)
	require.NoError(t, seg.Render(0, 1000, testRate, 1, out1))
	require.NoError(t, seg.Render(0, 1000, testRate, 1, out2))
	assert.Equal(t, out1, out2)
}

func TestSegment_VolumeScalesOutput(t *testing.T) {
	arena, id := dcProvider(1.0, 1, 1)
	settings := DefaultSettings()
	settings.Volume = 0.25
	seg, err := New(arena, id, true, 0, 1, 0, settings)
	require.NoError(t, err)

	out := make([]float32, 1000)
	require.NoError(t, seg.Render(0, 1000, testRate, 1, out))
	for _, v := range out[500:] {
		assert.InDelta(t, 0.25, float64(v), 1e-3)
	}
}

func TestSegment_RejectsNonPositiveSourceDuration(t *testing.T) {
	arena, id := dcProvider(1.0, 1, 1)
	_, err := New(arena, id, true, 0, 0, 0, DefaultSettings())
	assert.Error(t, err)
}

func TestSegment_TargetStretchDurationRecomputesFactor(t *testing.T) {
	arena, id := dcProvider(1.0, 2, 1)
	settings := DefaultSettings()
	target := 4.0
	settings.TargetStretchDuration = &target
	seg, err := New(arena, id, true, 0, 2, 0, settings)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, seg.Settings.TimeStretchFactor, 1e-9)
	assert.InDelta(t, 4.0, seg.onePassDuration(), 1e-6)
}

func TestSegment_StretchedRenderPersistsAcrossBlockBoundaries(t *testing.T) {
	arena, id := dcProvider(0.5, 4, 1)
	settings := DefaultSettings()
	settings.TimeStretchFactor = 1.5
	seg, err := New(arena, id, true, 0, 4, 0, settings)
	require.NoError(t, err)

	block := 512
	out := make([]float32, block)
	timeline := 0.0
	for i := 0; i < 10; i++ {
		require.NoError(t, seg.Render(timeline, block, testRate, 1, out))
		timeline += float64(block) / testRate
	}
	assert.NotNil(t, seg.stretcher)
	assert.True(t, seg.stretchStarted)
}

func TestSegment_IntersectsBoundary(t *testing.T) {
	arena, id := dcProvider(1.0, 1, 1)
	seg, err := New(arena, id, true, 0, 1, 1.0, DefaultSettings())
	require.NoError(t, err)
	assert.False(t, seg.Intersects(0, 1.0)) // ends exactly at segment start
	assert.True(t, seg.Intersects(0.5, 1.0))
}
