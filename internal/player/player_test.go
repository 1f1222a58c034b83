package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuoYun-Team/soundflow-engine/internal/provider"
)

const testRate = 48000

func dcProvider(value float32, seconds float64) *provider.MemoryProvider {
	n := int(seconds * testRate)
	data := make([]float32, n)
	for i := range data {
		data[i] = value
	}
	return provider.NewMemoryProvider(data, testRate, 1)
}

func dcProviderStereo(value float32, seconds float64) *provider.MemoryProvider {
	frames := int(seconds * testRate)
	data := make([]float32, frames*2)
	for i := range data {
		data[i] = value
	}
	return provider.NewMemoryProvider(data, testRate, 2)
}

func TestPlayer_StoppedProducesSilence(t *testing.T) {
	p := New(dcProvider(1.0, 1))
	out := make([]float32, 100)
	require.NoError(t, p.Pull(100, out))
	for _, v := range out {
		assert.Zero(t, v)
	}
}

func TestPlayer_PlayingAtUnitySpeedPassesThrough(t *testing.T) {
	p := New(dcProvider(0.5, 1))
	p.Play()
	out := make([]float32, 100)
	require.NoError(t, p.Pull(100, out))
	for _, v := range out {
		assert.InDelta(t, 0.5, float64(v), 1e-6)
	}
}

func TestPlayer_VolumeScalesOutput(t *testing.T) {
	p := New(dcProvider(1.0, 1))
	p.Play()
	p.SetVolume(0.25)
	out := make([]float32, 10)
	require.NoError(t, p.Pull(10, out))
	for _, v := range out {
		assert.InDelta(t, 0.25, float64(v), 1e-6)
	}
}

func TestPlayer_PauseThenResume(t *testing.T) {
	p := New(dcProvider(1.0, 1))
	p.Play()
	out := make([]float32, 10)
	require.NoError(t, p.Pull(10, out))

	p.Pause()
	assert.Equal(t, Paused, p.State())
	require.NoError(t, p.Pull(10, out))
	for _, v := range out {
		assert.Zero(t, v)
	}

	p.Play()
	require.NoError(t, p.Pull(10, out))
	assert.NotZero(t, out[0])
}

func TestPlayer_StopRewindsPosition(t *testing.T) {
	p := New(dcProvider(1.0, 1))
	p.Play()
	out := make([]float32, 1000)
	require.NoError(t, p.Pull(1000, out))
	assert.Greater(t, p.Time(), 0.0)

	p.Stop()
	assert.Equal(t, Stopped, p.State())
	assert.Zero(t, p.Time())
}

func TestPlayer_SpeedChangeEngagesStretcher(t *testing.T) {
	p := New(dcProvider(0.5, 2))
	p.Play()
	require.NoError(t, p.SetPlaybackSpeed(1.5))
	out := make([]float32, 512)
	require.NoError(t, p.Pull(512, out))
}

func TestPlayer_RejectsNonPositiveSpeed(t *testing.T) {
	p := New(dcProvider(1.0, 1))
	assert.Error(t, p.SetPlaybackSpeed(0))
	assert.Error(t, p.SetPlaybackSpeed(-1))
}

func TestPlayer_DurationReflectsSourceLength(t *testing.T) {
	p := New(dcProvider(1.0, 2))
	assert.InDelta(t, 2.0, p.Duration(), 1e-6)
}

func TestPlayer_StereoDurationReflectsSourceLength(t *testing.T) {
	p := New(dcProviderStereo(1.0, 2))
	assert.InDelta(t, 2.0, p.Duration(), 1e-6)
}

func TestPlayer_StereoSeekLandsAtRequestedTime(t *testing.T) {
	p := New(dcProviderStereo(1.0, 4))
	require.NoError(t, p.Seek(2.0))
	assert.InDelta(t, 2.0, p.Time(), 1e-6)

	p.Play()
	out := make([]float32, 2*2)
	require.NoError(t, p.Pull(2, out))
	for _, v := range out {
		assert.InDelta(t, 1.0, float64(v), 1e-6)
	}
}

func TestPlayer_StereoUnitySpeedAdvancesTimeByFrames(t *testing.T) {
	p := New(dcProviderStereo(0.5, 1))
	p.Play()
	out := make([]float32, 100*2)
	require.NoError(t, p.Pull(100, out))
	assert.InDelta(t, 100.0/testRate, p.Time(), 1e-9)
}
