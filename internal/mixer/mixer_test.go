package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constSource struct {
	value float32
	err   error
}

func (c constSource) Pull(frameCount int, out []float32) error {
	if c.err != nil {
		return c.err
	}
	for i := range out {
		out[i] = c.value
	}
	return nil
}

func TestMixer_EmptyProducesSilence(t *testing.T) {
	m := New()
	out := make([]float32, 100)
	require.NoError(t, m.Pull(100, out))
	for _, v := range out {
		assert.Zero(t, v)
	}
}

func TestMixer_SumsChildren(t *testing.T) {
	m := New()
	m.AddComponent("a", constSource{value: 0.3})
	m.AddComponent("b", constSource{value: 0.2})

	out := make([]float32, 10)
	require.NoError(t, m.Pull(10, out))
	for _, v := range out {
		assert.InDelta(t, 0.5, float64(v), 1e-6)
	}
	assert.Equal(t, 2, m.Len())
}

func TestMixer_RemoveComponentTakesEffectNextPull(t *testing.T) {
	m := New()
	m.AddComponent("a", constSource{value: 1.0})
	out := make([]float32, 4)
	require.NoError(t, m.Pull(4, out))

	m.RemoveComponent("a")
	require.NoError(t, m.Pull(4, out))
	assert.Equal(t, 0, m.Len())
	for _, v := range out {
		assert.Zero(t, v)
	}
}

func TestMixer_MasterVolumeScalesOutput(t *testing.T) {
	m := New()
	m.AddComponent("a", constSource{value: 1.0})
	m.MasterVolume = 0.5

	out := make([]float32, 4)
	require.NoError(t, m.Pull(4, out))
	for _, v := range out {
		assert.InDelta(t, 0.5, float64(v), 1e-6)
	}
}

func TestMixer_ChildErrorIsSkippedNotFatal(t *testing.T) {
	m := New()
	m.AddComponent("broken", constSource{err: assert.AnError})
	m.AddComponent("ok", constSource{value: 0.4})

	out := make([]float32, 4)
	require.NoError(t, m.Pull(4, out))
	for _, v := range out {
		assert.InDelta(t, 0.4, float64(v), 1e-6)
	}
}
