package modifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuoYun-Team/soundflow-engine/internal/filter"
)

type doubler struct{}

func (doubler) TypeName() string { return "doubler" }
func (doubler) Process(samples []float32, channels int) {
	for i := range samples {
		samples[i] *= 2
	}
}

func TestChain_RunsInInsertionOrder(t *testing.T) {
	c := NewChain()
	c.Add(doubler{})
	c.Add(doubler{})

	samples := []float32{1, 1}
	c.Process(samples, 1)
	assert.Equal(t, float32(4), samples[0])
}

func TestChain_RemoveStopsApplying(t *testing.T) {
	c := NewChain()
	d := doubler{}
	c.Add(d)
	assert.True(t, c.Remove(d))
	assert.Equal(t, 0, c.Len())

	samples := []float32{1}
	c.Process(samples, 1)
	assert.Equal(t, float32(1), samples[0])
}

func TestBiquadModifier_TypeNameStable(t *testing.T) {
	lp, err := filter.NewLowPass(48000, 1000, 0.707, 1)
	require.NoError(t, err)
	m := &BiquadModifier{Chain: filter.NewChain()}
	require.NoError(t, m.Chain.AddFilter(lp))
	assert.Equal(t, "biquad_chain", m.TypeName())
}
