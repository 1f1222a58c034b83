package enginemetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_RegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newCollector(reg)
	require.NotNil(t, c)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestGet_NeverReturnsNil(t *testing.T) {
	assert.NotNil(t, Get())
}

func TestCollector_CountersAreUsable(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newCollector(reg)

	c.Underruns.WithLabelValues("mixer").Inc()
	c.BufferPoolHits.Inc()
	c.ActiveVoices.Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
