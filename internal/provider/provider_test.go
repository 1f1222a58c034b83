package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProvider_ReadToEndOfStream(t *testing.T) {
	p := NewMemoryProvider([]float32{1, 2, 3, 4}, 48000, 2)
	out := make([]float32, 2)

	n := p.Read(out)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{1, 2}, out)

	n = p.Read(out)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{3, 4}, out)

	var eosFired bool
	p.OnEndOfStream(func() { eosFired = true })
	n = p.Read(out)
	assert.Equal(t, 0, n)
	assert.True(t, eosFired)
}

func TestMemoryProvider_SeekResetsEOS(t *testing.T) {
	p := NewMemoryProvider([]float32{1, 2, 3, 4}, 48000, 1)
	out := make([]float32, 4)
	p.Read(out)
	require.NoError(t, p.Seek(0))

	var moved int64 = -1
	p.OnPositionChanged(func(pos int64) { moved = pos })
	n := p.Read(out[:2])
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), moved)
}

func TestMemoryProvider_SeekOutOfRangeRejected(t *testing.T) {
	p := NewMemoryProvider([]float32{1, 2}, 48000, 1)
	err := p.Seek(5)
	assert.Error(t, err)
}

func TestArena_RegisterLookupRelease(t *testing.T) {
	a := NewArena()
	p := NewMemoryProvider([]float32{1, 2}, 48000, 1)
	id := a.Register(p, true)

	got, err := a.Lookup(id)
	require.NoError(t, err)
	assert.Same(t, p, got.(*MemoryProvider))
	assert.True(t, a.Owned(id))
	assert.Equal(t, 1, a.Count())

	a.Release(id)
	assert.Equal(t, 0, a.Count())
	_, err = a.Lookup(id)
	assert.Error(t, err)
}

func TestArena_UnownedRegistration(t *testing.T) {
	a := NewArena()
	p := NewMemoryProvider(nil, 48000, 1)
	id := a.Register(p, false)
	assert.False(t, a.Owned(id))
}
