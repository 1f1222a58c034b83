package audiobuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleBuffer_AppendAndRead(t *testing.T) {
	b := NewSampleBuffer(2, 4)
	b.Append([]float32{1, 2, 3, 4})
	assert.Equal(t, 4, b.ValidSamples())
	assert.Equal(t, 0, b.ReadPos())
	assert.Equal(t, 2, b.UnreadFrames())
}

func TestSampleBuffer_CompactShiftsUnreadToStart(t *testing.T) {
	b := NewSampleBuffer(1, 8)
	b.Append([]float32{1, 2, 3, 4, 5, 6})
	b.Advance(3)
	shifted := b.Compact(nil)
	assert.Equal(t, 3, shifted)
	assert.Equal(t, 0, b.ReadPos())
	assert.Equal(t, 3, b.ValidSamples())
	assert.Equal(t, float32(4), b.At(0))
	assert.Equal(t, float32(5), b.At(1))
	assert.Equal(t, float32(6), b.At(2))
}

func TestSampleBuffer_CompactNoOpWhenReadPosZero(t *testing.T) {
	b := NewSampleBuffer(1, 8)
	b.Append([]float32{1, 2, 3})
	assert.Equal(t, 0, b.Compact(nil))
}

func TestSampleBuffer_CompactInvokesOnShiftForDerivedCursors(t *testing.T) {
	b := NewSampleBuffer(1, 8)
	b.Append([]float32{1, 2, 3, 4, 5})
	b.Advance(2)
	nominal := 10
	b.Compact(func(shifted int) { nominal -= shifted })
	assert.Equal(t, 8, nominal)
}

func TestSampleBuffer_SetChannelsResets(t *testing.T) {
	b := NewSampleBuffer(1, 4)
	b.Append([]float32{1, 2, 3})
	b.SetChannels(2)
	assert.Equal(t, 2, b.Channels())
	assert.Equal(t, 0, b.ValidSamples())
}

func TestSampleBuffer_GrowPreservesUnread(t *testing.T) {
	b := NewSampleBuffer(1, 2)
	b.Append([]float32{1, 2})
	b.Grow(10)
	assert.Equal(t, 10, b.CapacityFrames())
	assert.Equal(t, float32(1), b.At(0))
	assert.Equal(t, float32(2), b.At(1))
}
