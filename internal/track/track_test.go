package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuoYun-Team/soundflow-engine/internal/provider"
	"github.com/LuoYun-Team/soundflow-engine/internal/segment"
)

const testRate = 48000

func dcSegment(t *testing.T, value float32, seconds, timelineStart float64) *segment.Segment {
	t.Helper()
	n := int(seconds*testRate) * 1
	data := make([]float32, n)
	for i := range data {
		data[i] = value
	}
	arena := provider.NewArena()
	id := arena.Register(provider.NewMemoryProvider(data, testRate, 1), true)
	seg, err := segment.New(arena, id, true, 0, seconds, timelineStart, segment.DefaultSettings())
	require.NoError(t, err)
	return seg
}

func TestTrack_SumsOverlappingSegments(t *testing.T) {
	tr := New("a")
	tr.AddSegment(dcSegment(t, 0.5, 1, 0))
	tr.AddSegment(dcSegment(t, 0.5, 1, 0))

	out := make([]float32, 1000)
	require.NoError(t, tr.Render(0, 1000, testRate, 1, out))
	for _, v := range out[500:] {
		assert.InDelta(t, 1.0, float64(v), 1e-3)
	}
}

func TestTrack_MaxTimelineEnd(t *testing.T) {
	tr := New("a")
	tr.AddSegment(dcSegment(t, 1, 1, 0))
	tr.AddSegment(dcSegment(t, 1, 2, 5))
	assert.InDelta(t, 7.0, tr.MaxTimelineEnd(), 1e-6)
}

func TestTrack_ActiveRespectsMuteAndSolo(t *testing.T) {
	tr := New("a")
	assert.True(t, tr.Active(false))

	tr.Settings.IsMuted = true
	assert.False(t, tr.Active(false))
	assert.False(t, tr.Active(true))

	tr.Settings.IsMuted = false
	assert.False(t, tr.Active(true)) // another track soloed, this one isn't

	tr.Settings.IsSoloed = true
	assert.True(t, tr.Active(true))
}

func TestTrack_SegmentsOrderedByTimelineStart(t *testing.T) {
	tr := New("a")
	second := dcSegment(t, 1, 1, 5)
	first := dcSegment(t, 1, 1, 0)
	tr.AddSegment(second)
	tr.AddSegment(first)

	ordered := tr.Segments()
	require.Len(t, ordered, 2)
	assert.Same(t, first, ordered[0])
	assert.Same(t, second, ordered[1])
}

func TestTrack_RemoveSegment(t *testing.T) {
	tr := New("a")
	seg := dcSegment(t, 1, 1, 0)
	tr.AddSegment(seg)
	assert.True(t, tr.RemoveSegment(seg))
	assert.Empty(t, tr.Segments())
}
