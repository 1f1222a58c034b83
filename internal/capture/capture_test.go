package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuoYun-Team/soundflow-engine/internal/audioformat"
)

func testFormat(t *testing.T) audioformat.Format {
	t.Helper()
	f, err := audioformat.New(1000, 1, audioformat.LayoutMono)
	require.NoError(t, err)
	return f
}

func TestNew_RejectsNonPositiveRetention(t *testing.T) {
	_, err := New(testFormat(t), 0)
	assert.Error(t, err)
}

func TestBuffer_RetainsWrittenAudio(t *testing.T) {
	b, err := New(testFormat(t), 1*time.Second)
	require.NoError(t, err)

	samples := make([]float32, 500) // 0.5s at 1000Hz mono
	for i := range samples {
		samples[i] = float32(i)
	}
	b.Write(samples)

	assert.InDelta(t, 0.5, b.RetainedDuration().Seconds(), 0.05)
}

func TestBuffer_ExportBeforeAnyWriteFails(t *testing.T) {
	b, err := New(testFormat(t), 1*time.Second)
	require.NoError(t, err)
	_, err = b.Export(time.Now(), time.Second, time.Second)
	assert.Error(t, err)
}

func TestBuffer_ExportReturnsRetainedWindow(t *testing.T) {
	b, err := New(testFormat(t), 2*time.Second)
	require.NoError(t, err)

	samples := make([]float32, 1000) // 1s
	for i := range samples {
		samples[i] = float32(i)
	}
	b.Write(samples)

	out, err := b.Export(time.Now(), time.Second, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestBuffer_WriteWrapsPastCapacity(t *testing.T) {
	b, err := New(testFormat(t), 100*time.Millisecond)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		samples := make([]float32, 50)
		b.Write(samples)
	}

	assert.LessOrEqual(t, b.RetainedDuration(), 150*time.Millisecond)
}
