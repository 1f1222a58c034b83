package wavcodec

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LuoYun-Team/soundflow-engine/internal/audioformat"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	format, err := audioformat.New(44100, 1, audioformat.LayoutMono)
	require.NoError(t, err)

	f, err := os.CreateTemp(t.TempDir(), "roundtrip-*.wav")
	require.NoError(t, err)
	defer f.Close()

	enc := NewEncoder(f, format)
	samples := []float32{0, 0.25, -0.25, 0.5, -0.5}
	n, err := enc.Encode(samples)
	require.NoError(t, err)
	assert.Equal(t, len(samples), n)
	require.NoError(t, enc.Close())

	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	decoded, decodedFormat, err := Decode(f)
	require.NoError(t, err)
	assert.Equal(t, format.SampleRateHz, decodedFormat.SampleRateHz)
	assert.Equal(t, format.Channels, decodedFormat.Channels)
	assert.Equal(t, int64(len(samples)), decoded.LengthSamples())

	out := make([]float32, len(samples))
	got := decoded.Read(out)
	assert.Equal(t, len(samples), got)
	for i := range samples {
		assert.InDelta(t, float64(samples[i]), float64(out[i]), 0.01)
	}
}

func TestDecode_RejectsNonWAVInput(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "garbage-*.bin")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString("not a wav file at all, just garbage bytes")
	require.NoError(t, err)
	_, err = f.Seek(0, 0)
	require.NoError(t, err)

	_, _, err = Decode(f)
	assert.Error(t, err)
}
