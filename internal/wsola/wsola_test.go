package wsola

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freqHz, sampleRate float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freqHz * float64(i) / sampleRate))
	}
	return out
}

// runThrough pushes all of in through s in blockFrames-sized chunks and
// returns all emitted samples (mono).
func runThrough(t *testing.T, s *Stretcher, in []float32, blockFrames int) []float32 {
	t.Helper()
	var out []float32
	scratch := make([]float32, blockFrames)
	for i := 0; i < len(in); i += blockFrames {
		end := i + blockFrames
		if end > len(in) {
			end = len(in)
		}
		chunk := in[i:end]
		written, _, _ := s.Process(chunk, scratch)
		out = append(out, scratch[:written]...)
		for written == len(scratch) {
			written, _, _ = s.Process(nil, scratch)
			out = append(out, scratch[:written]...)
		}
	}
	flushed := make([]float32, s.WindowFrames()*2)
	n := s.Flush(flushed)
	out = append(out, flushed[:n]...)
	return out
}

// TestIdentityPassthroughAtUnitySpeed covers §8: at speed 1.0 with
// search_radius 0, output equals input after warm-up (window-hop samples).
func TestIdentityPassthroughAtUnitySpeed(t *testing.T) {
	s, err := New(1, Config{WindowFrames: 256, SynthesisHopFrames: 128, SearchRadiusFrames: 0})
	require.NoError(t, err)
	require.NoError(t, s.SetSpeed(1.0))

	in := sineWave(440, 48000, 4000)
	out := runThrough(t, s, in, 512)

	warmup := s.WindowFrames() - s.SynthesisHopFrames()
	n := len(in)
	if len(out) < n {
		n = len(out)
	}
	for i := warmup; i < n; i++ {
		assert.InDelta(t, in[i], out[i], 1e-5, "sample %d", i)
	}
}

// TestPitchPreservedAtNonUnitySpeed covers §8: a time-stretched sine retains
// its dominant frequency bin under a DFT peak search.
func TestPitchPreservedAtNonUnitySpeed(t *testing.T) {
	s, err := New(1, Config{WindowFrames: 2048, SynthesisHopFrames: 1024, SearchRadiusFrames: 256})
	require.NoError(t, err)
	require.NoError(t, s.SetSpeed(1.5))

	const sampleRate = 48000.0
	const freq = 440.0
	in := sineWave(freq, sampleRate, 96000)
	out := runThrough(t, s, in, 1024)

	require.Greater(t, len(out), 8192)
	window := out[len(out)-8192:]
	peakBin := dftPeakBin(window)
	peakFreq := float64(peakBin) * sampleRate / float64(len(window))

	assert.InDelta(t, freq, peakFreq, sampleRate/float64(len(window))*3)
}

// dftPeakBin returns the index (in [1, N/2)) of the largest-magnitude bin of
// a naive DFT, sufficient for a coarse peak-frequency check in tests.
func dftPeakBin(samples []float32) int {
	n := len(samples)
	bestBin := 1
	bestMag := -1.0
	for k := 1; k < n/2; k++ {
		var re, im float64
		for i, s := range samples {
			angle := -2 * math.Pi * float64(k) * float64(i) / float64(n)
			re += float64(s) * math.Cos(angle)
			im += float64(s) * math.Sin(angle)
		}
		mag := re*re + im*im
		if mag > bestMag {
			bestMag = mag
			bestBin = k
		}
	}
	return bestBin
}

// TestSourceSamplesRepresentedTracksSpeed covers §8: over a long run the
// cumulative source_samples_represented stays within a small bound of
// emitted frames * analysis hop / synthesis hop.
func TestSourceSamplesRepresentedTracksSpeed(t *testing.T) {
	s, err := New(1, Config{WindowFrames: 1024, SynthesisHopFrames: 512, SearchRadiusFrames: 128})
	require.NoError(t, err)
	speed := 1.25
	require.NoError(t, s.SetSpeed(speed))

	in := sineWave(220, 48000, 480000) // 10s @ 48kHz
	scratch := make([]float32, 4096)
	var totalSource float64
	var totalEmitted int
	for i := 0; i < len(in); i += 2048 {
		end := i + 2048
		if end > len(in) {
			end = len(in)
		}
		written, _, src := s.Process(in[i:end], scratch)
		totalSource += src
		totalEmitted += written
	}

	expected := float64(totalEmitted) * (float64(s.AnalysisHopFrames()) / float64(s.SynthesisHopFrames()))
	assert.InEpsilon(t, expected, totalSource, 0.05)
}

// TestNoLargeDiscontinuityAcrossSpeedChanges covers §8: changing speed
// mid-stream never introduces a discontinuity larger than a few samples'
// worth of full-scale jump (no clicks/pops beyond ~6dB of headroom).
func TestNoLargeDiscontinuityAcrossSpeedChanges(t *testing.T) {
	s, err := New(1, Config{WindowFrames: 1024, SynthesisHopFrames: 512, SearchRadiusFrames: 128})
	require.NoError(t, err)

	require.NoError(t, s.SetSpeed(1.0))
	in1 := sineWave(300, 48000, 24000)
	out1 := runThroughNoFlush(s, in1, 1024)

	require.NoError(t, s.SetSpeed(1.5))
	in2 := sineWave(300, 48000, 24000)
	out2 := runThroughNoFlush(s, in2, 1024)

	require.NoError(t, s.SetSpeed(0.7))
	in3 := sineWave(300, 48000, 24000)
	out3 := runThroughNoFlush(s, in3, 1024)

	all := append(append(out1, out2...), out3...)
	const maxStep = 1.4 // ~6dB of a 2.0 peak-to-peak sine step between samples
	for i := 1; i < len(all); i++ {
		diff := math.Abs(float64(all[i] - all[i-1]))
		assert.LessOrEqual(t, diff, maxStep, "discontinuity at sample %d", i)
	}
}

func runThroughNoFlush(s *Stretcher, in []float32, blockFrames int) []float32 {
	var out []float32
	scratch := make([]float32, blockFrames)
	for i := 0; i < len(in); i += blockFrames {
		end := i + blockFrames
		if end > len(in) {
			end = len(in)
		}
		written, _, _ := s.Process(in[i:end], scratch)
		out = append(out, scratch[:written]...)
	}
	return out
}

func TestConfigure_RejectsOddWindow(t *testing.T) {
	_, err := New(1, Config{WindowFrames: 257, SynthesisHopFrames: 128, SearchRadiusFrames: 0})
	assert.Error(t, err)
}

func TestConfigure_RejectsHopNotLessThanWindow(t *testing.T) {
	_, err := New(1, Config{WindowFrames: 256, SynthesisHopFrames: 256, SearchRadiusFrames: 0})
	assert.Error(t, err)
}

func TestNewFromPreset_Balanced(t *testing.T) {
	s, err := NewFromPreset(2, Balanced)
	require.NoError(t, err)
	assert.Equal(t, 2048, s.WindowFrames())
	assert.Equal(t, 1024, s.SynthesisHopFrames())
}

func TestSetChannels_Reallocates(t *testing.T) {
	s, err := New(1, Presets[Fast])
	require.NoError(t, err)
	s.SetChannels(2)
	assert.Equal(t, 2, s.Channels())
}
