// Package wavcodec implements the §6 Decoder/Encoder interfaces for the
// "wav" format identifier, backed by go-audio/wav, go-audio/audio and
// go-audio/riff — the same trio the teacher carries directly in its go.mod
// for its own internal/audiocore/export WAV path, here generalized from a
// one-shot bird-clip exporter into a full decode+encode codec pair usable
// both for loading source material into a provider.Provider and for
// rendering a composition back out to disk.
package wavcodec

import (
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/LuoYun-Team/soundflow-engine/internal/audioformat"
	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
	"github.com/LuoYun-Team/soundflow-engine/internal/provider"
)

// BitDepth is the PCM sample width used when encoding (§6: decoders always
// produce interleaved float32; only the on-disk container's own bit depth
// varies).
const BitDepth = 24

// Decode reads a whole WAV file from r and returns a seekable
// provider.Provider over its samples, normalized to interleaved float32 in
// [-1, 1], plus the format it was encoded in.
//
// This is a control-thread operation (file load), not called from the
// audio thread, so reading the entire file into memory up front is
// acceptable and keeps playback a simple, allocation-free MemoryProvider
// read thereafter.
func Decode(r io.Reader) (*provider.MemoryProvider, audioformat.Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, audioformat.Format{}, engineerr.Newf("not a valid WAV file").
			Component("wavcodec").Kind(engineerr.KindUnsupportedFormat).Build()
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, audioformat.Format{}, engineerr.New(err).
			Component("wavcodec").Kind(engineerr.KindCorruptChunk).Build()
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}

	samples := intBufferToFloat32(buf, bitDepth)

	layout := audioformat.LayoutStereo
	switch channels {
	case 1:
		layout = audioformat.LayoutMono
	case 2:
		layout = audioformat.LayoutStereo
	default:
		layout = audioformat.LayoutCustom
	}
	format, ferr := audioformat.New(sampleRate, channels, layout)
	if ferr != nil {
		return nil, audioformat.Format{}, ferr
	}

	return provider.NewMemoryProvider(samples, sampleRate, channels), format, nil
}

func intBufferToFloat32(buf *audio.IntBuffer, bitDepth int) []float32 {
	full := float64(int64(1) << (bitDepth - 1))
	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = float32(float64(v) / full)
	}
	return out
}

// Encoder writes interleaved float32 samples out as a WAV file, satisfying
// §6's Encoder interface (encode/close). It accumulates no more than one
// block at a time: each Encode call converts and writes immediately via
// the wrapped go-audio/wav.Encoder, which tracks its own running byte
// counts and rewrites the header on Close.
type Encoder struct {
	enc        *wav.Encoder
	channels   int
	sampleRate int
	bitDepth   int
}

// NewEncoder opens a WAV encoder writing to w in the given format at
// BitDepth-bit PCM.
func NewEncoder(w io.WriteSeeker, format audioformat.Format) *Encoder {
	return &Encoder{
		enc:        wav.NewEncoder(w, format.SampleRateHz, BitDepth, format.Channels, 1),
		channels:   format.Channels,
		sampleRate: format.SampleRateHz,
		bitDepth:   BitDepth,
	}
}

// Encode converts samples (interleaved float32 in [-1, 1]) to PCM and
// writes them, returning the number of samples consumed.
func (e *Encoder) Encode(samples []float32) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	full := float64(int64(1)<<(e.bitDepth-1)) - 1
	data := make([]int, len(samples))
	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		data[i] = int(v * full)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: e.channels, SampleRate: e.sampleRate},
		Data:           data,
		SourceBitDepth: e.bitDepth,
	}
	if err := e.enc.Write(buf); err != nil {
		return 0, engineerr.New(err).Component("wavcodec").Kind(engineerr.KindIO).Build()
	}
	return len(samples), nil
}

// Close finalizes the WAV header (RIFF/data chunk sizes) and flushes.
func (e *Encoder) Close() error {
	if err := e.enc.Close(); err != nil {
		return engineerr.New(err).Component("wavcodec").Kind(engineerr.KindIO).Build()
	}
	return nil
}
