package provider

import (
	"sync"

	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
)

// MemoryProvider is a seekable Provider backed by an in-memory interleaved
// float32 buffer. It grounds every decoder-backed provider (wav/flac) the
// same way the teacher's tests stub out myaudio sources with fixed slices.
type MemoryProvider struct {
	mu sync.Mutex

	data       []float32
	sampleRate int
	channels   int
	pos        int64 // in samples, not frames

	eosFired bool
	onEOS    []func()
	onPos    []func(int64)
}

// NewMemoryProvider wraps data (interleaved, a whole number of frames) as a
// seekable Provider.
func NewMemoryProvider(data []float32, sampleRate, channels int) *MemoryProvider {
	return &MemoryProvider{
		data:       data,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

func (m *MemoryProvider) Read(out []float32) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := int64(len(m.data)) - m.pos
	if remaining <= 0 {
		if !m.eosFired {
			m.eosFired = true
			m.fireEOS()
		}
		return 0
	}
	n := int64(len(out))
	if n > remaining {
		n = remaining
	}
	copy(out[:n], m.data[m.pos:m.pos+n])
	m.pos += n
	m.firePos()
	return int(n)
}

func (m *MemoryProvider) LengthSamples() int64 { return int64(len(m.data)) }
func (m *MemoryProvider) SampleRate() int      { return m.sampleRate }
func (m *MemoryProvider) ChannelCount() int    { return m.channels }
func (m *MemoryProvider) CanSeek() bool        { return true }

func (m *MemoryProvider) Seek(sampleOffset int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sampleOffset < 0 || sampleOffset > int64(len(m.data)) {
		return engineerr.Newf("seek offset %d out of range [0,%d]", sampleOffset, len(m.data)).
			Component("provider").Kind(engineerr.KindValidation).Build()
	}
	m.pos = sampleOffset
	m.eosFired = false
	m.firePos()
	return nil
}

func (m *MemoryProvider) OnEndOfStream(fn func())                 { m.onEOS = append(m.onEOS, fn) }
func (m *MemoryProvider) OnPositionChanged(fn func(sampleOffset int64)) {
	m.onPos = append(m.onPos, fn)
}

func (m *MemoryProvider) fireEOS() {
	for _, fn := range m.onEOS {
		fn()
	}
}

func (m *MemoryProvider) firePos() {
	for _, fn := range m.onPos {
		fn(m.pos)
	}
}
