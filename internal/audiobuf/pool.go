package audiobuf

import "sync"

// FloatPool is a sync.Pool of reusable float32 scratch slices, grounded on
// the teacher's internal/audiocore BufferPool (sync.Pool-backed, Get/Put by
// size) adapted from byte slices to interleaved float32 slices so the
// Mixer, Track and Composition pull paths (§5: "no heap allocation on the audio thread
// once buffers are sized for the current block") can reuse one scratch
// buffer per block instead of allocating every Pull.
type FloatPool struct {
	pool sync.Pool
}

// NewFloatPool returns an empty pool.
func NewFloatPool() *FloatPool {
	return &FloatPool{}
}

// Get returns a []float32 of length n, reused from the pool when a
// sufficiently large one is available.
func (p *FloatPool) Get(n int) []float32 {
	if v := p.pool.Get(); v != nil {
		buf := v.([]float32)
		if cap(buf) >= n {
			return buf[:n]
		}
	}
	return make([]float32, n)
}

// Put returns buf to the pool for reuse.
func (p *FloatPool) Put(buf []float32) {
	p.pool.Put(buf) //nolint:staticcheck // storing a slice value is the documented sync.Pool idiom here
}
