// Package audiobuf implements the ring-buffered sample queue (§2) and the
// SampleBuffer data model (§3): a fixed-capacity interleaved float32 FIFO
// with compacting shift semantics (§4.9), shared by the WSOLA kernel and
// any other streaming buffer in the engine.
//
// Samples in [0, ReadPos) are discardable history; samples in
// [ReadPos, Valid) are unread payload. Capacity is always a whole number of
// frames. No operation here allocates once the buffer is sized for the
// current channel count, so it is safe to call from the audio thread.
package audiobuf

// SampleBuffer is a fixed-capacity interleaved float32 queue.
type SampleBuffer struct {
	data     []float32
	channels int
	valid    int // valid_samples
	readPos  int // read_pos
}

// NewSampleBuffer allocates a buffer holding capacityFrames frames of
// channels samples each.
func NewSampleBuffer(channels, capacityFrames int) *SampleBuffer {
	if channels <= 0 {
		channels = 1
	}
	if capacityFrames < 0 {
		capacityFrames = 0
	}
	return &SampleBuffer{
		data:     make([]float32, channels*capacityFrames),
		channels: channels,
	}
}

// Channels returns the frame width.
func (b *SampleBuffer) Channels() int { return b.channels }

// CapacitySamples returns the raw sample capacity.
func (b *SampleBuffer) CapacitySamples() int { return len(b.data) }

// CapacityFrames returns the capacity in whole frames.
func (b *SampleBuffer) CapacityFrames() int {
	if b.channels == 0 {
		return 0
	}
	return len(b.data) / b.channels
}

// ValidSamples returns the number of samples written and not yet discarded.
func (b *SampleBuffer) ValidSamples() int { return b.valid }

// ReadPos returns the index of the first unread sample.
func (b *SampleBuffer) ReadPos() int { return b.readPos }

// UnreadSamples returns the number of unread samples currently buffered.
func (b *SampleBuffer) UnreadSamples() int { return b.valid - b.readPos }

// UnreadFrames returns UnreadSamples in whole frames.
func (b *SampleBuffer) UnreadFrames() int {
	if b.channels == 0 {
		return 0
	}
	return b.UnreadSamples() / b.channels
}

// Raw exposes the underlying storage for zero-copy reads of
// [ReadPos, Valid). Callers must not retain the slice across a Compact or
// Append call.
func (b *SampleBuffer) Raw() []float32 { return b.data }

// At returns the sample at absolute index i (0 <= i < Valid).
func (b *SampleBuffer) At(i int) float32 { return b.data[i] }

// Grow ensures the buffer can hold at least capacityFrames frames,
// reallocating and copying unread payload if needed. Intended for
// configuration-time use only (not the audio thread's steady state).
func (b *SampleBuffer) Grow(capacityFrames int) {
	needed := capacityFrames * b.channels
	if needed <= len(b.data) {
		return
	}
	next := make([]float32, needed)
	copy(next, b.data[:b.valid])
	b.data = next
}

// SetChannels reallocates the buffer for a new channel count, discarding
// any buffered content. No-op if the channel count is unchanged.
func (b *SampleBuffer) SetChannels(channels int) {
	if channels == b.channels {
		return
	}
	frames := b.CapacityFrames()
	b.channels = channels
	b.data = make([]float32, channels*frames)
	b.valid = 0
	b.readPos = 0
}

// Append copies samples into the buffer, growing capacity if necessary.
// samples must be a whole number of frames.
func (b *SampleBuffer) Append(samples []float32) {
	needed := b.valid + len(samples)
	if needed > len(b.data) {
		next := make([]float32, needed)
		copy(next, b.data[:b.valid])
		b.data = next
	}
	copy(b.data[b.valid:needed], samples)
	b.valid = needed
}

// Advance marks n samples as discardable history (moves ReadPos forward).
// Does not itself reclaim space; call Compact to reclaim.
func (b *SampleBuffer) Advance(n int) {
	b.readPos += n
	if b.readPos > b.valid {
		b.readPos = b.valid
	}
}

// Reset clears all buffered content and cursors without releasing storage.
func (b *SampleBuffer) Reset() {
	b.valid = 0
	b.readPos = 0
}

// SetReadPos moves ReadPos forward to n, clamped to [0, Valid]; a value at
// or below the current ReadPos leaves it unchanged. Used by
// callers (e.g. WSOLA) that track their own notion of "discardable before
// here" rather than discarding strictly in read order.
func (b *SampleBuffer) SetReadPos(n int) {
	if n < 0 {
		n = 0
	}
	if n > b.valid {
		n = b.valid
	}
	if n > b.readPos {
		b.readPos = n
	}
}

// compactThresholdFraction sets the discardable-prefix size (in samples) at which
// opportunistic compaction kicks in, matching §4.2 step 5's "when the
// discardable prefix exceeds a threshold, compact the buffer". Expressed as
// a fraction of capacity so it scales with configured window sizes.
const compactThresholdFraction = 0.5

// MaybeCompact performs the shared compaction policy from §4.9: if
// ReadPos > 0 and the discardable prefix is large enough, shift
// [ReadPos, Valid) to the start. onShift, if non-nil, is invoked with the
// number of samples discarded so callers can adjust derived cursors (e.g.
// WSOLA's nominal_input_sample_pos) before valid/readPos are reset.
// Returns the number of samples shifted (0 if no compaction occurred).
func (b *SampleBuffer) MaybeCompact(onShift func(shifted int)) int {
	if b.readPos == 0 {
		return 0
	}
	threshold := int(float64(len(b.data)) * compactThresholdFraction)
	if threshold < 1 {
		threshold = 1
	}
	if b.readPos < threshold && b.valid < len(b.data) {
		// Only force a compaction below the threshold once capacity is
		// exhausted; otherwise compaction is opportunistic, not mandatory.
		return 0
	}
	return b.Compact(onShift)
}

// Compact unconditionally shifts [ReadPos, Valid) to the start of the
// buffer, as described in §4.9.
func (b *SampleBuffer) Compact(onShift func(shifted int)) int {
	if b.readPos == 0 {
		return 0
	}
	shifted := b.readPos
	if onShift != nil {
		onShift(shifted)
	}
	remaining := b.valid - b.readPos
	copy(b.data[:remaining], b.data[b.readPos:b.valid])
	b.valid = remaining
	b.readPos = 0
	return shifted
}
