// Package capture implements the pre/post-roll capture buffer named in
// SPEC_FULL.md's supplemented features: a ring buffer that continuously
// retains the last N seconds of a segment's (or any component's) rendered
// output so a control thread can later export "the last 10s around time T"
// without re-rendering.
//
// Grounded on the teacher's internal/audiocore/capture.CircularBuffer
// (time-addressed, fixed-capacity, wrap-around retention) but backed by
// smallnest/ringbuffer instead of the teacher's hand-rolled byte ring,
// matching SPEC_FULL.md's domain-stack wiring table. Never part of the
// audio thread's critical section beyond a non-blocking copy out of
// whatever block the caller already produced (§9: "never runs on the
// audio thread's critical section beyond a non-blocking copy").
package capture

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/smallnest/ringbuffer"

	"github.com/LuoYun-Team/soundflow-engine/internal/audioformat"
	"github.com/LuoYun-Team/soundflow-engine/internal/engineerr"
)

const bytesPerSample = 4 // interleaved float32

// Buffer retains the most recent RetentionSeconds of audio in a
// fixed-capacity wrap-around ring, addressed by wall-clock time.
type Buffer struct {
	mu         sync.Mutex
	ring       *ringbuffer.RingBuffer
	format     audioformat.Format
	retention  time.Duration
	startTime  time.Time
	started    bool
	bytesTotal int64 // monotonically increasing count of bytes ever written
}

// New allocates a capture buffer sized to hold retention seconds of audio
// in the given format.
func New(format audioformat.Format, retention time.Duration) (*Buffer, error) {
	if retention <= 0 {
		return nil, engineerr.Newf("capture retention must be positive, got %v", retention).
			Component("capture").Kind(engineerr.KindValidation).Build()
	}
	bytesPerSecond := format.SampleRateHz * format.Channels * bytesPerSample
	capacity := int(retention.Seconds()*float64(bytesPerSecond)) + bytesPerSample
	return &Buffer{
		ring:      ringbuffer.New(capacity),
		format:    format,
		retention: retention,
	}, nil
}

// Write appends one rendered block (interleaved float32) to the ring,
// overwriting the oldest retained audio once at capacity. It allocates a
// byte slice per call and takes the buffer's mutex, which Export also
// holds while it copies the retained audio out.
func (b *Buffer) Write(samples []float32) {
	if len(samples) == 0 {
		return
	}
	raw := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(s))
	}

	b.mu.Lock()
	if !b.started {
		b.startTime = time.Now()
		b.started = true
	}
	// A capacity-sized ring overwrites oldest data once full; smallnest's
	// RingBuffer.Write reports a short write instead of wrapping, so drain
	// the overflow's worth of old bytes first to make room.
	if free := b.ring.Free(); free < len(raw) {
		discard := len(raw) - free
		tmp := make([]byte, discard)
		_, _ = b.ring.Read(tmp)
	}
	_, _ = b.ring.Write(raw)
	b.bytesTotal += int64(len(raw))
	b.mu.Unlock()
}

// bytesPerSecond returns this buffer's byte rate for time<->offset math.
func (b *Buffer) bytesPerSecond() int {
	return b.format.SampleRateHz * b.format.Channels * bytesPerSample
}

// Export returns the retained interleaved float32 samples covering
// [centerTime - before, centerTime + after], clamped to what is actually
// retained. Intended for a control-thread "export the last N seconds
// around timestamp T" request (SPEC_FULL.md supplemented feature).
func (b *Buffer) Export(centerTime time.Time, before, after time.Duration) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil, engineerr.Newf("capture buffer has no data yet").
			Component("capture").Kind(engineerr.KindInvalidOperation).Build()
	}

	retainedBytes := b.ring.Length()
	oldestTime := time.Now().Add(-time.Duration(float64(retainedBytes) / float64(b.bytesPerSecond()) * float64(time.Second)))

	start := centerTime.Add(-before)
	end := centerTime.Add(after)
	if start.Before(oldestTime) {
		start = oldestTime
	}
	now := time.Now()
	if end.After(now) {
		end = now
	}
	if !end.After(start) {
		return nil, engineerr.Newf("requested capture window is empty").
			Component("capture").Kind(engineerr.KindValidation).Build()
	}

	// Peek without consuming: copy the ring's retained bytes out, slice the
	// requested window, then restore by writing back (Read drains the
	// underlying buffer; ringbuffer exposes no peek, so round-trip it).
	all := make([]byte, retainedBytes)
	n, _ := b.ring.Read(all)
	all = all[:n]
	_, _ = b.ring.Write(all)

	startOffset := int(start.Sub(oldestTime).Seconds() * float64(b.bytesPerSecond()))
	endOffset := int(end.Sub(oldestTime).Seconds() * float64(b.bytesPerSecond()))
	startOffset = clampInt(startOffset, 0, len(all))
	endOffset = clampInt(endOffset, startOffset, len(all))

	window := all[startOffset:endOffset]
	samples := make([]float32, len(window)/bytesPerSample)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(window[i*4:]))
	}
	return samples, nil
}

// RetainedDuration reports how much audio is currently retained.
func (b *Buffer) RetainedDuration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Duration(float64(b.ring.Length()) / float64(b.bytesPerSecond()) * float64(time.Second))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
