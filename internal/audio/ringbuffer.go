package audio

import "sync/atomic"

// DefaultRingBufferSize is the ring capacity in samples per channel.
const DefaultRingBufferSize = 8192

// RingBuffer is a single-producer single-consumer sample buffer. Neither
// side ever blocks: writes beyond the free space are dropped and reads of
// more than is buffered return short.
type RingBuffer struct {
	buf   []float32
	size  uint64
	read  atomic.Uint64 // total samples consumed
	write atomic.Uint64 // total samples produced
}

// NewRingBuffer creates a buffer holding capacity samples.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultRingBufferSize
	}
	return &RingBuffer{buf: make([]float32, capacity), size: uint64(capacity)}
}

// Write copies as many samples as fit and returns the number written.
func (r *RingBuffer) Write(samples []float32) int {
	w := r.write.Load()
	free := r.size - (w - r.read.Load())
	n := uint64(len(samples))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	start := w % r.size
	first := min(n, r.size-start)
	copy(r.buf[start:start+first], samples[:first])
	copy(r.buf[:n-first], samples[first:n])

	r.write.Store(w + n)
	return int(n)
}

// Read copies up to len(dst) buffered samples into dst and returns the count.
func (r *RingBuffer) Read(dst []float32) int {
	rd := r.read.Load()
	avail := r.write.Load() - rd
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	start := rd % r.size
	first := min(n, r.size-start)
	copy(dst[:first], r.buf[start:start+first])
	copy(dst[first:n], r.buf[:n-first])

	// A Clear that ran during the copy has already moved read past these
	// samples; they are stale and the clear stands.
	if !r.read.CompareAndSwap(rd, rd+n) {
		return 0
	}
	return int(n)
}

// Len returns the number of buffered samples.
func (r *RingBuffer) Len() int {
	return int(r.write.Load() - r.read.Load())
}

// Free returns the number of samples that can be written without dropping.
func (r *RingBuffer) Free() int {
	return int(r.size) - r.Len()
}

func (r *RingBuffer) Cap() int { return int(r.size) }

// Fill returns the buffered fraction in [0, 1].
func (r *RingBuffer) Fill() float32 {
	return float32(r.Len()) / float32(r.size)
}

// Clear discards buffered samples. It may run concurrently with Read; a Read
// overlapping it returns nothing.
func (r *RingBuffer) Clear() {
	r.read.Store(r.write.Load())
}
