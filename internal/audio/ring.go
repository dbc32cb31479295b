package audio

import "sync/atomic"

// Ring is a fixed-capacity single-producer/single-consumer ring buffer for
// audio samples. Write is called from the real-time capture callback and
// never allocates, locks or blocks: when the buffer is full the incoming
// samples are dropped and the overrun counter is incremented. Read is called
// from the cooperative consumer; reading from an empty buffer increments the
// underrun counter.
type Ring struct {
	buf  []float32
	mask uint64

	head      atomic.Uint64 // consumer position
	tail      atomic.Uint64 // producer position
	overruns  atomic.Uint64
	underruns atomic.Uint64
}

// NewRing creates a ring holding at least capacity samples. Capacity is
// rounded up to the next power of two so index wrapping is a mask.
func NewRing(capacity int) *Ring {
	if capacity < 2 {
		capacity = 2
	}
	size := uint64(1)
	for size < uint64(capacity) {
		size <<= 1
	}
	return &Ring{
		buf:  make([]float32, size),
		mask: size - 1,
	}
}

// Cap returns the sample capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Len returns the number of samples currently buffered.
func (r *Ring) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Write appends samples, dropping whatever does not fit. Returns the number
// of samples actually written. Producer side only.
func (r *Ring) Write(samples []float32) int {
	head := r.head.Load()
	tail := r.tail.Load()

	free := uint64(len(r.buf)) - (tail - head)
	n := uint64(len(samples))
	if n > free {
		r.overruns.Add(n - free)
		n = free
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(tail+i)&r.mask] = samples[i]
	}
	r.tail.Store(tail + n)
	return int(n)
}

// Read copies up to len(dst) samples into dst and returns the count.
// Consumer side only.
func (r *Ring) Read(dst []float32) int {
	head := r.head.Load()
	tail := r.tail.Load()

	avail := tail - head
	if avail == 0 {
		r.underruns.Add(1)
		return 0
	}
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	for i := uint64(0); i < n; i++ {
		dst[i] = r.buf[(head+i)&r.mask]
	}
	r.head.Store(head + n)
	return int(n)
}

// Overruns returns the total number of samples dropped because the consumer
// fell behind.
func (r *Ring) Overruns() uint64 { return r.overruns.Load() }

// Underruns returns the number of empty reads.
func (r *Ring) Underruns() uint64 { return r.underruns.Load() }
