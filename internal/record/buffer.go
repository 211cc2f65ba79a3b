// Package record runs one capture session: frames from a capture source
// accumulate in a sample buffer, a chunk writer periodically flushes the
// unpersisted tail to the store, and stopping finalizes the recording.
package record

import "sync"

// Buffer holds every sample captured during one session, in arrival order.
// Samples are never evicted; the watermark tracks how many have been
// durably flushed, so at-least-once chunk writes and the final recording
// totals read from one place.
type Buffer struct {
	mu      sync.Mutex
	samples []float32
	flushed int
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds samples to the end of the buffer.
func (b *Buffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	b.samples = append(b.samples, samples...)
	b.mu.Unlock()
}

// Pending returns a copy of the samples past the watermark.
func (b *Buffer) Pending() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending := make([]float32, len(b.samples)-b.flushed)
	copy(pending, b.samples[b.flushed:])
	return pending
}

// MarkFlushed advances the watermark by n samples after a successful write.
func (b *Buffer) MarkFlushed(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushed += n
	if b.flushed > len(b.samples) {
		b.flushed = len(b.samples)
	}
}

// Len returns the total number of samples captured so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Flushed returns the watermark: how many samples are durably persisted.
func (b *Buffer) Flushed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushed
}
