package push

import (
	"sync"

	"github.com/trekops/unifi-reporter/internal/model"
)

// ringBuffer is a bounded, mutex-guarded FIFO of LogEntry values. When
// full, the oldest entry is overwritten and Dropped increments rather than
// blocking the writer or growing without bound.
type ringBuffer struct {
	mu      sync.Mutex
	entries []model.LogEntry
	head    int
	size    int
	cap     int
	dropped int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &ringBuffer{entries: make([]model.LogEntry, capacity), cap: capacity}
}

// Push appends an entry, overwriting the oldest if the buffer is full.
func (r *ringBuffer) Push(e model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.head + r.size) % r.cap
	if r.size == r.cap {
		r.head = (r.head + 1) % r.cap
		r.dropped++
	} else {
		r.size++
	}
	r.entries[idx] = e
}

// Drain removes and returns every buffered entry in arrival order.
func (r *ringBuffer) Drain() []model.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.LogEntry, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.entries[(r.head+i)%r.cap]
	}
	r.head = 0
	r.size = 0
	return out
}

// Dropped returns the running count of entries overwritten while the
// buffer was at capacity.
func (r *ringBuffer) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
