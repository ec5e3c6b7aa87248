// Package ringbuf provides a bounded ring of recent event payloads. The hub
// records every broadcast envelope here so late-joining clients and the
// recent-events endpoint can catch up without a database round trip.
package ringbuf

import "sync"

// Ring is a fixed-capacity ring of JSON payloads. When full, the oldest
// entry is overwritten. Safe for concurrent use.
type Ring struct {
	mu      sync.RWMutex
	buf     [][]byte
	start   int // index of oldest entry
	size    int
	dropped uint64
}

// New creates a ring with the given capacity (minimum 1).
func New(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([][]byte, capacity)}
}

// Push appends a payload, evicting the oldest entry when full.
func (r *Ring) Push(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = payload
		r.size++
		return
	}
	r.buf[r.start] = payload
	r.start = (r.start + 1) % len(r.buf)
	r.dropped++
}

// Recent returns up to n payloads, oldest first. n <= 0 returns everything.
func (r *Ring) Recent(n int) [][]byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([][]byte, n)
	first := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+first+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of stored payloads.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Dropped returns how many entries have been evicted.
func (r *Ring) Dropped() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}
