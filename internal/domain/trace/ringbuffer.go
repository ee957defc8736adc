package trace

import "sync"

// RingBuffer keeps the most recent capture entries across test cases.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	size    int
	head    int
	count   int
	total   uint64
}

// NewRingBuffer creates a ring buffer that holds up to size entries.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 200
	}
	return &RingBuffer{
		entries: make([]Entry, size),
		size:    size,
	}
}

// Add appends an entry, overwriting the oldest if full.
func (rb *RingBuffer) Add(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = e
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
	rb.total++
}

// Last returns up to n entries in chronological order.
func (rb *RingBuffer) Last(n int) []Entry {
	return rb.Filter(n, nil)
}

// Filter returns up to n of the newest entries accepted by keep, oldest first.
// A nil keep accepts everything.
func (rb *RingBuffer) Filter(n int, keep func(Entry) bool) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || rb.count == 0 {
		return nil
	}

	picked := make([]Entry, 0, min(n, rb.count))
	for i := 0; i < rb.count && len(picked) < n; i++ {
		e := rb.entries[(rb.head-1-i+rb.size)%rb.size]
		if keep == nil || keep(e) {
			picked = append(picked, e)
		}
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return picked
}

// Count returns the number of entries currently stored.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Total returns the number of entries ever added.
func (rb *RingBuffer) Total() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.total
}
