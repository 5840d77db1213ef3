package recovery

import (
	"sync"

	"github.com/vietddude/recoverd/internal/core/domain"
)

// DefaultHistoryCapacity is the number of records retained before eviction.
const DefaultHistoryCapacity = 1000

// History is a bounded, insertion-ordered store of error records.
// All reads and mutations of stored records go through its lock.
type History struct {
	mu       sync.RWMutex
	ring     []*domain.ErrorRecord
	start    int
	size     int
	byID     map[string]*domain.ErrorRecord
	capacity int
}

// NewHistory creates a history holding at most capacity records.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		ring:     make([]*domain.ErrorRecord, capacity),
		byID:     make(map[string]*domain.ErrorRecord, capacity),
		capacity: capacity,
	}
}

// Add appends rec, evicting the oldest record when full.
func (h *History) Add(rec *domain.ErrorRecord) (evicted *domain.ErrorRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size == h.capacity {
		evicted = h.ring[h.start]
		h.ring[h.start] = nil
		delete(h.byID, evicted.ID)
		h.start = (h.start + 1) % h.capacity
		h.size--
	}

	h.ring[(h.start+h.size)%h.capacity] = rec
	h.byID[rec.ID] = rec
	h.size++
	return evicted
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Capacity returns the retention bound.
func (h *History) Capacity() int {
	return h.capacity
}

// Snapshot returns deep copies of all records, oldest first.
func (h *History) Snapshot() []domain.ErrorRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]domain.ErrorRecord, 0, h.size)
	for i := 0; i < h.size; i++ {
		out = append(out, h.ring[(h.start+i)%h.capacity].Clone())
	}
	return out
}

// Get returns a copy of the retained record with the given id.
func (h *History) Get(id string) (domain.ErrorRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rec, ok := h.byID[id]
	if !ok {
		return domain.ErrorRecord{}, false
	}
	return rec.Clone(), true
}

// Read runs fn with rec under the read lock. rec need not be retained.
func (h *History) Read(rec *domain.ErrorRecord, fn func(r *domain.ErrorRecord)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn(rec)
}

// Mutate runs fn with rec under the write lock. rec need not be retained.
func (h *History) Mutate(rec *domain.ErrorRecord, fn func(r *domain.ErrorRecord)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(rec)
}

// Clear drops every record.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.ring)
	clear(h.byID)
	h.start = 0
	h.size = 0
}
