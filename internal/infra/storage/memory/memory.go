package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/recoverd/internal/degrade"
	"github.com/vietddude/recoverd/internal/infra/storage"
	"github.com/vietddude/recoverd/internal/reporting"
)

const defaultMaxEvents = 1000

type MemoryStorage struct {
	marker    *degrade.Marker
	events    []*storage.EventRecord // oldest first
	maxEvents int
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{maxEvents: defaultMaxEvents}
}

// -----------------------------------------------------------------------------
// Marker Store
// -----------------------------------------------------------------------------

type MarkerStore struct {
	store *MemoryStorage
}

var _ degrade.MarkerStore = (*MarkerStore)(nil)

func NewMarkerStore(store *MemoryStorage) *MarkerStore {
	return &MarkerStore{store: store}
}

func (s *MarkerStore) Set(ctx context.Context, m degrade.Marker) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.marker = &m
	return nil
}

func (s *MarkerStore) Get(ctx context.Context) (*degrade.Marker, error) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	if s.store.marker == nil {
		return nil, nil
	}
	m := *s.store.marker
	return &m, nil
}

func (s *MarkerStore) Clear(ctx context.Context) error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	s.store.marker = nil
	return nil
}

// -----------------------------------------------------------------------------
// Event Repository
// -----------------------------------------------------------------------------

type EventRepo struct {
	store *MemoryStorage
}

var _ storage.EventRepository = (*EventRepo)(nil)

func NewEventRepo(store *MemoryStorage) *EventRepo {
	return &EventRepo{store: store}
}

func (r *EventRepo) Save(ctx context.Context, rec *storage.EventRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *rec
	r.store.events = append(r.store.events, &cp)
	if over := len(r.store.events) - r.store.maxEvents; over > 0 {
		clear(r.store.events[:over])
		r.store.events = r.store.events[over:]
	}
	return nil
}

func (r *EventRepo) Recent(ctx context.Context, limit int) ([]*storage.EventRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	n := min(limit, len(r.store.events))
	out := make([]*storage.EventRecord, 0, n)
	for i := len(r.store.events) - 1; i >= 0 && len(out) < n; i-- {
		cp := *r.store.events[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *EventRepo) CountByKind(ctx context.Context, since time.Time) (map[reporting.Kind]int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	counts := make(map[reporting.Kind]int)
	for _, e := range r.store.events {
		if !e.CreatedAt.Before(since) {
			counts[e.Kind]++
		}
	}
	return counts, nil
}

func (r *EventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	before := len(r.store.events)
	r.store.events = slices.DeleteFunc(r.store.events, func(e *storage.EventRecord) bool {
		return e.CreatedAt.Before(cutoff)
	})
	return int64(before - len(r.store.events)), nil
}

// Kinds returns the stored event kinds, oldest first.
func (r *EventRepo) Kinds() []reporting.Kind {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	kinds := make([]reporting.Kind, 0, len(r.store.events))
	for _, e := range r.store.events {
		kinds = append(kinds, e.Kind)
	}
	return slices.Clip(kinds)
}
