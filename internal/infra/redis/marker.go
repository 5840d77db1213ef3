package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/recoverd/internal/degrade"
)

// MarkerStore persists the safe-mode marker in Redis so it survives restarts.
type MarkerStore struct {
	client *Client
	ttl    time.Duration
}

var _ degrade.MarkerStore = (*MarkerStore)(nil)

// NewMarkerStore creates a marker store. A zero ttl keeps the marker until cleared.
func NewMarkerStore(client *Client, ttl time.Duration) *MarkerStore {
	return &MarkerStore{client: client, ttl: ttl}
}

// Set stores the marker, replacing any previous one.
func (s *MarkerStore) Set(ctx context.Context, m degrade.Marker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal marker: %w", err)
	}
	if err := s.client.rdb.Set(ctx, s.client.markerKey(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set marker: %w", err)
	}
	return nil
}

// Get returns the stored marker, or nil when none exists.
func (s *MarkerStore) Get(ctx context.Context) (*degrade.Marker, error) {
	data, err := s.client.rdb.Get(ctx, s.client.markerKey()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get marker: %w", err)
	}

	var m degrade.Marker
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal marker: %w", err)
	}
	return &m, nil
}

// Clear removes the marker.
func (s *MarkerStore) Clear(ctx context.Context) error {
	return s.client.rdb.Del(ctx, s.client.markerKey()).Err()
}
