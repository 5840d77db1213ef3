package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietddude/recoverd/internal/reporting"
)

// Envelope is the stored form of a reporting event.
type Envelope struct {
	Kind       reporting.Kind  `json:"kind"`
	ReportedAt time.Time       `json:"reported_at"`
	Payload    json.RawMessage `json:"payload"`
}

// EventSink pushes reporting events onto a capped Redis list, newest first.
type EventSink struct {
	client    *Client
	maxEvents int64
	now       func() time.Time
}

var _ reporting.Sink = (*EventSink)(nil)

// NewEventSink creates a sink keeping at most maxEvents entries.
func NewEventSink(client *Client, maxEvents int64) *EventSink {
	if maxEvents <= 0 {
		maxEvents = defaultMaxEvents
	}
	return &EventSink{client: client, maxEvents: maxEvents, now: time.Now}
}

// Send pushes event and trims the list in one pipeline.
func (s *EventSink) Send(ctx context.Context, event reporting.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data, err := json.Marshal(Envelope{
		Kind:       event.Kind(),
		ReportedAt: s.now().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	key := s.client.eventsKey()
	pipe := s.client.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.maxEvents-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push event: %w", err)
	}
	return nil
}

// Recent returns up to n stored events, newest first.
func (s *EventSink) Recent(ctx context.Context, n int64) ([]Envelope, error) {
	raw, err := s.client.rdb.LRange(ctx, s.client.eventsKey(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange failed: %w", err)
	}

	out := make([]Envelope, 0, len(raw))
	for _, r := range raw {
		var e Envelope
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("invalid stored event: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Close is a no-op; the client is owned by the caller.
func (s *EventSink) Close() error { return nil }
