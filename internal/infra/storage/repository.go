package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/recoverd/internal/reporting"
)

// EventRecord is a persisted reporting event.
type EventRecord struct {
	ID             string         `db:"id"`
	Kind           reporting.Kind `db:"kind"`
	ErrorID        string         `db:"error_id"`
	ErrorType      string         `db:"error_type"`
	Severity       string         `db:"severity"`
	Strategy       string         `db:"strategy"`
	RecoveryTimeMs int64          `db:"recovery_time_ms"`
	Payload        string         `db:"payload"` // JSON
	CreatedAt      time.Time      `db:"created_at"`
}

// EventRepository handles reporting event storage
type EventRepository interface {
	// Save stores one event
	Save(ctx context.Context, rec *EventRecord) error

	// Recent returns up to limit events, newest first
	Recent(ctx context.Context, limit int) ([]*EventRecord, error)

	// CountByKind counts events created at or after since
	CountByKind(ctx context.Context, since time.Time) (map[reporting.Kind]int, error)

	// DeleteOlderThan removes events created before cutoff and returns how many went
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewEventRecord flattens event into its stored form.
func NewEventRecord(event reporting.Event, now time.Time) (*EventRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	rec := &EventRecord{
		ID:        uuid.NewString(),
		Kind:      event.Kind(),
		Payload:   string(payload),
		CreatedAt: now.UTC(),
	}

	switch e := event.(type) {
	case reporting.ErrorObserved:
		rec.ErrorID = e.ErrorID
		rec.ErrorType = string(e.ErrorType)
		rec.Severity = string(e.ErrorSeverity)
	case reporting.RecoverySucceeded:
		rec.ErrorType = string(e.ErrorType)
		rec.Severity = string(e.ErrorSeverity)
		rec.Strategy = e.RecoveryStrategy
		rec.RecoveryTimeMs = e.RecoveryTimeMs
	}
	return rec, nil
}

// Sink adapts an EventRepository to reporting.Sink.
type Sink struct {
	repo EventRepository
	now  func() time.Time
}

var _ reporting.Sink = (*Sink)(nil)

// NewSink creates a sink writing into repo.
func NewSink(repo EventRepository) *Sink {
	return &Sink{repo: repo, now: time.Now}
}

// Send persists event.
func (s *Sink) Send(ctx context.Context, event reporting.Event) error {
	rec, err := NewEventRecord(event, s.now())
	if err != nil {
		return err
	}
	return s.repo.Save(ctx, rec)
}

// Close is a no-op; the repository is owned by the caller.
func (s *Sink) Close() error { return nil }
