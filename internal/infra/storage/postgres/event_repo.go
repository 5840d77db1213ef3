package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/recoverd/internal/infra/storage"
	"github.com/vietddude/recoverd/internal/reporting"
)

// EventRepo implements storage.EventRepository using PostgreSQL.
type EventRepo struct {
	db *DB
}

var _ storage.EventRepository = (*EventRepo)(nil)

// NewEventRepo creates a new PostgreSQL event repository.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Save inserts one event.
func (r *EventRepo) Save(ctx context.Context, rec *storage.EventRecord) error {
	query := `
		INSERT INTO recovery_events (id, kind, error_id, error_type, severity, strategy, recovery_time_ms, payload, created_at)
		VALUES (:id, :kind, :error_id, :error_type, :severity, :strategy, :recovery_time_ms, :payload, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (r *EventRepo) Recent(ctx context.Context, limit int) ([]*storage.EventRecord, error) {
	query := `
		SELECT id, kind, error_id, error_type, severity, strategy, recovery_time_ms, payload, created_at
		FROM recovery_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	var out []*storage.EventRecord
	if err := r.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return out, nil
}

// CountByKind counts events created at or after since.
func (r *EventRepo) CountByKind(ctx context.Context, since time.Time) (map[reporting.Kind]int, error) {
	query := `
		SELECT kind, COUNT(*) AS n
		FROM recovery_events
		WHERE created_at >= $1
		GROUP BY kind
	`
	var rows []struct {
		Kind reporting.Kind `db:"kind"`
		N    int            `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	counts := make(map[reporting.Kind]int, len(rows))
	for _, row := range rows {
		counts[row.Kind] = row.N
	}
	return counts, nil
}

// DeleteOlderThan removes events created before cutoff.
func (r *EventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recovery_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}
	return res.RowsAffected()
}
