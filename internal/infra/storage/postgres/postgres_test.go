package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/infra/storage"
	"github.com/vietddude/recoverd/internal/reporting"
)

func TestPoolUsage(t *testing.T) {
	assert.Equal(t, 0.0, poolUsage(3, 0))
	assert.Equal(t, 50.0, poolUsage(5, 10))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "00001_create_recovery_events.sql", entries[0].Name())
}

func TestNewDB_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewDB(ctx, Config{URL: "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1", Driver: "postgres"})
	assert.Error(t, err)
}

// TestEventRepo runs against DATABASE_URL when set.
func TestEventRepo(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping postgres integration test")
	}

	ctx := context.Background()
	db, err := NewDB(ctx, Config{URL: url})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))

	start := time.Now().Add(-time.Second)
	repo := NewEventRepo(db)
	sink := storage.NewSink(repo)

	require.NoError(t, sink.Send(ctx, reporting.ErrorObserved{ErrorID: "err-pg", ErrorType: domain.ErrorTypeNetwork, ErrorSeverity: domain.SeverityMedium}))
	require.NoError(t, sink.Send(ctx, reporting.RecoverySucceeded{ErrorType: domain.ErrorTypeNetwork, RecoveryStrategy: "network-retry", RecoveryTimeMs: 40}))

	counts, err := repo.CountByKind(ctx, start)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts[reporting.KindErrorObserved], 1)
	assert.GreaterOrEqual(t, counts[reporting.KindRecoverySucceeded], 1)

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
