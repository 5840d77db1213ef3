package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/degrade"
	"github.com/vietddude/recoverd/internal/infra/storage"
	"github.com/vietddude/recoverd/internal/reporting"
)

func TestMarkerStore(t *testing.T) {
	ctx := context.Background()
	store := NewMarkerStore(NewMemoryStorage())

	m, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, m)

	require.NoError(t, store.Set(ctx, degrade.Marker{Reason: "critical", ErrorID: "err-1"}))
	m, err = store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "err-1", m.ErrorID)

	m.ErrorID = "mutated"
	again, _ := store.Get(ctx)
	assert.Equal(t, "err-1", again.ErrorID)

	require.NoError(t, store.Clear(ctx))
	m, _ = store.Get(ctx)
	assert.Nil(t, m)
}

func TestEventRepo_ThroughSink(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepo(NewMemoryStorage())
	sink := storage.NewSink(repo)

	require.NoError(t, sink.Send(ctx, reporting.ErrorObserved{ErrorID: "err-1", ErrorType: domain.ErrorTypeCache, ErrorSeverity: domain.SeverityLow}))
	require.NoError(t, sink.Send(ctx, reporting.RecoverySucceeded{ErrorType: domain.ErrorTypeCache, RecoveryStrategy: "cache-fallback", RecoveryTimeMs: 12}))

	recent, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, reporting.KindRecoverySucceeded, recent[0].Kind)
	assert.Equal(t, "cache-fallback", recent[0].Strategy)
	assert.Equal(t, int64(12), recent[0].RecoveryTimeMs)
	assert.Equal(t, "err-1", recent[1].ErrorID)

	counts, err := repo.CountByKind(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, counts[reporting.KindErrorObserved])
	assert.Equal(t, 1, counts[reporting.KindRecoverySucceeded])

	counts, err = repo.CountByKind(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestEventRepo_Capped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	store.maxEvents = 3
	repo := NewEventRepo(store)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, &storage.EventRecord{ID: string(rune('a' + i)), Kind: reporting.KindErrorObserved}))
	}

	recent, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "e", recent[0].ID)
	assert.Equal(t, "c", recent[2].ID)
	assert.Len(t, repo.Kinds(), 3)
}
