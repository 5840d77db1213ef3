package degrade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	marker *Marker
	err    error
}

func (s *stubStore) Set(ctx context.Context, m Marker) error {
	if s.err != nil {
		return s.err
	}
	s.marker = &m
	return nil
}
func (s *stubStore) Get(ctx context.Context) (*Marker, error) { return s.marker, nil }
func (s *stubStore) Clear(ctx context.Context) error          { s.marker = nil; return nil }

func TestController_Switches(t *testing.T) {
	c := NewController(nil, nil)
	c.BypassCache()
	c.AssignControlVariant()

	st := c.Snapshot()
	assert.True(t, st.CacheBypassed)
	assert.True(t, st.ControlVariant)
	assert.False(t, st.SafeMode)
}

func TestController_SafeReloadPersistsMarkerAndCallsHook(t *testing.T) {
	store := &stubStore{}
	c := NewController(store, nil)

	var got *Marker
	c.SetReloadHook(func(m Marker) { got = &m })

	require.NoError(t, c.SafeReload(context.Background(), "err-1", "critical unrecovered"))
	require.NotNil(t, got)
	assert.Equal(t, "err-1", got.ErrorID)
	require.NotNil(t, store.marker)
	assert.Equal(t, "critical unrecovered", store.marker.Reason)
	assert.Equal(t, 1, c.Snapshot().Reloads)
}

func TestController_SafeReloadRunsHookWhenStoreFails(t *testing.T) {
	c := NewController(&stubStore{err: errors.New("redis down")}, nil)
	called := false
	c.SetReloadHook(func(Marker) { called = true })

	err := c.SafeReload(context.Background(), "err-2", "x")
	assert.Error(t, err)
	assert.True(t, called)
}

func TestController_SafeReloadWithoutHook(t *testing.T) {
	c := NewController(nil, nil)
	err := c.SafeReload(context.Background(), "err-3", "x")
	assert.ErrorIs(t, err, ErrNoReloadHook)
}

func TestController_Restore(t *testing.T) {
	c := NewController(nil, nil)
	c.Restore(Marker{Reason: "previous crash"})
	st := c.Snapshot()
	assert.True(t, st.SafeMode)
	assert.True(t, st.OptimizationsDisabled)
}
