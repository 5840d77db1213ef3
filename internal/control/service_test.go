package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/recoverd/internal/core/config"
	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/degrade"
	"github.com/vietddude/recoverd/internal/infra/storage/memory"
)

var discard = slog.New(slog.DiscardHandler)

func testConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Health.CheckInterval = 50 * time.Millisecond
	return cfg
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	opts.Logger = discard
	svc, err := New(context.Background(), testConfig(), opts)
	require.NoError(t, err)
	t.Cleanup(svc.close)
	return svc
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestService_IngestAndRecover(t *testing.T) {
	svc := newTestService(t, Options{})
	h := svc.Handler()

	res := do(t, h, http.MethodPost, "/errors", `{"type":"cache","severity":"medium","message":"stale entry"}`)
	require.Equal(t, http.StatusAccepted, res.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	id := created["id"]
	require.NotEmpty(t, id)

	svc.Orchestrator().Wait()

	res = do(t, h, http.MethodGet, "/errors/"+id, "")
	require.Equal(t, http.StatusOK, res.Code)

	var rec domain.ErrorRecord
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &rec))
	assert.True(t, rec.Recovered)
	assert.Equal(t, "stale entry", rec.Message)
	require.Len(t, rec.RecoveryAttempts, 1)
	assert.Equal(t, "cache-fallback", rec.RecoveryAttempts[0].Strategy)

	assert.True(t, svc.Controller().Snapshot().CacheBypassed)
}

func TestService_IngestDefaults(t *testing.T) {
	svc := newTestService(t, Options{})

	res := do(t, svc.Handler(), http.MethodPost, "/errors", `{"type":"bogus","severity":"weird"}`)
	require.Equal(t, http.StatusAccepted, res.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))
	svc.Orchestrator().Wait()

	rec, ok := svc.Orchestrator().Get(created["id"])
	require.True(t, ok)
	assert.Equal(t, domain.ErrorTypeCompatibility, rec.Type)
	assert.Equal(t, domain.SeverityMedium, rec.Severity)
	assert.Equal(t, "Unknown error", rec.Message)
}

func TestService_BadRequests(t *testing.T) {
	svc := newTestService(t, Options{})
	h := svc.Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/errors", "{").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPut, "/session", "nope").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/errors/missing", "").Code)
}

func TestService_IngestionDisabled(t *testing.T) {
	svc := newTestService(t, Options{})
	svc.Orchestrator().Cleanup()

	res := do(t, svc.Handler(), http.MethodPost, "/errors", `{"type":"network"}`)
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
}

func TestService_SessionFeedsRecords(t *testing.T) {
	svc := newTestService(t, Options{})
	h := svc.Handler()

	res := do(t, h, http.MethodPut, "/session", `{"variant":"checkout-b","device_type":"mobile","current_location":"/cart"}`)
	require.Equal(t, http.StatusOK, res.Code)

	id := svc.Orchestrator().HandleError(context.Background(), domain.ErrorInput{Type: domain.ErrorTypeAnalytics, Severity: domain.SeverityLow})
	svc.Orchestrator().Wait()

	rec, ok := svc.Orchestrator().Get(id)
	require.True(t, ok)
	assert.Equal(t, "checkout-b", rec.UserContext.VariantName())
	assert.Equal(t, domain.DeviceMobile, rec.UserContext.DeviceType)
	assert.Equal(t, "/cart", rec.UserContext.CurrentLocation)

	// Explicit client context wins over the session.
	res = do(t, h, http.MethodPost, "/errors", `{"type":"analytics","severity":"low","user_context":{"device_type":"tablet","current_location":"/home"}}`)
	require.Equal(t, http.StatusAccepted, res.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &created))

	rec, ok = svc.Orchestrator().Get(created["id"])
	require.True(t, ok)
	assert.Equal(t, domain.DeviceTablet, rec.UserContext.DeviceType)
	assert.Nil(t, rec.UserContext.Variant)
}

func TestService_HandlerPanicIsCaptured(t *testing.T) {
	svc := newTestService(t, Options{})
	svc.Hooks().Install()

	svc.httpServer.Handle("/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))

	res := do(t, svc.Handler(), http.MethodGet, "/boom", "")
	require.Equal(t, http.StatusInternalServerError, res.Code)

	id := res.Header().Get("X-Error-Id")
	require.NotEmpty(t, id)
	rec, ok := svc.Orchestrator().Get(id)
	require.True(t, ok)
	assert.Equal(t, "handler exploded", rec.Details)
}

func TestService_SafeModeStart(t *testing.T) {
	marker := &degrade.Marker{Reason: "critical error", ErrorID: "err-1"}
	svc := newTestService(t, Options{SafeMode: marker})

	assert.True(t, svc.SafeMode())
	state := svc.Controller().Snapshot()
	assert.True(t, state.SafeMode)
	assert.True(t, state.OptimizationsDisabled)
	assert.Nil(t, svc.grpcServer)
}

func TestService_RunStopsOnCancel(t *testing.T) {
	svc := newTestService(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var reload *degrade.Marker
	go func() {
		var err error
		reload, err = svc.Run(ctx)
		done <- err
	}()

	require.Eventually(t, svc.Hooks().Installed, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Nil(t, reload)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, svc.Hooks().Installed())
}

func crash(t *testing.T, svc *Service) {
	t.Helper()
	require.Eventually(t, svc.Hooks().Installed, time.Second, 5*time.Millisecond)
	svc.Orchestrator().HandleError(context.Background(), domain.ErrorInput{
		Type:     domain.ErrorTypeCompatibility,
		Severity: domain.SeverityCritical,
		Message:  "render loop crashed",
	})
}

func TestService_RunReturnsReloadMarker(t *testing.T) {
	svc := newTestService(t, Options{})

	type result struct {
		reload *degrade.Marker
		err    error
	}
	done := make(chan result, 1)
	go func() {
		m, err := svc.Run(context.Background())
		done <- result{m, err}
	}()

	crash(t, svc)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.NotNil(t, res.reload)
		assert.Equal(t, "critical error not recovered", res.reload.Reason)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after a safe reload")
	}
}

func newTestSupervisor(maxRestarts int, healthyAfter time.Duration) (*Supervisor, chan *Service) {
	started := make(chan *Service, 8)
	sup := &Supervisor{
		cfg:          testConfig(),
		log:          discard,
		markers:      memory.NewMarkerStore(memory.NewMemoryStorage()),
		maxRestarts:  maxRestarts,
		restartDelay: time.Millisecond,
		healthyAfter: healthyAfter,
		onStart:      func(s *Service) { started <- s },
	}
	return sup, started
}

func nextService(t *testing.T, started <-chan *Service) *Service {
	t.Helper()
	select {
	case svc := <-started:
		return svc
	case <-time.After(5 * time.Second):
		t.Fatal("service was not started")
		return nil
	}
}

func TestSupervisor_BudgetResetsAfterHealthyRun(t *testing.T) {
	sup, started := newTestSupervisor(1, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	// Each reload follows a run longer than healthyAfter, so the budget of one never runs out.
	for i := 0; i < 3; i++ {
		svc := nextService(t, started)
		time.Sleep(60 * time.Millisecond)
		crash(t, svc)
	}

	last := nextService(t, started)
	assert.True(t, last.SafeMode())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisor_GivesUpOnRapidReloads(t *testing.T) {
	sup, started := newTestSupervisor(1, time.Hour)

	done := make(chan error, 1)
	go func() { done <- sup.Run(context.Background()) }()

	crash(t, nextService(t, started))
	crash(t, nextService(t, started))

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "giving up")
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor kept restarting")
	}
}

func TestSupervisor_RestartsInSafeMode(t *testing.T) {
	markers := memory.NewMarkerStore(memory.NewMemoryStorage())
	sup := &Supervisor{
		cfg:          testConfig(),
		log:          discard,
		markers:      markers,
		maxRestarts:  defaultMaxRestarts,
		restartDelay: 10 * time.Millisecond,
	}

	started := make(chan *Service, 4)
	sup.onStart = func(s *Service) { started <- s }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	first := <-started
	assert.False(t, first.SafeMode())

	require.Eventually(t, first.Hooks().Installed, time.Second, 5*time.Millisecond)
	first.Orchestrator().HandleError(ctx, domain.ErrorInput{
		Type:     domain.ErrorTypeCompatibility,
		Severity: domain.SeverityCritical,
		Message:  "render loop crashed",
	})

	var second *Service
	select {
	case second = <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("service was not restarted")
	}
	assert.True(t, second.SafeMode())
	assert.True(t, second.Controller().Snapshot().SafeMode)

	m, err := markers.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "critical error not recovered", m.Reason)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestSupervisor_ClearSafeMode(t *testing.T) {
	sup := NewSupervisor(testConfig(), discard)
	ctx := context.Background()

	require.NoError(t, sup.Markers().Set(ctx, degrade.Marker{Reason: "critical error"}))
	require.NoError(t, sup.ClearSafeMode(ctx))

	m, err := sup.Markers().Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, m)
}
