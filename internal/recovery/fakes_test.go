package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/reporting"
)

var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// fakeDegrader records the critical path calls.
type fakeDegrader struct {
	mu             sync.Mutex
	calls          []string
	reloads        []string
	panicOnDisable bool
}

func (d *fakeDegrader) DisableOptimizations() {
	d.mu.Lock()
	d.calls = append(d.calls, "disable_optimizations")
	p := d.panicOnDisable
	d.mu.Unlock()
	if p {
		panic("optimizer wedged")
	}
}

func (d *fakeDegrader) EnableSafeMode() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "enable_safe_mode")
}

func (d *fakeDegrader) SafeReload(_ context.Context, errorID, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "safe_reload")
	d.reloads = append(d.reloads, errorID)
	return nil
}

func (d *fakeDegrader) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDegrader) Reloads() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.reloads...)
}

// recordingReporter keeps every published event.
type recordingReporter struct {
	mu     sync.Mutex
	events []reporting.Event
}

func (r *recordingReporter) Publish(event reporting.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return true
}

func (r *recordingReporter) Kinds() []reporting.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]reporting.Kind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}

func (r *recordingReporter) Recoveries() []reporting.RecoverySucceeded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reporting.RecoverySucceeded
	for _, e := range r.events {
		if rs, ok := e.(reporting.RecoverySucceeded); ok {
			out = append(out, rs)
		}
	}
	return out
}

func (r *recordingReporter) Observed() []reporting.ErrorObserved {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []reporting.ErrorObserved
	for _, e := range r.events {
		if eo, ok := e.(reporting.ErrorObserved); ok {
			out = append(out, eo)
		}
	}
	return out
}

// recordingSleeper returns immediately and remembers each wait.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// stubFallbacks counts switch flips.
type stubFallbacks struct {
	mu    sync.Mutex
	flips map[string]int
}

func (f *stubFallbacks) flip(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flips == nil {
		f.flips = make(map[string]int)
	}
	f.flips[name]++
}

func (f *stubFallbacks) Count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flips[name]
}

func (f *stubFallbacks) UseBasicPerformanceTracking() { f.flip("performance") }
func (f *stubFallbacks) BufferAnalyticsLocally()      { f.flip("analytics") }
func (f *stubFallbacks) AssignControlVariant()        { f.flip("variant") }
func (f *stubFallbacks) BypassCache()                 { f.flip("cache") }
func (f *stubFallbacks) SimplifyInteractions()        { f.flip("interaction") }
func (f *stubFallbacks) EnableCompatibilityMode()     { f.flip("compatibility") }

// counter is a goroutine-safe call counter.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// constant builds a strategy that always returns ok and counts its calls.
func constant(name string, typ domain.ErrorType, sevs []domain.Severity, retries int, delay time.Duration, ok bool, calls *counter) *Func {
	return NewFunc(Spec{
		Name:       name,
		Types:      []domain.ErrorType{typ},
		Severities: sevs,
		MaxRetries: retries,
		RetryDelay: delay,
	}, func(context.Context, domain.ErrorRecord) (bool, error) {
		if calls != nil {
			calls.inc()
		}
		return ok, nil
	})
}
