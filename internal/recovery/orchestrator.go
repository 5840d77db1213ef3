// Package recovery ingests classified errors, retains them in bounded history
// and runs matching recovery strategies with per-strategy retry budgets.
package recovery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/degrade"
	"github.com/vietddude/recoverd/internal/health"
	"github.com/vietddude/recoverd/internal/metrics"
	"github.com/vietddude/recoverd/internal/reporting"
)

// Degrader is the part of the degradation controller the critical path needs.
type Degrader interface {
	DisableOptimizations()
	EnableSafeMode()
	SafeReload(ctx context.Context, errorID, reason string) error
}

// Reporter accepts reporting events without blocking.
type Reporter interface {
	Publish(event reporting.Event) bool
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Listener observes every ingested error.
type Listener func(rec domain.ErrorRecord)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithSleep sets the retry wait function.
func WithSleep(fn SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithThresholds sets the health thresholds used by Statistics.
func WithThresholds(th health.Thresholds) Option {
	return func(o *Orchestrator) { o.thresholds = th }
}

// WithHistoryCapacity bounds retained history.
func WithHistoryCapacity(n int) Option {
	return func(o *Orchestrator) { o.capacity = n }
}

// WithContextProvider sets where user context snapshots come from.
func WithContextProvider(p ContextProvider) Option {
	return func(o *Orchestrator) { o.provider = p }
}

// WithReporter sets the reporting sink front.
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// WithDegrader sets the degradation controller used on critical errors.
func WithDegrader(d Degrader) Option {
	return func(o *Orchestrator) { o.degrader = d }
}

// Orchestrator is the single ingestion point for classified errors.
type Orchestrator struct {
	registry   *Registry
	builder    *Builder
	history    *History
	degrader   Degrader
	reporter   Reporter
	provider   ContextProvider
	thresholds health.Thresholds
	capacity   int
	now        func() time.Time
	sleep      SleepFunc
	log        *slog.Logger

	mu         sync.Mutex
	enabled    bool
	scheduler  *Scheduler
	cancel     context.CancelFunc
	listener   Listener
	listenerID uint64
}

// New creates an orchestrator ready to ingest errors.
func New(registry *Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:   registry,
		thresholds: health.DefaultThresholds(),
		capacity:   DefaultHistoryCapacity,
		now:        time.Now,
		sleep:      sleepCtx,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry, _ = NewRegistry()
	}

	o.log = o.log.With("component", "recovery")
	if o.degrader == nil {
		o.degrader = degrade.NewController(nil, o.log)
	}
	o.builder = NewBuilder(o.provider, o.now)
	o.history = NewHistory(o.capacity)

	o.Init()
	return o
}

// Init enables ingestion. It is a no-op when already enabled.
func (o *Orchestrator) Init() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.enabled {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.scheduler = NewScheduler(ctx, o.attemptRecovery, o.log)
	o.cancel = cancel
	o.enabled = true
}

// Cleanup clears history, the pending queue and the listener, then disables
// ingestion until Init. Calling it twice is harmless.
func (o *Orchestrator) Cleanup() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.enabled {
		o.enabled = false
		o.cancel()
		dropped := o.scheduler.Clear()
		if dropped > 0 {
			o.log.Info("Dropped pending recoveries", "count", dropped)
		}
	}
	o.listener = nil
	o.history.Clear()
	metrics.HistorySize.Set(0)
}

// Wait blocks until the current recovery drain finishes.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	s := o.scheduler
	o.mu.Unlock()
	if s != nil {
		s.Wait()
	}
}

// HandleError records in, starts recovery and returns the new record id.
// It never panics. When ingestion is disabled it returns "".
func (o *Orchestrator) HandleError(ctx context.Context, in domain.ErrorInput) (id string) {
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Error handling panicked", "error_id", id, "panic", r)
		}
	}()

	if ctx == nil {
		ctx = context.Background()
	}

	o.mu.Lock()
	enabled, scheduler := o.enabled, o.scheduler
	o.mu.Unlock()
	if !enabled {
		o.log.Debug("Ingestion disabled, dropping error", "type", in.Type, "message", in.Message)
		return ""
	}

	rec := o.builder.Build(in)
	id = rec.ID

	if evicted := o.history.Add(rec); evicted != nil {
		o.log.Debug("Evicted oldest error", "error_id", evicted.ID)
	}
	metrics.ErrorsIngested.WithLabelValues(string(rec.Type), string(rec.Severity)).Inc()
	metrics.HistorySize.Set(float64(o.history.Len()))

	o.log.Warn("Error recorded",
		"error_id", rec.ID,
		"type", rec.Type,
		"severity", rec.Severity,
		"source", rec.Source,
		"message", rec.Message,
	)

	o.publish(reporting.NewErrorObserved(rec))
	o.notify(rec)

	if rec.Severity == domain.SeverityCritical {
		o.escalate(ctx, rec)
	} else {
		scheduler.Enqueue(rec)
	}

	return id
}

// Statistics derives a snapshot from retained history.
func (o *Orchestrator) Statistics() health.Statistics {
	return health.Compute(o.history.Snapshot(), o.now(), o.thresholds)
}

// Get returns a snapshot of a retained record.
func (o *Orchestrator) Get(id string) (domain.ErrorRecord, bool) {
	return o.history.Get(id)
}

// OnError replaces the error listener. The returned func unregisters it
// unless another listener has replaced it since.
func (o *Orchestrator) OnError(fn Listener) (unregister func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.listenerID++
	id := o.listenerID
	o.listener = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.listenerID == id {
			o.listener = nil
		}
	}
}

func (o *Orchestrator) notify(rec *domain.ErrorRecord) {
	o.mu.Lock()
	fn := o.listener
	o.mu.Unlock()
	if fn == nil {
		return
	}

	var snapshot domain.ErrorRecord
	o.history.Read(rec, func(r *domain.ErrorRecord) { snapshot = r.Clone() })

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("Error listener panicked", "error_id", rec.ID, "panic", r)
		}
	}()
	fn(snapshot)
}

func (o *Orchestrator) publish(event reporting.Event) {
	if o.reporter == nil {
		return
	}
	o.reporter.Publish(event)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
