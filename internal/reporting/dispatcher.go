package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/recoverd/internal/metrics"
)

// DispatcherConfig tunes the delivery goroutine.
type DispatcherConfig struct {
	BufferSize  int
	SendTimeout time.Duration
}

// DefaultDispatcherConfig returns the defaults used by the service.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BufferSize:  256,
		SendTimeout: 5 * time.Second,
	}
}

// Dispatcher hands events to a sink without ever blocking the publisher.
// Sink failures are logged and swallowed.
type Dispatcher struct {
	sink   Sink
	cfg    DispatcherConfig
	log    *slog.Logger
	events chan Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewDispatcher creates a dispatcher and starts its delivery goroutine.
func NewDispatcher(sink Sink, cfg DispatcherConfig, log *slog.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultDispatcherConfig().BufferSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultDispatcherConfig().SendTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		sink:   sink,
		cfg:    cfg,
		log:    log.With("component", "dispatcher"),
		events: make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish queues an event for delivery. It returns false when the event was dropped.
func (d *Dispatcher) Publish(event Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		metrics.ReportsDropped.WithLabelValues("closed").Inc()
		return false
	}

	select {
	case d.events <- event:
		return true
	default:
		metrics.ReportsDropped.WithLabelValues("buffer_full").Inc()
		d.log.Warn("Reporting buffer full, dropping event", "kind", event.Kind())
		return false
	}
}

// Close stops accepting events, delivers what is buffered and closes the sink.
func (d *Dispatcher) Close() error {
	var err error
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.events)
		d.mu.Unlock()

		<-d.done
		if d.sink != nil {
			err = d.sink.Close()
		}
	})
	return err
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for event := range d.events {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	if d.sink == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Reporting sink panicked", "kind", event.Kind(), "panic", fmt.Sprint(r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := d.sink.Send(ctx, event); err != nil {
		metrics.ReportsDropped.WithLabelValues("sink_error").Inc()
		d.log.Warn("Reporting failed", "kind", event.Kind(), "error", err)
		return
	}
	metrics.ReportsSent.WithLabelValues(string(event.Kind())).Inc()
}
