package recovery

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/metrics"
)

// ProcessFunc runs recovery for one queued record.
type ProcessFunc func(ctx context.Context, rec *domain.ErrorRecord)

// Scheduler is a FIFO queue drained by at most one goroutine at a time.
// Records are processed one by one in enqueue order.
type Scheduler struct {
	ctx     context.Context
	process ProcessFunc
	log     *slog.Logger

	mu       sync.Mutex
	queue    []*domain.ErrorRecord
	draining bool
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler whose drains run under ctx.
func NewScheduler(ctx context.Context, process ProcessFunc, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		ctx:     ctx,
		process: process,
		log:     log,
	}
}

// Enqueue appends rec and starts a drain if none is running.
func (s *Scheduler) Enqueue(rec *domain.ErrorRecord) {
	s.mu.Lock()
	s.queue = append(s.queue, rec)
	metrics.QueueDepth.Set(float64(len(s.queue)))
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.drain()
}

// Len returns the number of records waiting.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Clear discards pending records. An in-flight record finishes normally.
func (s *Scheduler) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.queue)
	clear(s.queue)
	s.queue = nil
	metrics.QueueDepth.Set(0)
	return n
}

// Wait blocks until no drain is running.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) drain() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			// Checked under the same lock Enqueue uses, so no record is stranded.
			s.draining = false
			s.mu.Unlock()
			return
		}
		rec := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		metrics.QueueDepth.Set(float64(len(s.queue)))
		s.mu.Unlock()

		s.run(rec)
	}
}

func (s *Scheduler) run(rec *domain.ErrorRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Recovery processing panicked",
				"error_id", rec.ID,
				"panic", r,
			)
		}
	}()
	s.process(s.ctx, rec)
}
