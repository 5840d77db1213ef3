package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/metrics"
	"github.com/vietddude/recoverd/internal/reporting"
)

// attemptRecovery runs the matching strategies against rec in priority order.
// Each strategy is retried until it succeeds or its budget on rec is spent.
func (o *Orchestrator) attemptRecovery(ctx context.Context, rec *domain.ErrorRecord) {
	o.recoverRecord(ctx, rec)
}

func (o *Orchestrator) recoverRecord(ctx context.Context, rec *domain.ErrorRecord) bool {
	var (
		candidates []Strategy
		done       bool
	)
	o.history.Read(rec, func(r *domain.ErrorRecord) {
		done = r.Recovered
		if !done {
			candidates = o.registry.Match(r)
		}
	})
	if done {
		return true
	}
	if len(candidates) == 0 {
		o.log.Warn("No recovery strategy matches error",
			"error_id", rec.ID,
			"type", rec.Type,
			"severity", rec.Severity,
		)
		metrics.UnrecoveredErrors.WithLabelValues(string(rec.Type)).Inc()
		return false
	}

	for _, s := range candidates {
		for {
			var attempts int
			o.history.Read(rec, func(r *domain.ErrorRecord) { attempts = r.AttemptsFor(s.Name()) })
			if attempts >= s.MaxRetries() {
				break
			}

			if attempts > 0 {
				delay := s.RetryDelay() * time.Duration(attempts)
				if err := o.sleep(ctx, delay); err != nil {
					o.log.Debug("Recovery interrupted", "error_id", rec.ID, "strategy", s.Name(), "error", err)
					return false
				}
			}

			var snapshot domain.ErrorRecord
			o.history.Read(rec, func(r *domain.ErrorRecord) { snapshot = r.Clone() })

			attempt := o.execute(ctx, s, snapshot)
			o.history.Mutate(rec, func(r *domain.ErrorRecord) {
				r.RecoveryAttempts = append(r.RecoveryAttempts, attempt)
				if attempt.Successful {
					r.Recovered = true
				}
			})

			if attempt.Successful {
				metrics.RecoveryAttempts.WithLabelValues(s.Name(), "success").Inc()
				metrics.RecoveryLatency.WithLabelValues(s.Name()).Observe(attempt.Timestamp.Sub(rec.Timestamp).Seconds())
				o.log.Info("Error recovered",
					"error_id", rec.ID,
					"strategy", s.Name(),
					"attempt", attempts+1,
				)
				o.publish(reporting.NewRecoverySucceeded(rec, s.Name(), o.now()))
				return true
			}

			metrics.RecoveryAttempts.WithLabelValues(s.Name(), "failure").Inc()
			o.log.Warn("Recovery attempt failed",
				"error_id", rec.ID,
				"strategy", s.Name(),
				"attempt", attempts+1,
				"max_retries", s.MaxRetries(),
				"error", attempt.Context["error"],
			)
		}
	}

	o.log.Error("Error not recovered, strategies exhausted", "error_id", rec.ID, "type", rec.Type)
	metrics.UnrecoveredErrors.WithLabelValues(string(rec.Type)).Inc()
	return false
}

// execute runs one strategy. Errors and panics become failed attempts.
func (o *Orchestrator) execute(ctx context.Context, s Strategy, rec domain.ErrorRecord) (attempt domain.RecoveryAttempt) {
	attempt = domain.RecoveryAttempt{
		Strategy:  s.Name(),
		Timestamp: o.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			attempt.Successful = false
			attempt.Context = map[string]string{"error": fmt.Sprint(r)}
		}
	}()

	ok, err := s.Recover(ctx, rec)
	if err != nil {
		attempt.Context = map[string]string{"error": err.Error()}
		return attempt
	}
	attempt.Successful = ok
	return attempt
}

// escalate handles a critical error inline. Safe reload runs exactly once
// when the error stays unrecovered or any step panics.
func (o *Orchestrator) escalate(ctx context.Context, rec *domain.ErrorRecord) {
	metrics.Escalations.Inc()
	o.log.Error("Critical error, escalating",
		"error_id", rec.ID,
		"type", rec.Type,
		"message", rec.Message,
	)

	recovered := false
	defer func() {
		reason := "critical error not recovered"
		if r := recover(); r != nil {
			recovered = false
			reason = fmt.Sprintf("critical recovery panicked: %v", r)
			o.log.Error("Critical recovery panicked", "error_id", rec.ID, "panic", r)
		}
		if recovered {
			return
		}
		if err := o.degrader.SafeReload(context.WithoutCancel(ctx), rec.ID, reason); err != nil {
			o.log.Warn("Safe reload incomplete", "error_id", rec.ID, "error", err)
		}
	}()

	o.degrader.DisableOptimizations()
	o.degrader.EnableSafeMode()
	recovered = o.recoverRecord(ctx, rec)
}
