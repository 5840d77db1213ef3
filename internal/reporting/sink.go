package reporting

import (
	"context"
	"errors"
	"log/slog"
)

// Sink receives telemetry events.
type Sink interface {
	// Send delivers one event. Implementations may block briefly.
	Send(ctx context.Context, event Event) error

	// Close releases sink resources.
	Close() error
}

// LogSink writes events to the structured log.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a sink logging at info level.
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log.With("component", "report")}
}

func (s *LogSink) Send(ctx context.Context, event Event) error {
	switch e := event.(type) {
	case ErrorObserved:
		s.log.InfoContext(ctx, "Error observed",
			"error_type", e.ErrorType,
			"error_severity", e.ErrorSeverity,
			"error_source", e.ErrorSource,
			"error_id", e.ErrorID,
			"device_type", e.DeviceType,
		)
	case RecoverySucceeded:
		s.log.InfoContext(ctx, "Recovery succeeded",
			"error_type", e.ErrorType,
			"error_severity", e.ErrorSeverity,
			"recovery_strategy", e.RecoveryStrategy,
			"recovery_time_ms", e.RecoveryTimeMs,
		)
	default:
		s.log.InfoContext(ctx, "Report", "kind", event.Kind())
	}
	return nil
}

func (s *LogSink) Close() error { return nil }

// MultiSink fans each event out to every sink.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
