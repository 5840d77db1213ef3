// Package reporting delivers best-effort error and recovery telemetry to
// external analytics collaborators.
package reporting

import (
	"time"

	"github.com/vietddude/recoverd/internal/core/domain"
)

// Kind names the event shapes understood by sinks.
type Kind string

const (
	KindErrorObserved     Kind = "error_observed"
	KindRecoverySucceeded Kind = "recovery_succeeded"
)

// Event is a single telemetry payload.
type Event interface {
	Kind() Kind
}

// ErrorObserved is emitted when an error is ingested.
type ErrorObserved struct {
	ErrorType     domain.ErrorType  `json:"error_type"`
	ErrorSeverity domain.Severity   `json:"error_severity"`
	ErrorSource   string            `json:"error_source"`
	ErrorID       string            `json:"error_id"`
	UserVariant   *string           `json:"user_variant"`
	DeviceType    domain.DeviceType `json:"device_type"`
}

func (ErrorObserved) Kind() Kind { return KindErrorObserved }

// RecoverySucceeded is emitted when a strategy recovers an error.
type RecoverySucceeded struct {
	ErrorType        domain.ErrorType `json:"error_type"`
	ErrorSeverity    domain.Severity  `json:"error_severity"`
	RecoveryStrategy string           `json:"recovery_strategy"`
	RecoveryTimeMs   int64            `json:"recovery_time_ms"`
}

func (RecoverySucceeded) Kind() Kind { return KindRecoverySucceeded }

// NewErrorObserved builds the ingestion event for rec.
func NewErrorObserved(rec *domain.ErrorRecord) ErrorObserved {
	uc := rec.UserContext.Clone()
	return ErrorObserved{
		ErrorType:     rec.Type,
		ErrorSeverity: rec.Severity,
		ErrorSource:   rec.Source,
		ErrorID:       rec.ID,
		UserVariant:   uc.Variant,
		DeviceType:    uc.DeviceType,
	}
}

// NewRecoverySucceeded builds the recovery event for rec recovered by strategy at now.
func NewRecoverySucceeded(rec *domain.ErrorRecord, strategy string, now time.Time) RecoverySucceeded {
	return RecoverySucceeded{
		ErrorType:        rec.Type,
		ErrorSeverity:    rec.Severity,
		RecoveryStrategy: strategy,
		RecoveryTimeMs:   now.Sub(rec.Timestamp).Milliseconds(),
	}
}
