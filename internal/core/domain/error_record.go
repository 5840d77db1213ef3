package domain

import (
	"fmt"
	"maps"
	"time"
)

// ErrorType classifies where a failure originated.
type ErrorType string

const (
	ErrorTypePerformance     ErrorType = "performance"
	ErrorTypeAnalytics       ErrorType = "analytics"
	ErrorTypeVariant         ErrorType = "variant"
	ErrorTypeCache           ErrorType = "cache"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeCompatibility   ErrorType = "compatibility"
	ErrorTypeUserInteraction ErrorType = "user-interaction"
)

// ErrorTypes lists every error type in declaration order.
var ErrorTypes = []ErrorType{
	ErrorTypePerformance,
	ErrorTypeAnalytics,
	ErrorTypeVariant,
	ErrorTypeCache,
	ErrorTypeNetwork,
	ErrorTypeCompatibility,
	ErrorTypeUserInteraction,
}

// Valid reports whether t is a known error type.
func (t ErrorType) Valid() bool {
	for _, known := range ErrorTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseErrorType validates s as an error type.
func ParseErrorType(s string) (ErrorType, error) {
	t := ErrorType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown error type %q", s)
	}
	return t, nil
}

// Severity classifies the impact of a failure.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from least to most severe.
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// Rank orders severities, -1 for unknown values.
func (s Severity) Rank() int {
	for i, known := range Severities {
		if s == known {
			return i
		}
	}
	return -1
}

// ParseSeverity validates s as a severity.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// DeviceType is the class of device the client runs on.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// UserContext is a snapshot of the client state at ingestion time.
type UserContext struct {
	Variant           *string    `json:"variant"`
	DeviceType        DeviceType `json:"device_type"`
	RuntimeDescriptor string     `json:"runtime_descriptor"`
	CurrentLocation   string     `json:"current_location"`
}

// Clone returns a copy that shares no pointers with c.
func (c UserContext) Clone() UserContext {
	if c.Variant != nil {
		v := *c.Variant
		c.Variant = &v
	}
	return c
}

// VariantName returns the assigned variant or an empty string.
func (c UserContext) VariantName() string {
	if c.Variant == nil {
		return ""
	}
	return *c.Variant
}

// RecoveryAttempt is one execution of a strategy against an error.
type RecoveryAttempt struct {
	Strategy   string            `json:"strategy"`
	Timestamp  time.Time         `json:"timestamp"`
	Successful bool              `json:"successful"`
	Context    map[string]string `json:"context,omitempty"`
}

// ErrorRecord is a normalized, classified failure.
//
// Only RecoveryAttempts and Recovered change after construction.
type ErrorRecord struct {
	ID               string            `json:"id"`
	Type             ErrorType         `json:"type"`
	Severity         Severity          `json:"severity"`
	Message          string            `json:"message"`
	Details          string            `json:"details"`
	Timestamp        time.Time         `json:"timestamp"`
	Source           string            `json:"source"`
	UserContext      UserContext       `json:"user_context"`
	RecoveryAttempts []RecoveryAttempt `json:"recovery_attempts"`
	Recovered        bool              `json:"recovered"`
	Stack            string            `json:"stack,omitempty"`
}

// AttemptsFor counts the attempts recorded for the named strategy.
func (r *ErrorRecord) AttemptsFor(strategy string) int {
	n := 0
	for _, a := range r.RecoveryAttempts {
		if a.Strategy == strategy {
			n++
		}
	}
	return n
}

// Clone deep-copies the record so callers can read it without holding locks.
func (r *ErrorRecord) Clone() ErrorRecord {
	out := *r
	out.UserContext = r.UserContext.Clone()
	if r.RecoveryAttempts != nil {
		out.RecoveryAttempts = make([]RecoveryAttempt, len(r.RecoveryAttempts))
		for i, a := range r.RecoveryAttempts {
			a.Context = maps.Clone(a.Context)
			out.RecoveryAttempts[i] = a
		}
	}
	return out
}

// ErrorInput is a partial error description. Zero fields take defaults.
type ErrorInput struct {
	Type     ErrorType
	Severity Severity
	Message  string
	Details  string
	Source   string
	Stack    string

	// UserContext overrides the captured context when set.
	UserContext *UserContext
}
