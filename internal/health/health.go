// Package health derives error statistics and the system health rating.
package health

import (
	"time"

	"github.com/vietddude/recoverd/internal/core/domain"
)

// SystemStatus represents the overall health rating.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusWarning  SystemStatus = "warning"
	StatusCritical SystemStatus = "critical"
)

// Level maps the status onto 0/1/2 for gauges.
func (s SystemStatus) Level() int {
	switch s {
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	default:
		return 0
	}
}

// Thresholds control the health rating and the recent-errors window.
type Thresholds struct {
	Window          time.Duration `yaml:"window"`
	MaxHighSeverity int           `yaml:"max_high_severity"`
	MaxRecentErrors int           `yaml:"max_recent_errors"`
	RecentLimit     int           `yaml:"recent_limit"`
}

// DefaultThresholds: critical on any critical error in 5 minutes, warning above
// 2 high-severity or 10 total errors in 5 minutes.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Window:          5 * time.Minute,
		MaxHighSeverity: 2,
		MaxRecentErrors: 10,
		RecentLimit:     10,
	}
}

// UnmarshalYAML starts from DefaultThresholds so omitted keys keep their
// defaults while an explicit 0 stays 0.
func (t *Thresholds) UnmarshalYAML(unmarshal func(any) error) error {
	type plain Thresholds
	p := plain(DefaultThresholds())
	if err := unmarshal(&p); err != nil {
		return err
	}
	*t = Thresholds(p)
	return nil
}

// withDefaults replaces invalid fields with DefaultThresholds values. A zero
// severity or recent-error limit is valid: any such error triggers a warning.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.Window <= 0 {
		t.Window = d.Window
	}
	if t.MaxHighSeverity < 0 {
		t.MaxHighSeverity = d.MaxHighSeverity
	}
	if t.MaxRecentErrors < 0 {
		t.MaxRecentErrors = d.MaxRecentErrors
	}
	if t.RecentLimit <= 0 {
		t.RecentLimit = d.RecentLimit
	}
	return t
}

// Statistics is a read-only snapshot derived from retained history.
type Statistics struct {
	TotalErrors      int                      `json:"total_errors"`
	ErrorsByType     map[domain.ErrorType]int `json:"errors_by_type"`
	ErrorsBySeverity map[domain.Severity]int  `json:"errors_by_severity"`
	RecoveryRate     float64                  `json:"recovery_rate"`
	RecentErrors     []domain.ErrorRecord     `json:"recent_errors"`
	SystemHealth     SystemStatus             `json:"system_health"`
}

// Compute derives statistics from records ordered oldest first.
func Compute(records []domain.ErrorRecord, now time.Time, th Thresholds) Statistics {
	th = th.withDefaults()

	stats := Statistics{
		TotalErrors:      len(records),
		ErrorsByType:     make(map[domain.ErrorType]int),
		ErrorsBySeverity: make(map[domain.Severity]int),
		RecoveryRate:     100,
		RecentErrors:     []domain.ErrorRecord{},
		SystemHealth:     StatusHealthy,
	}

	var recovered, critical, high int
	var recent []domain.ErrorRecord

	for _, rec := range records {
		stats.ErrorsByType[rec.Type]++
		stats.ErrorsBySeverity[rec.Severity]++
		if rec.Recovered {
			recovered++
		}

		if now.Sub(rec.Timestamp) >= th.Window {
			continue
		}
		recent = append(recent, rec)
		switch rec.Severity {
		case domain.SeverityCritical:
			critical++
		case domain.SeverityHigh:
			high++
		}
	}

	if len(records) > 0 {
		stats.RecoveryRate = float64(recovered) / float64(len(records)) * 100
	}

	// Rating uses the full window count, not the truncated list.
	recentCount := len(recent)
	if recentCount > th.RecentLimit {
		recent = recent[recentCount-th.RecentLimit:]
	}
	if recentCount > 0 {
		stats.RecentErrors = recent
	}

	switch {
	case critical > 0:
		stats.SystemHealth = StatusCritical
	case high > th.MaxHighSeverity || recentCount > th.MaxRecentErrors:
		stats.SystemHealth = StatusWarning
	}

	return stats
}
