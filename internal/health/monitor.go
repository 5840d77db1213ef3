package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vietddude/recoverd/internal/metrics"
)

// ServiceName is the gRPC health service name reported by the monitor.
const ServiceName = "recoverd"

// StatsSource produces statistics snapshots.
type StatsSource interface {
	Statistics() Statistics
}

// StatusSetter receives serving status updates. grpc/health.Server implements it.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// Monitor periodically samples statistics, publishes gauges and tracks rating changes.
type Monitor struct {
	source   StatsSource
	interval time.Duration
	log      *slog.Logger

	mu      sync.RWMutex
	setter  StatusSetter
	last    Statistics
	checked bool
}

// NewMonitor creates a monitor sampling source every interval.
func NewMonitor(source StatsSource, interval time.Duration, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		source:   source,
		interval: interval,
		log:      log.With("component", "health"),
	}
}

// SetStatusSetter attaches a gRPC health server.
func (m *Monitor) SetStatusSetter(s StatusSetter) {
	m.mu.Lock()
	m.setter = s
	status := m.last.SystemHealth
	checked := m.checked
	m.mu.Unlock()

	if checked {
		s.SetServingStatus(ServiceName, servingStatus(status))
	}
}

// Check samples statistics now and publishes them.
func (m *Monitor) Check() Statistics {
	stats := m.source.Statistics()

	m.mu.Lock()
	prev, checked := m.last.SystemHealth, m.checked
	m.last = stats
	m.checked = true
	setter := m.setter
	m.mu.Unlock()

	metrics.SystemHealth.Set(float64(stats.SystemHealth.Level()))
	metrics.RecoveryRate.Set(stats.RecoveryRate)
	metrics.HistorySize.Set(float64(stats.TotalErrors))

	if setter != nil {
		setter.SetServingStatus(ServiceName, servingStatus(stats.SystemHealth))
	}

	if checked && prev != stats.SystemHealth {
		attrs := []any{
			"from", prev,
			"to", stats.SystemHealth,
			"total_errors", stats.TotalErrors,
			"recent_errors", len(stats.RecentErrors),
			"recovery_rate", stats.RecoveryRate,
		}
		if stats.SystemHealth.Level() > prev.Level() {
			m.log.Warn("System health degraded", attrs...)
		} else {
			m.log.Info("System health improved", attrs...)
		}
	}

	return stats
}

// Last returns the most recent sample, taking one if none exists yet.
func (m *Monitor) Last() Statistics {
	m.mu.RLock()
	stats, checked := m.last, m.checked
	m.mu.RUnlock()
	if !checked {
		return m.Check()
	}
	return stats
}

// Run samples until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check()
		}
	}
}

func servingStatus(s SystemStatus) healthpb.HealthCheckResponse_ServingStatus {
	if s == StatusCritical {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}
