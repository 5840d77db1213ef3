package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrorsIngested tracks every error accepted by the orchestrator
	ErrorsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_errors_ingested_total",
			Help: "Total number of errors ingested",
		},
		[]string{"type", "severity"},
	)

	// RecoveryAttempts tracks strategy executions by outcome
	RecoveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_recovery_attempts_total",
			Help: "Total number of recovery strategy executions",
		},
		[]string{"strategy", "outcome"},
	)

	// RecoveryLatency tracks time from ingestion to successful recovery
	RecoveryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recoverd_recovery_latency_seconds",
			Help:    "Time from error ingestion to successful recovery",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// UnrecoveredErrors counts errors that exhausted every matching strategy
	UnrecoveredErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_unrecovered_errors_total",
			Help: "Total number of errors left unrecovered",
		},
		[]string{"type"},
	)

	// Escalations counts critical errors handled inline
	Escalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recoverd_escalations_total",
			Help: "Total number of critical escalations",
		},
	)

	// SafeReloads counts last-resort safe reloads
	SafeReloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recoverd_safe_reloads_total",
			Help: "Total number of safe reloads triggered",
		},
	)

	// QueueDepth tracks the number of errors waiting for recovery
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoverd_queue_depth",
			Help: "Number of errors waiting in the recovery queue",
		},
	)

	// HistorySize tracks the number of retained error records
	HistorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoverd_history_size",
			Help: "Number of error records retained in history",
		},
	)

	// RecoveryRate mirrors the recovery rate from the latest statistics
	RecoveryRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoverd_recovery_rate_percent",
			Help: "Percentage of retained errors that were recovered",
		},
	)

	// SystemHealth is 0 healthy, 1 warning, 2 critical
	SystemHealth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoverd_system_health",
			Help: "System health rating (0 healthy, 1 warning, 2 critical)",
		},
	)

	// ReportsDropped counts reporting events discarded by the dispatcher
	ReportsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_reports_dropped_total",
			Help: "Total number of reporting events dropped",
		},
		[]string{"reason"},
	)

	// ReportsSent counts reporting events delivered to sinks
	ReportsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoverd_reports_sent_total",
			Help: "Total number of reporting events delivered",
		},
		[]string{"kind"},
	)

	// DBConnectionPoolUsage tracks database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recoverd_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
