package config

import (
	"time"

	"github.com/vietddude/recoverd/internal/health"
	redisclient "github.com/vietddude/recoverd/internal/infra/redis"
	"github.com/vietddude/recoverd/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Recovery  RecoveryConfig     `yaml:"recovery"`
	Health    HealthConfig       `yaml:"health"`
	Reporting ReportingConfig    `yaml:"reporting"`
	Redis     redisclient.Config `yaml:"redis"`
	Database  postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP and gRPC server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	GRPCPort        int           `yaml:"grpc_port"` // 0 disables the gRPC health service
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RecoveryConfig tunes ingestion and the built-in strategies.
type RecoveryConfig struct {
	MaxHistory      int                       `yaml:"max_history"`
	NetworkProbeURL string                    `yaml:"network_probe_url"`
	Strategies      map[string]StrategyConfig `yaml:"strategies"` // keyed by strategy name
}

// StrategyConfig overrides one strategy's budget. Zero values keep the default.
type StrategyConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Severities []string      `yaml:"severities"`
}

// HealthConfig selects the threshold tier and monitor cadence.
type HealthConfig struct {
	Tier          string                       `yaml:"tier"`
	Tiers         map[string]health.Thresholds `yaml:"tiers"`
	CheckInterval time.Duration                `yaml:"check_interval"`
}

// ReportingConfig holds reporting sink settings.
type ReportingConfig struct {
	BufferSize  int           `yaml:"buffer_size"`
	SendTimeout time.Duration `yaml:"send_timeout"`
	Redis       bool          `yaml:"redis"`     // push events to a Redis list
	Postgres    bool          `yaml:"postgres"`  // insert events into recovery_events
	Retention   time.Duration `yaml:"retention"` // 0 keeps stored events forever
}
