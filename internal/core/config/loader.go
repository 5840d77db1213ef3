package config

import (
	"fmt"
	"maps"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/recoverd/internal/core/domain"
	"github.com/vietddude/recoverd/internal/health"
	"github.com/vietddude/recoverd/internal/recovery"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables first.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Recovery.MaxHistory == 0 {
		c.Recovery.MaxHistory = recovery.DefaultHistoryCapacity
	}
	if c.Health.CheckInterval == 0 {
		c.Health.CheckInterval = 15 * time.Second
	}
	if c.Reporting.BufferSize == 0 {
		c.Reporting.BufferSize = 256
	}
	if c.Reporting.SendTimeout == 0 {
		c.Reporting.SendTimeout = 5 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "pgx"
	}
}

// Validate checks cross-field constraints.
func (c *AppConfig) Validate() error {
	if c.Recovery.MaxHistory < 0 {
		return fmt.Errorf("recovery.max_history must be positive, got %d", c.Recovery.MaxHistory)
	}
	if _, err := c.StrategyOverrides(); err != nil {
		return err
	}
	if _, err := c.Thresholds(); err != nil {
		return err
	}
	if c.Reporting.Redis && c.Redis.URL == "" {
		return fmt.Errorf("reporting.redis requires redis.url")
	}
	if c.Reporting.Postgres && c.Database.URL == "" {
		return fmt.Errorf("reporting.postgres requires database.url")
	}
	switch c.Database.Driver {
	case "pgx", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// StrategyOverrides converts the strategy section into recovery overrides.
func (c *AppConfig) StrategyOverrides() (map[string]recovery.Override, error) {
	out := make(map[string]recovery.Override, len(c.Recovery.Strategies))
	for name, sc := range c.Recovery.Strategies {
		if sc.MaxRetries < 0 || sc.RetryDelay < 0 {
			return nil, fmt.Errorf("strategy %s: negative retry settings", name)
		}
		o := recovery.Override{MaxRetries: sc.MaxRetries, RetryDelay: sc.RetryDelay}
		for _, s := range sc.Severities {
			sev, err := domain.ParseSeverity(s)
			if err != nil {
				return nil, fmt.Errorf("strategy %s: %w", name, err)
			}
			o.Severities = append(o.Severities, sev)
		}
		out[name] = o
	}
	return out, nil
}

// Thresholds resolves the configured tier against the built-in and configured tiers.
func (c *AppConfig) Thresholds() (health.Thresholds, error) {
	tiers := health.DefaultTiers()
	maps.Copy(tiers, c.Health.Tiers)
	return tiers.Resolve(c.Health.Tier)
}
