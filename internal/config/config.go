// Package config loads and validates hustlexpd's runtime configuration.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete, validated configuration for a hustlexpd process.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Instant  InstantConfig  `mapstructure:"instant"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
}

// DatabaseConfig configures the Postgres connection pool backing every repository.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoggingConfig configures the process-wide structured logger.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	TimeFormat string `mapstructure:"time_format"`
}

// ServerConfig configures the internal edge-facing gRPC listener.
type ServerConfig struct {
	Address        string `mapstructure:"address"`
	MaxRecvMsgSize int    `mapstructure:"max_recv_msg_size"`
	MaxSendMsgSize int    `mapstructure:"max_send_msg_size"`
}

// AdminConfig gates admin-only operations such as dispute resolution.
type AdminConfig struct {
	CanResolveDisputes bool `mapstructure:"can_resolve_disputes"`
}

// InstantConfig tunes the Task Engine's instant-accept path (§4.4).
type InstantConfig struct {
	KillSwitch         bool   `mapstructure:"kill_switch"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`
	MinTier            string `mapstructure:"min_tier"`
	MinSensitiveTier   string `mapstructure:"min_sensitive_tier"`
}

// OutboxConfig tunes the outbox dispatcher's claim/retry behavior.
type OutboxConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ClaimBatch      int           `mapstructure:"claim_batch"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	WorkerCount     int           `mapstructure:"worker_count"`
	StuckJobTimeout time.Duration `mapstructure:"stuck_job_timeout"`
}

// Validate checks that the config is internally consistent. It is called
// once after unmarshalling and before the config is handed to the DI
// container.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("config: database.url is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("config: database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("config: database.max_idle_conns must not be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("config: database.max_idle_conns must not exceed max_open_conns")
	}
	if c.Instant.RateLimitPerMinute < 0 {
		return fmt.Errorf("config: instant.rate_limit_per_minute must not be negative")
	}
	if _, err := parseTierName(c.Instant.MinTier); err != nil {
		return fmt.Errorf("config: instant.min_tier: %w", err)
	}
	if _, err := parseTierName(c.Instant.MinSensitiveTier); err != nil {
		return fmt.Errorf("config: instant.min_sensitive_tier: %w", err)
	}
	if c.Outbox.ClaimBatch <= 0 {
		return fmt.Errorf("config: outbox.claim_batch must be positive")
	}
	if c.Outbox.MaxAttempts <= 0 {
		return fmt.Errorf("config: outbox.max_attempts must be positive")
	}
	if c.Outbox.WorkerCount <= 0 {
		return fmt.Errorf("config: outbox.worker_count must be positive")
	}
	if c.Outbox.StuckJobTimeout <= 0 {
		return fmt.Errorf("config: outbox.stuck_job_timeout must be positive")
	}
	return nil
}

// parseTierName validates a tier name without importing internal/trust,
// avoiding a config -> trust -> config import cycle.
func parseTierName(name string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "ROOKIE", "VERIFIED", "TRUSTED", "ELITE":
		return strings.ToUpper(strings.TrimSpace(name)), nil
	default:
		return "", fmt.Errorf("unknown trust tier %q", name)
	}
}
