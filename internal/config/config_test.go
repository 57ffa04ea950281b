package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsAreValid(t *testing.T) {
	cfg, err := LoadConfig(ConfigPaths{})
	require.NoError(t, err)
	assert.Equal(t, "VERIFIED", cfg.Instant.MinTier)
	assert.Equal(t, "TRUSTED", cfg.Instant.MinSensitiveTier)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestLoadConfig_DatabaseURLEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://override@db/hustlexp")
	cfg, err := LoadConfig(ConfigPaths{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://override@db/hustlexp", cfg.Database.URL)
}

func TestLoadConfig_HustlexpPrefixedEnvOverride(t *testing.T) {
	t.Setenv("HUSTLEXP_INSTANT_MIN_TIER", "TRUSTED")
	cfg, err := LoadConfig(ConfigPaths{})
	require.NoError(t, err)
	assert.Equal(t, "TRUSTED", cfg.Instant.MinTier)
}

func TestConfig_Validate_RejectsUnknownTier(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{URL: "postgres://x", MaxOpenConns: 5},
		Instant:  InstantConfig{MinTier: "ROOKIE", MinSensitiveTier: "NOPE"},
		Outbox:   OutboxConfig{ClaimBatch: 1, MaxAttempts: 1, WorkerCount: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_sensitive_tier")
}

func TestConfig_Validate_RejectsMissingDatabaseURL(t *testing.T) {
	cfg := Config{
		Instant: InstantConfig{MinTier: "ROOKIE", MinSensitiveTier: "TRUSTED"},
		Outbox:  OutboxConfig{ClaimBatch: 1, MaxAttempts: 1, WorkerCount: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestConfig_Validate_RejectsNonPositiveStuckJobTimeout(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{URL: "postgres://x", MaxOpenConns: 5},
		Instant:  InstantConfig{MinTier: "ROOKIE", MinSensitiveTier: "TRUSTED"},
		Outbox:   OutboxConfig{ClaimBatch: 1, MaxAttempts: 1, WorkerCount: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck_job_timeout")
}

func TestLoadConfig_DefaultStuckJobTimeout(t *testing.T) {
	cfg, err := LoadConfig(ConfigPaths{})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Outbox.StuckJobTimeout)
}
