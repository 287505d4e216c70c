//go:build unit

package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DefaultsApplied(t *testing.T) {
	t.Parallel()

	cfg := Config{
		TransactionalURL: "postgres://localhost:5432/trading",
		CacheURL:         "redis://localhost:6379",
	}

	cfg.normalizeDefaults()
	require.NoError(t, cfg.validate())

	assert.Equal(t, defaultPoolSize, cfg.PoolSize)
	assert.Equal(t, 0, cfg.MaxOverflow)
	assert.Equal(t, defaultPoolTimeout, cfg.PoolTimeout)
	assert.Equal(t, defaultRetryAttempts, cfg.RetryAttempts)
	assert.Equal(t, defaultRetryBaseDelay, cfg.RetryBaseDelay)
	assert.Equal(t, defaultHealthCheckInterval, cfg.HealthCheckInterval)
	assert.Equal(t, defaultPoolSize, cfg.maxLeases())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		cfg := validTestConfig()
		cfg.normalizeDefaults()

		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing transactional URL", mutate: func(c *Config) { c.TransactionalURL = "" }},
		{name: "missing cache URL", mutate: func(c *Config) { c.CacheURL = "" }},
		{name: "wrong transactional scheme", mutate: func(c *Config) { c.TransactionalURL = "mysql://localhost/db" }},
		{name: "wrong cache scheme", mutate: func(c *Config) { c.CacheURL = "memcached://localhost" }},
		{name: "negative pool size", mutate: func(c *Config) { c.PoolSize = -1 }},
		{name: "negative overflow", mutate: func(c *Config) { c.MaxOverflow = -1 }},
		{name: "negative pool timeout", mutate: func(c *Config) { c.PoolTimeout = -time.Second }},
		{name: "negative retry attempts", mutate: func(c *Config) { c.RetryAttempts = -1 }},
		{name: "negative retry delay", mutate: func(c *Config) { c.RetryBaseDelay = -time.Millisecond }},
		{name: "negative health interval", mutate: func(c *Config) { c.HealthCheckInterval = -time.Second }},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)

			assert.ErrorIs(t, cfg.validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_AcceptedSchemes(t *testing.T) {
	t.Parallel()

	cfg := validTestConfig()
	cfg.TransactionalURL = "postgresql://localhost:5432/trading"
	cfg.CacheURL = "rediss://cache.internal:6380"
	cfg.normalizeDefaults()

	assert.NoError(t, cfg.validate())
}

func TestConfig_MaxLeases(t *testing.T) {
	t.Parallel()

	cfg := validTestConfig()
	assert.Equal(t, 3, cfg.maxLeases())
}
