package database

import (
	"net/url"
	"time"
)

const (
	defaultPoolSize            = 10
	defaultMaxOverflow         = 5
	defaultPoolTimeout         = 30 * time.Second
	defaultRetryAttempts       = 3
	defaultRetryBaseDelay      = 100 * time.Millisecond
	defaultHealthCheckInterval = 30 * time.Second
)

// Config holds the construction-time settings for the pool and manager.
// Validated eagerly by NewConnectionPool; an invalid config never produces
// a partially working pool.
type Config struct {
	// TransactionalURL is the connection string for the transactional
	// store. Scheme must be postgres or postgresql.
	TransactionalURL string

	// CacheURL is the connection string for the cache store. Scheme must
	// be redis or rediss.
	CacheURL string

	// PoolSize is the steady-state number of transactional leases.
	PoolSize int

	// MaxOverflow is the number of extra leases admitted under burst load
	// on top of PoolSize. May be zero.
	MaxOverflow int

	// PoolTimeout bounds how long a lease request waits before failing
	// with ErrPoolExhausted.
	PoolTimeout time.Duration

	// RetryAttempts is the number of retries for connection-class
	// failures in Manager operations.
	RetryAttempts int

	// RetryBaseDelay is the base of the exponential backoff between
	// retries (base * 2^attempt).
	RetryBaseDelay time.Duration

	// HealthCheckInterval is the suggested polling interval for
	// HealthCheck. Exposed for upstream monitoring loops.
	HealthCheckInterval time.Duration
}

// normalizeDefaults fills zero-value fields with production defaults.
func (c *Config) normalizeDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = defaultPoolSize
	}

	if c.PoolTimeout == 0 {
		c.PoolTimeout = defaultPoolTimeout
	}

	if c.RetryAttempts == 0 {
		c.RetryAttempts = defaultRetryAttempts
	}

	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}

	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
}

// validate checks the config after defaults are applied.
func (c *Config) validate() error {
	if err := validateStoreURL(c.TransactionalURL, "transactional", "postgres", "postgresql"); err != nil {
		return err
	}

	if err := validateStoreURL(c.CacheURL, "cache", "redis", "rediss"); err != nil {
		return err
	}

	if c.PoolSize <= 0 {
		return configError("pool size must be positive, got %d", c.PoolSize)
	}

	if c.MaxOverflow < 0 {
		return configError("max overflow must be non-negative, got %d", c.MaxOverflow)
	}

	if c.PoolTimeout <= 0 {
		return configError("pool timeout must be positive, got %v", c.PoolTimeout)
	}

	if c.RetryAttempts < 0 {
		return configError("retry attempts must be non-negative, got %d", c.RetryAttempts)
	}

	if c.RetryBaseDelay <= 0 {
		return configError("retry base delay must be positive, got %v", c.RetryBaseDelay)
	}

	if c.HealthCheckInterval <= 0 {
		return configError("health check interval must be positive, got %v", c.HealthCheckInterval)
	}

	return nil
}

// maxLeases is the hard ceiling on concurrent transactional leases.
// Value receiver: Config is passed by value everywhere, including the
// snapshot returned by ConnectionPool.Config.
func (c Config) maxLeases() int {
	return c.PoolSize + c.MaxOverflow
}

func validateStoreURL(rawURL, store string, schemes ...string) error {
	if rawURL == "" {
		return configError("%s store URL is required", store)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return configError("%s store URL is not a valid URL", store)
	}

	for _, scheme := range schemes {
		if parsed.Scheme == scheme {
			return nil
		}
	}

	return configError("%s store URL scheme must be one of %v, got %q", store, schemes, parsed.Scheme)
}
