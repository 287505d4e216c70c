package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SubhajL/online-trading-sub001/backoff"
	"github.com/SubhajL/online-trading-sub001/clock"
	"github.com/SubhajL/online-trading-sub001/log"
	"github.com/SubhajL/online-trading-sub001/opentelemetry"
)

const (
	tracerName = "redis"

	// reconnectBackoffCap is the maximum delay between reconnect attempts.
	reconnectBackoffCap = 30 * time.Second
)

var (
	// ErrInvalidConfig indicates the provided redis configuration is invalid.
	ErrInvalidConfig = errors.New("redis: invalid config")
	// ErrNilClient is returned when a redis client receiver is nil.
	ErrNilClient = errors.New("redis: client is nil")
)

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Config defines address, auth, and connection settings for a standalone
// Redis/Valkey node.
type Config struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DialTimeout  time.Duration
	PoolTimeout  time.Duration
	Logger       log.Logger
}

// ConfigFromURL builds a Config from a redis:// or rediss:// URL.
func ConfigFromURL(rawURL string) (Config, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return Config{}, configError("cannot parse URL: %v", err)
	}

	return Config{
		Address:  opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}, nil
}

func normalizeConfig(cfg Config) (Config, error) {
	if cfg.Logger == nil {
		cfg.Logger = &log.NoneLogger{}
	}

	if cfg.Address == "" {
		return Config{}, configError("address is required")
	}

	if cfg.DB < 0 {
		return Config{}, configError("db must be non-negative, got %d", cfg.DB)
	}

	for _, check := range []struct {
		name  string
		value time.Duration
	}{
		{"read timeout", cfg.ReadTimeout},
		{"write timeout", cfg.WriteTimeout},
		{"dial timeout", cfg.DialTimeout},
		{"pool timeout", cfg.PoolTimeout},
	} {
		if check.value < 0 {
			return Config{}, configError("%s must be non-negative, got %v", check.name, check.value)
		}
	}

	return cfg, nil
}

// Status reports client connectivity and reconnect pressure.
type Status struct {
	Connected         bool
	ReconnectAttempts int
}

// Client wraps a go-redis client with reconnect rate limiting. Failed
// reconnects back off exponentially with jitter, so a down server sees one
// probing client instead of a thundering herd.
type Client struct {
	mu     sync.RWMutex
	cfg    Config
	logger log.Logger
	clk    clock.Clock

	client    redis.UniversalClient
	connected bool

	lastReconnectAttempt time.Duration
	reconnectAttempts    int
}

// New validates config, connects, and returns a ready client. A nil clock
// defaults to the real clock.
func New(ctx context.Context, cfg Config, clk clock.Clock) (*Client, error) {
	normalized, err := normalizeConfig(cfg)
	if err != nil {
		return nil, err
	}

	if clk == nil {
		clk = clock.NewReal()
	}

	c := &Client{
		cfg:    normalized,
		logger: normalized.Logger,
		clk:    clk,
	}

	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// Connect establishes the connection, replacing any previous one.
func (c *Client) Connect(ctx context.Context) error {
	if c == nil {
		return ErrNilClient
	}

	ctx, span := opentelemetry.StartSpan(ctx, tracerName, "redis.connect")
	defer span.End()

	span.SetAttributes(attribute.String("db.system", "redis"))

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		opentelemetry.HandleSpanError(&span, "failed to connect to redis", err)
		return err
	}

	return nil
}

// GetClient returns a connected client, reconnecting on demand. Reconnect
// attempts are rate-limited; a rate-limited call fails fast with the time
// until the next attempt.
func (c *Client) GetClient(ctx context.Context) (redis.UniversalClient, error) {
	if c == nil {
		return nil, ErrNilClient
	}

	c.mu.RLock()

	if c.client != nil {
		client := c.client
		c.mu.RUnlock()

		return client, nil
	}

	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	if c.reconnectAttempts > 0 {
		delay := backoff.ExponentialWithJitter(500*time.Millisecond, c.reconnectAttempts)
		if delay > reconnectBackoffCap {
			delay = reconnectBackoffCap
		}

		if elapsed := c.clk.Monotonic() - c.lastReconnectAttempt; elapsed < delay {
			return nil, fmt.Errorf("redis reconnect: rate-limited (next attempt in %v)", delay-elapsed)
		}
	}

	c.lastReconnectAttempt = c.clk.Monotonic()

	ctx, span := opentelemetry.StartSpan(ctx, tracerName, "redis.reconnect")
	defer span.End()

	if err := c.connectLocked(ctx); err != nil {
		c.reconnectAttempts++

		opentelemetry.HandleSpanError(&span, "failed to reconnect redis", err)

		return nil, err
	}

	c.reconnectAttempts = 0

	return c.client, nil
}

// Ping probes the server through the live client.
func (c *Client) Ping(ctx context.Context) error {
	rdb, err := c.GetClient(ctx)
	if err != nil {
		return err
	}

	return rdb.Ping(ctx).Err()
}

// Close shuts down the underlying client.
func (c *Client) Close() error {
	if c == nil {
		return ErrNilClient
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closeClientLocked()
}

// StatusSnapshot returns connectivity and reconnect state.
func (c *Client) StatusSnapshot() Status {
	if c == nil {
		return Status{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return Status{
		Connected:         c.connected,
		ReconnectAttempts: c.reconnectAttempts,
	}
}

// IsConnected reports whether the client is currently connected.
func (c *Client) IsConnected() bool {
	return c.StatusSnapshot().Connected
}

func (c *Client) connectLocked(ctx context.Context) error {
	c.logger.Info("connecting to Redis/Valkey")

	if c.client != nil {
		if err := c.closeClientLocked(); err != nil {
			c.logger.Warnf("close before connect failed: %v", err)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.cfg.Address,
		Password:     c.cfg.Password,
		DB:           c.cfg.DB,
		PoolSize:     c.cfg.PoolSize,
		MinIdleConns: c.cfg.MinIdleConns,
		ReadTimeout:  c.cfg.ReadTimeout,
		WriteTimeout: c.cfg.WriteTimeout,
		DialTimeout:  c.cfg.DialTimeout,
		PoolTimeout:  c.cfg.PoolTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()

		c.connected = false
		c.logger.Errorf("redis ping failed: %v", err)

		return fmt.Errorf("redis connect: ping: %w", err)
	}

	c.client = rdb
	c.connected = true

	c.logger.Infof("connected to Redis/Valkey at %s", c.cfg.Address)

	return nil
}

func (c *Client) closeClientLocked() error {
	if c.client == nil {
		return nil
	}

	err := c.client.Close()
	c.client = nil
	c.connected = false

	return err
}
