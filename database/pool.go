package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SubhajL/online-trading-sub001/clock"
	"github.com/SubhajL/online-trading-sub001/log"
)

// ConnectionPool bounds concurrent access to the transactional store and
// fronts the cache store. Transactional leases are counted against
// PoolSize+MaxOverflow; a request that cannot get a slot within PoolTimeout
// fails with ErrPoolExhausted rather than hanging.
//
// Cache access is not counted against the ceiling: the cache client pools
// its own connections internally, and cache reads must not be starved by
// long-running transactions.
type ConnectionPool struct {
	config Config
	driver Driver
	cache  CacheDriver
	clk    clock.Clock
	logger log.Logger

	// Lease slots. Buffered to the hard ceiling; holding a slot is
	// holding the right to one native connection.
	slots chan struct{}

	mu          sync.RWMutex
	initialized bool
	leased      uint64
	released    uint64
	exhausted   uint64
}

// PoolStats is a point-in-time snapshot for monitoring.
type PoolStats struct {
	InUse       int
	Capacity    int
	Leased      uint64
	Released    uint64
	Exhausted   uint64
	Initialized bool
}

// ComponentHealth is the probe result for one backing store.
type ComponentHealth struct {
	Healthy bool
	Latency time.Duration
	Error   string
}

// HealthStatus reports both stores independently, so one store's outage
// never masks the other's status.
type HealthStatus struct {
	Transactional ComponentHealth
	Cache         ComponentHealth
}

// NewConnectionPool validates the config and builds a pool. A nil clock
// defaults to the real clock, a nil logger to NoneLogger. The pool is not
// usable until Initialize succeeds.
func NewConnectionPool(config Config, driver Driver, cache CacheDriver, clk clock.Clock, logger log.Logger) (*ConnectionPool, error) {
	config.normalizeDefaults()

	if err := config.validate(); err != nil {
		return nil, err
	}

	if driver == nil {
		return nil, configError("transactional driver is required")
	}

	if cache == nil {
		return nil, configError("cache driver is required")
	}

	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &ConnectionPool{
		config: config,
		driver: driver,
		cache:  cache,
		clk:    clk,
		logger: logger,
		slots:  make(chan struct{}, config.maxLeases()),
	}, nil
}

// Config returns the validated, defaulted configuration.
func (p *ConnectionPool) Config() Config {
	return p.config
}

// Initialize connects both stores. Idempotent: a second call on an
// initialized pool is a no-op. Required before any lease.
func (p *ConnectionPool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}

	p.logger.Info("initializing connection pool")

	if err := p.driver.Connect(ctx); err != nil {
		p.logger.Errorf("transactional store connect failed: %v", err)
		return fmt.Errorf("%w: transactional store connect: %v", ErrConnection, err)
	}

	if err := p.cache.Ping(ctx); err != nil {
		p.logger.Errorf("cache store ping failed: %v", err)
		return fmt.Errorf("%w: cache store ping: %v", ErrConnection, err)
	}

	p.initialized = true

	p.logger.Infof("connection pool initialized (capacity=%d, overflow=%d)", p.config.PoolSize, p.config.MaxOverflow)

	return nil
}

// LeaseTransactional leases one connection from the transactional store.
// The caller must Release the lease on every exit path, normally via defer.
// Fails with ErrPoolExhausted after PoolTimeout when the pool is at
// PoolSize+MaxOverflow.
func (p *ConnectionPool) LeaseTransactional(ctx context.Context) (*Lease, error) {
	if err := p.requireInitialized(); err != nil {
		return nil, err
	}

	if err := p.acquireSlot(ctx); err != nil {
		return nil, err
	}

	conn, err := p.driver.Acquire(ctx)
	if err != nil {
		p.releaseSlot()

		if IsConnectionError(err) {
			return nil, fmt.Errorf("%w: acquire: %v", ErrConnection, err)
		}

		return nil, err
	}

	p.mu.Lock()
	p.leased++
	p.mu.Unlock()

	lease := &Lease{
		id:   uuid.New().String(),
		conn: conn,
		pool: p,
	}

	p.logger.Debugf("leased transactional connection %s (in use: %d/%d)", lease.id, len(p.slots), cap(p.slots))

	return lease, nil
}

// LeaseCache returns the cache store handle. Cache access is deliberately
// outside the PoolSize+MaxOverflow ceiling: the cache client pools its own
// connections, so there is nothing per-call to release, and counting cache
// reads against the transactional ceiling would let long transactions
// starve them. The handle is shared and must not be closed by the caller.
func (p *ConnectionPool) LeaseCache(_ context.Context) (CacheDriver, error) {
	if err := p.requireInitialized(); err != nil {
		return nil, err
	}

	return p.cache, nil
}

// HealthCheck probes both stores independently and reports per-store
// results. A pure observer: it never mutates pool state.
func (p *ConnectionPool) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Transactional: p.probe(ctx, p.driver.Ping),
		Cache:         p.probe(ctx, p.cache.Ping),
	}
}

// Stats returns a snapshot of lease accounting.
func (p *ConnectionPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PoolStats{
		InUse:       len(p.slots),
		Capacity:    cap(p.slots),
		Leased:      p.leased,
		Released:    p.released,
		Exhausted:   p.exhausted,
		Initialized: p.initialized,
	}
}

// Close tears down both stores. The pool must be re-initialized before
// further use.
func (p *ConnectionPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	p.initialized = false

	return errors.Join(p.driver.Close(), p.cache.Close())
}

func (p *ConnectionPool) requireInitialized() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.initialized {
		return fmt.Errorf("%w: call Initialize first", ErrNotInitialized)
	}

	return nil
}

// acquireSlot takes one lease slot, waiting up to PoolTimeout. The timeout
// runs on the injected clock, so exhaustion is testable without real delay.
func (p *ConnectionPool) acquireSlot(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	default:
	}

	p.logger.Debugf("pool at capacity, waiting up to %v for a slot", p.config.PoolTimeout)

	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clk.After(p.config.PoolTimeout):
		p.mu.Lock()
		p.exhausted++
		p.mu.Unlock()

		p.logger.Warnf("pool exhausted: no slot within %v (capacity %d)", p.config.PoolTimeout, cap(p.slots))

		return fmt.Errorf("%w: no connection available within %v", ErrPoolExhausted, p.config.PoolTimeout)
	}
}

func (p *ConnectionPool) releaseSlot() {
	select {
	case <-p.slots:
	default:
		// Unbalanced release; nothing to return.
	}
}

func (p *ConnectionPool) probe(ctx context.Context, ping func(context.Context) error) ComponentHealth {
	start := p.clk.Monotonic()
	err := ping(ctx)
	latency := p.clk.Monotonic() - start

	if err != nil {
		return ComponentHealth{Healthy: false, Latency: latency, Error: err.Error()}
	}

	return ComponentHealth{Healthy: true, Latency: latency}
}

// Lease is a scoped handle on one transactional connection. Release is
// idempotent and must run on every exit path.
type Lease struct {
	id      string
	conn    Conn
	pool    *ConnectionPool
	release sync.Once
}

// ID identifies the lease in logs.
func (l *Lease) ID() string {
	return l.id
}

// Conn exposes the leased connection. Valid only until Release.
func (l *Lease) Conn() Conn {
	return l.conn
}

// Execute runs a statement on the leased connection outside any explicit
// transaction.
func (l *Lease) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	return l.conn.Execute(ctx, query, args...)
}

// Release returns the connection and its slot to the pool. Safe to call
// more than once; only the first call has effect.
func (l *Lease) Release() {
	l.release.Do(func() {
		l.conn.Release()
		l.pool.releaseSlot()

		l.pool.mu.Lock()
		l.pool.released++
		l.pool.mu.Unlock()

		l.pool.logger.Debugf("released transactional connection %s", l.id)
	})
}
