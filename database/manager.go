package database

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/SubhajL/online-trading-sub001/backoff"
	"github.com/SubhajL/online-trading-sub001/clock"
	"github.com/SubhajL/online-trading-sub001/log"
	"github.com/SubhajL/online-trading-sub001/opentelemetry"
)

const tracerName = "database"

// Manager composes the pool with retry and transaction scoping. It is the
// entry point business code uses; the pool is exposed for health checks
// and stats.
type Manager struct {
	pool   *ConnectionPool
	clk    clock.Clock
	logger log.Logger
}

// NewManager wraps a pool. A nil clock defaults to the real clock, a nil
// logger to NoneLogger.
func NewManager(pool *ConnectionPool, clk clock.Clock, logger log.Logger) *Manager {
	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Manager{
		pool:   pool,
		clk:    clk,
		logger: logger,
	}
}

// Pool returns the underlying connection pool.
func (m *Manager) Pool() *ConnectionPool {
	return m.pool
}

// GetConnection leases a transactional connection. With retry enabled,
// connection-class failures are retried with exponential backoff up to
// RetryAttempts, and only after exhaustion does the call surface
// ErrConnection with attempt context. Non-transient failures propagate
// immediately: retrying them risks duplicate side effects.
func (m *Manager) GetConnection(ctx context.Context, retry bool) (*Lease, error) {
	cfg := m.pool.Config()

	for attempt := 0; ; attempt++ {
		lease, err := m.pool.LeaseTransactional(ctx)
		if err == nil {
			return lease, nil
		}

		if !retry || !IsConnectionError(err) {
			return nil, err
		}

		if attempt >= cfg.RetryAttempts {
			m.logger.Errorf("connection failed after %d attempts: %v", attempt+1, err)
			return nil, fmt.Errorf("%w: exhausted %d attempts: %v", ErrConnection, attempt+1, err)
		}

		delay := backoff.Exponential(cfg.RetryBaseDelay, attempt)
		m.logger.Warnf("connection attempt %d failed, retrying in %v: %v", attempt+1, delay, err)

		if waitErr := backoff.Wait(ctx, m.clk, delay); waitErr != nil {
			return nil, waitErr
		}
	}
}

// ExecuteWithRetry runs fn, retrying with exponential backoff only when fn
// fails with a connection-class error. Any other failure propagates on the
// first occurrence.
func (m *Manager) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	cfg := m.pool.Config()

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !IsConnectionError(err) {
			return err
		}

		if attempt >= cfg.RetryAttempts {
			m.logger.Errorf("operation failed after %d attempts: %v", attempt+1, err)
			return fmt.Errorf("%w: exhausted %d attempts: %v", ErrConnection, attempt+1, err)
		}

		delay := backoff.Exponential(cfg.RetryBaseDelay, attempt)
		m.logger.Warnf("operation attempt %d failed, retrying in %v: %v", attempt+1, delay, err)

		if waitErr := backoff.Wait(ctx, m.clk, delay); waitErr != nil {
			return waitErr
		}
	}
}

// Transaction leases a connection, begins a transaction, and runs fn inside
// it. A nil return from fn commits; an error (or a panic) rolls back. A
// rollback or commit failure during an already-propagating error is logged
// and the original error wins. The lease is released on every exit path.
func (m *Manager) Transaction(ctx context.Context, fn func(ctx context.Context, tx *TransactionContext) error) error {
	ctx, span := opentelemetry.StartSpan(ctx, tracerName, "manager.transaction")
	defer span.End()

	lease, err := m.GetConnection(ctx, true)
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to lease connection", err)
		return err
	}

	defer lease.Release()

	txc, err := beginTransaction(ctx, lease.Conn(), m.logger)
	if err != nil {
		opentelemetry.HandleSpanError(&span, "failed to begin transaction", err)
		return err
	}

	span.SetAttributes(attribute.String("db.transaction.id", txc.ID()))

	defer func() {
		if r := recover(); r != nil {
			if rbErr := txc.Rollback(ctx); rbErr != nil {
				m.logger.Errorf("rollback after panic failed for transaction %s: %v", txc.ID(), rbErr)
			}

			panic(r)
		}
	}()

	if fnErr := fn(ctx, txc); fnErr != nil {
		if rbErr := txc.Rollback(ctx); rbErr != nil {
			// The body's error is what the caller needs to see.
			m.logger.Errorf("rollback failed for transaction %s: %v (original error: %v)", txc.ID(), rbErr, fnErr)
		}

		opentelemetry.HandleSpanError(&span, "transaction rolled back", fnErr)

		return fnErr
	}

	if err := txc.Commit(ctx); err != nil {
		opentelemetry.HandleSpanError(&span, "commit failed", err)
		return err
	}

	return nil
}
