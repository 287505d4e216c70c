package database

import (
	"context"
	"time"
)

// Driver is the narrow boundary to the transactional store. Production
// implementations wrap a native pool (see the postgres package); tests
// substitute a fake.
type Driver interface {
	// Connect establishes the native pool. Must be safe to call again
	// after a failure.
	Connect(ctx context.Context) error

	// Acquire leases one connection from the native pool. The returned
	// connection belongs exclusively to the caller until Release.
	Acquire(ctx context.Context) (Conn, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close tears down the native pool.
	Close() error
}

// Conn is a single leased connection.
type Conn interface {
	// Execute runs a statement and returns the number of affected rows.
	Execute(ctx context.Context, query string, args ...any) (int64, error)

	// Query runs a query and returns its result rows.
	Query(ctx context.Context, query string, args ...any) (Rows, error)

	// Begin starts a transaction on this connection.
	Begin(ctx context.Context) (Tx, error)

	// Release returns the connection to the native pool. Idempotent.
	Release()
}

// Tx is a transaction handle owned by exactly one TransactionContext for
// its whole scope.
type Tx interface {
	Execute(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Rows is the subset of *sql.Rows the layer depends on. *sql.Rows satisfies
// it directly.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// CacheDriver is the narrow boundary to the cache store.
type CacheDriver interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// Executor runs statements. Satisfied by *TransactionContext and Conn, so
// optimistic-lock updates work inside and outside explicit transactions.
type Executor interface {
	Execute(ctx context.Context, query string, args ...any) (int64, error)
}
