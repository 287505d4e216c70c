package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SubhajL/online-trading-sub001/database"
	"github.com/SubhajL/online-trading-sub001/log"
)

// Driver adapts a Connection to the database.Driver boundary. Acquired
// connections and transactions pin the primary: the lease holder may write,
// and reads inside a transaction must see its own writes.
type Driver struct {
	conn   *Connection
	logger log.Logger
}

// NewDriver wraps a Connection. A nil logger defaults to NoneLogger.
func NewDriver(conn *Connection, logger log.Logger) *Driver {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Driver{conn: conn, logger: logger}
}

// Connect establishes the primary/replica pools and runs migrations.
func (d *Driver) Connect(ctx context.Context) error {
	return d.conn.Connect(ctx)
}

// Acquire pins one connection from the primary's native pool.
func (d *Driver) Acquire(ctx context.Context) (database.Conn, error) {
	primary, err := d.conn.PrimaryDB()
	if err != nil {
		return nil, err
	}

	sqlConn, err := primary.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %s", sanitizeSensitiveError(err))
	}

	return &pinnedConn{conn: sqlConn, logger: d.logger}, nil
}

// Ping probes through the resolver, covering primary and replica health.
func (d *Driver) Ping(ctx context.Context) error {
	resolver, err := d.conn.Resolver(ctx)
	if err != nil {
		return err
	}

	return resolver.PingContext(ctx)
}

// Close tears down both native pools.
func (d *Driver) Close() error {
	return d.conn.Close()
}

// pinnedConn is one *sql.Conn leased from the primary pool.
type pinnedConn struct {
	conn   *sql.Conn
	logger log.Logger
}

func (c *pinnedConn) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (c *pinnedConn) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *pinnedConn) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &sqlTx{tx: tx}, nil
}

func (c *pinnedConn) Release() {
	if err := c.conn.Close(); err != nil {
		c.logger.Warnf("failed to release connection: %v", err)
	}
}

// sqlTx adapts *sql.Tx to the database.Tx boundary.
type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (t *sqlTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t *sqlTx) Commit(_ context.Context) error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback(_ context.Context) error {
	return t.tx.Rollback()
}
