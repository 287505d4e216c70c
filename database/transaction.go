package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/SubhajL/online-trading-sub001/log"
)

// TransactionContext scopes one transaction on one leased connection. It
// begins on construction and finishes exactly once, via Commit or Rollback;
// statements issued after the finish fail with ErrNoActiveTransaction.
//
// The transaction handle belongs exclusively to this context for its whole
// scope. Operations are serialized by an internal mutex, so a stray
// concurrent caller observes ErrNoActiveTransaction rather than a torn
// commit.
type TransactionContext struct {
	id     string
	tx     Tx
	logger log.Logger

	mu     sync.Mutex
	active bool
}

// beginTransaction starts a transaction on the leased connection.
func beginTransaction(ctx context.Context, conn Conn, logger log.Logger) (*TransactionContext, error) {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrTransaction, err)
	}

	txc := &TransactionContext{
		id:     uuid.New().String(),
		tx:     tx,
		logger: logger,
		active: true,
	}

	logger.Debugf("transaction %s started", txc.id)

	return txc, nil
}

// ID identifies the transaction in logs.
func (t *TransactionContext) ID() string {
	return t.id
}

// Active reports whether the transaction can still accept statements.
func (t *TransactionContext) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.active
}

// Execute runs a statement inside the transaction and returns the number
// of affected rows.
func (t *TransactionContext) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return 0, fmt.Errorf("%w: transaction %s already finished", ErrNoActiveTransaction, t.id)
	}

	return t.tx.Execute(ctx, query, args...)
}

// Query runs a query inside the transaction.
func (t *TransactionContext) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return nil, fmt.Errorf("%w: transaction %s already finished", ErrNoActiveTransaction, t.id)
	}

	return t.tx.Query(ctx, query, args...)
}

// Commit finishes the transaction, making its writes visible. Exactly one
// of Commit or Rollback succeeds per transaction; later calls fail with
// ErrNoActiveTransaction.
func (t *TransactionContext) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return fmt.Errorf("%w: transaction %s already finished", ErrNoActiveTransaction, t.id)
	}

	t.active = false

	if err := t.tx.Commit(ctx); err != nil {
		t.logger.Errorf("transaction %s commit failed: %v", t.id, err)
		return fmt.Errorf("%w: commit: %v", ErrTransaction, err)
	}

	t.logger.Debugf("transaction %s committed", t.id)

	return nil
}

// Rollback finishes the transaction, discarding its writes.
func (t *TransactionContext) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return fmt.Errorf("%w: transaction %s already finished", ErrNoActiveTransaction, t.id)
	}

	t.active = false

	if err := t.tx.Rollback(ctx); err != nil {
		t.logger.Errorf("transaction %s rollback failed: %v", t.id, err)
		return fmt.Errorf("%w: rollback: %v", ErrTransaction, err)
	}

	t.logger.Debugf("transaction %s rolled back", t.id)

	return nil
}
