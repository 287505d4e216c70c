package database

import (
	"context"
	"fmt"

	"github.com/SubhajL/online-trading-sub001/log"
)

// OptimisticLock detects write conflicts through a version column instead
// of holding a lock across read-modify-write.
//
// Versioned-row contract: every participating table carries an integer
// version column and an updated_at timestamp; each successful write
// increments version by exactly one and refreshes updated_at. The update
// statement passed to UpdateWithVersion must include the expected version
// in its predicate, e.g.
//
//	UPDATE positions
//	   SET quantity = $1, version = version + 1, updated_at = $2
//	 WHERE id = $3 AND version = $4
type OptimisticLock struct {
	logger log.Logger
}

// NewOptimisticLock creates the helper. A nil logger defaults to
// NoneLogger.
func NewOptimisticLock(logger log.Logger) *OptimisticLock {
	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &OptimisticLock{logger: logger}
}

// UpdateWithVersion runs a version-predicated update. Zero affected rows
// means a concurrent writer already advanced the version, and the call
// fails with ErrOptimisticLockConflict with no partial write applied.
//
// It never retries internally: the correct response to a conflict (re-read
// and reapply, drop the write, merge) is domain-specific and belongs to
// the caller.
func (o *OptimisticLock) UpdateWithVersion(ctx context.Context, exec Executor, query string, args ...any) error {
	affected, err := exec.Execute(ctx, query, args...)
	if err != nil {
		return err
	}

	if affected == 0 {
		o.logger.Debugf("versioned update matched no rows, concurrent writer won")
		return fmt.Errorf("%w: row version changed since read", ErrOptimisticLockConflict)
	}

	if affected > 1 {
		// The predicate should pin a single row; more than one means the
		// query is wrong, not that there was a conflict.
		o.logger.Warnf("versioned update affected %d rows, expected 1", affected)
	}

	return nil
}
