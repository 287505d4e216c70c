package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

var (
	// ErrInvalidConfig indicates that the database configuration is invalid.
	ErrInvalidConfig = errors.New("database: invalid config")

	// ErrNotInitialized indicates that the pool was used before Initialize.
	ErrNotInitialized = errors.New("database: pool not initialized")

	// ErrConnection indicates a transient connectivity failure. Operations
	// failing with it are safe to retry.
	ErrConnection = errors.New("database: connection error")

	// ErrPoolExhausted indicates that no lease became available within the
	// pool timeout. The caller should back off.
	ErrPoolExhausted = errors.New("database: connection pool exhausted")

	// ErrTransaction indicates a begin, commit, or rollback failure.
	ErrTransaction = errors.New("database: transaction error")

	// ErrNoActiveTransaction indicates a statement issued on a transaction
	// that already committed or rolled back.
	ErrNoActiveTransaction = errors.New("database: no active transaction")

	// ErrOptimisticLockConflict indicates that a conditional update matched
	// zero rows because a concurrent writer advanced the version. Benign
	// under contention: re-read and retry at the business layer.
	ErrOptimisticLockConflict = errors.New("database: optimistic lock conflict")
)

// configError wraps a config validation failure with ErrInvalidConfig so
// callers can match the whole class with errors.Is.
func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// transientErrorFragments covers driver-level failures that do not surface
// as typed errors but are known to be connection-class.
var transientErrorFragments = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no such host",
	"connection timed out",
	"server closed the connection",
}

// IsConnectionError reports whether err is a transient connection-class
// failure worth retrying. Context cancellation is never connection-class:
// retrying a canceled operation only delays the caller's exit.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, ErrConnection) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientErrorFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}
