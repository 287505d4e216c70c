package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	redsyncredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"

	"github.com/SubhajL/online-trading-sub001/log"
	"github.com/SubhajL/online-trading-sub001/opentelemetry"
)

const maxLockTries = 1000

var (
	// ErrLockNotHeld is returned when unlock finds the lock already gone.
	ErrLockNotHeld = errors.New("redis: lock was not held or already expired")
	// ErrEmptyLockKey is returned when an empty lock key is provided.
	ErrEmptyLockKey = errors.New("redis: lock key cannot be empty")
	// ErrNilLockFn is returned when a nil function is passed to WithLock.
	ErrNilLockFn = errors.New("redis: lock function is nil")
	// ErrLockExpiryInvalid is returned when lock expiry is not positive.
	ErrLockExpiryInvalid = errors.New("redis: lock expiry must be greater than 0")
	// ErrLockTriesInvalid is returned when lock tries is outside [1, 1000].
	ErrLockTriesInvalid = errors.New("redis: lock tries must be between 1 and 1000")
	// ErrLockRetryDelayNegative is returned when retry delay is negative.
	ErrLockRetryDelayNegative = errors.New("redis: lock retry delay cannot be negative")
)

// LockOptions configures distributed lock behavior.
type LockOptions struct {
	// Expiry is how long the lock is held before auto-expiring. The
	// expiry bounds how long a crashed holder can block others.
	Expiry time.Duration

	// Tries is the number of acquisition attempts before giving up.
	Tries int

	// RetryDelay is the delay between attempts.
	RetryDelay time.Duration
}

// DefaultLockOptions returns defaults tuned for operations that complete
// within seconds.
func DefaultLockOptions() LockOptions {
	return LockOptions{
		Expiry:     10 * time.Second,
		Tries:      3,
		RetryDelay: 500 * time.Millisecond,
	}
}

// LockHandle is a held lock returned by TryLock.
type LockHandle interface {
	Unlock(ctx context.Context) error
}

// clientPool implements the redsync pool with lazy client resolution, so
// locks survive reconnects of the underlying Client.
type clientPool struct {
	conn *Client
}

func (p *clientPool) Get(ctx context.Context) (redsyncredis.Conn, error) {
	rdb, err := p.conn.GetClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get redis client for lock pool: %w", err)
	}

	return goredis.NewPool(rdb).Get(ctx)
}

// LockManager provides distributed locking over Redis. It fences critical
// sections across service instances, e.g. making sure two engines never
// process the same order event.
type LockManager struct {
	redsync *redsync.Redsync
	logger  log.Logger
}

// NewLockManager creates a lock manager on top of a connected Client. A
// nil logger defaults to NoneLogger.
func NewLockManager(conn *Client, logger log.Logger) (*LockManager, error) {
	if conn == nil {
		return nil, ErrNilClient
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	// Verify connectivity at construction time.
	if _, err := conn.GetClient(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to get redis client: %w", err)
	}

	return &LockManager{
		redsync: redsync.New(&clientPool{conn: conn}),
		logger:  logger,
	}, nil
}

// WithLock runs fn while holding the named lock, releasing it on every exit
// path including panic.
func (lm *LockManager) WithLock(ctx context.Context, lockKey string, fn func(context.Context) error) error {
	return lm.WithLockOptions(ctx, lockKey, DefaultLockOptions(), fn)
}

// WithLockOptions is WithLock with custom acquisition behavior.
func (lm *LockManager) WithLockOptions(ctx context.Context, lockKey string, opts LockOptions, fn func(context.Context) error) error {
	if fn == nil {
		return ErrNilLockFn
	}

	if strings.TrimSpace(lockKey) == "" {
		return ErrEmptyLockKey
	}

	if err := validateLockOptions(opts); err != nil {
		return err
	}

	safeKey := safeLockKeyForLogs(lockKey)

	ctx, span := opentelemetry.StartSpan(ctx, tracerName, "redis.lock.with_lock")
	defer span.End()

	mutex := lm.redsync.NewMutex(
		lockKey,
		redsync.WithExpiry(opts.Expiry),
		redsync.WithTries(opts.Tries),
		redsync.WithRetryDelay(opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		lm.logger.Errorf("failed to acquire lock %s: %v", safeKey, err)
		opentelemetry.HandleSpanError(&span, "failed to acquire lock", err)

		return fmt.Errorf("failed to acquire lock %s: %w", safeKey, err)
	}

	lm.logger.Debugf("lock acquired: %s", safeKey)

	defer func() {
		if ok, err := mutex.UnlockContext(ctx); !ok || err != nil {
			lm.logger.Errorf("failed to release lock %s (ok=%v): %v", safeKey, ok, err)
		} else {
			lm.logger.Debugf("lock released: %s", safeKey)
		}
	}()

	if err := fn(ctx); err != nil {
		opentelemetry.HandleSpanError(&span, "function execution failed under lock", err)
		return err
	}

	return nil
}

// TryLock attempts a single acquisition. It returns (nil, false, nil) when
// another holder has the lock; an error only for unexpected failures.
func (lm *LockManager) TryLock(ctx context.Context, lockKey string) (LockHandle, bool, error) {
	if strings.TrimSpace(lockKey) == "" {
		return nil, false, ErrEmptyLockKey
	}

	safeKey := safeLockKeyForLogs(lockKey)

	ctx, span := opentelemetry.StartSpan(ctx, tracerName, "redis.lock.try_lock")
	defer span.End()

	mutex := lm.redsync.NewMutex(
		lockKey,
		redsync.WithExpiry(DefaultLockOptions().Expiry),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		// redsync reports contention as ErrFailed / "lock already taken";
		// that is expected behavior, not a failure.
		contention := errors.Is(err, redsync.ErrFailed) ||
			strings.Contains(err.Error(), "lock already taken") ||
			strings.Contains(err.Error(), "failed to acquire lock")

		if contention {
			lm.logger.Debugf("lock already held by another process: %s", safeKey)
			return nil, false, nil
		}

		opentelemetry.HandleSpanError(&span, "failed to attempt lock acquisition", err)

		return nil, false, fmt.Errorf("failed to attempt lock acquisition for %s: %w", safeKey, err)
	}

	lm.logger.Debugf("lock acquired: %s", safeKey)

	return &lockHandle{mutex: mutex, logger: lm.logger}, true, nil
}

type lockHandle struct {
	mutex  *redsync.Mutex
	logger log.Logger
}

func (h *lockHandle) Unlock(ctx context.Context) error {
	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		h.logger.Errorf("failed to release lock: %v", err)
		return fmt.Errorf("redis: unlock: %w", err)
	}

	if !ok {
		h.logger.Warnf("lock was not held or already expired")
		return ErrLockNotHeld
	}

	return nil
}

func validateLockOptions(opts LockOptions) error {
	if opts.Expiry <= 0 {
		return ErrLockExpiryInvalid
	}

	if opts.Tries < 1 || opts.Tries > maxLockTries {
		return ErrLockTriesInvalid
	}

	if opts.RetryDelay < 0 {
		return ErrLockRetryDelayNegative
	}

	return nil
}

func safeLockKeyForLogs(lockKey string) string {
	const maxLockKeyLogLength = 128

	safeKey := strconv.QuoteToASCII(lockKey)
	if len(safeKey) <= maxLockKeyLogLength {
		return safeKey
	}

	return safeKey[:maxLockKeyLogLength] + "...(truncated)"
}
