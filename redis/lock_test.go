//go:build unit

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockManager(t *testing.T) *LockManager {
	t.Helper()

	client, _ := newTestClient(t)

	manager, err := NewLockManager(client, nil)
	require.NoError(t, err)

	return manager
}

func TestNewLockManager_NilClient(t *testing.T) {
	t.Parallel()

	_, err := NewLockManager(nil, nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestLockManager_WithLock(t *testing.T) {
	t.Parallel()

	manager := newTestLockManager(t)

	ran := false
	err := manager.WithLock(context.Background(), "lock:order:42", func(_ context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)

	// The lock was released, so it can be taken again.
	handle, acquired, err := manager.TryLock(context.Background(), "lock:order:42")
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, handle.Unlock(context.Background()))
}

func TestLockManager_WithLock_FnErrorPropagates(t *testing.T) {
	t.Parallel()

	manager := newTestLockManager(t)
	boom := errors.New("order rejected")

	err := manager.WithLock(context.Background(), "lock:order:43", func(_ context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestLockManager_WithLock_Validation(t *testing.T) {
	t.Parallel()

	manager := newTestLockManager(t)
	noop := func(_ context.Context) error { return nil }

	assert.ErrorIs(t, manager.WithLock(context.Background(), "  ", noop), ErrEmptyLockKey)
	assert.ErrorIs(t, manager.WithLock(context.Background(), "k", nil), ErrNilLockFn)

	err := manager.WithLockOptions(context.Background(), "k", LockOptions{Tries: 1, RetryDelay: time.Millisecond}, noop)
	assert.ErrorIs(t, err, ErrLockExpiryInvalid)

	err = manager.WithLockOptions(context.Background(), "k", LockOptions{Expiry: time.Second, Tries: 0}, noop)
	assert.ErrorIs(t, err, ErrLockTriesInvalid)

	err = manager.WithLockOptions(context.Background(), "k", LockOptions{Expiry: time.Second, Tries: 5000}, noop)
	assert.ErrorIs(t, err, ErrLockTriesInvalid)

	err = manager.WithLockOptions(context.Background(), "k", LockOptions{Expiry: time.Second, Tries: 1, RetryDelay: -time.Second}, noop)
	assert.ErrorIs(t, err, ErrLockRetryDelayNegative)
}

func TestLockManager_TryLock_Contention(t *testing.T) {
	t.Parallel()

	manager := newTestLockManager(t)
	ctx := context.Background()

	handle, acquired, err := manager.TryLock(ctx, "lock:position:ETHUSD")
	require.NoError(t, err)
	require.True(t, acquired)

	// A second holder is told the lock is busy without an error.
	second, acquired, err := manager.TryLock(ctx, "lock:position:ETHUSD")
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Nil(t, second)

	require.NoError(t, handle.Unlock(ctx))

	// Released: acquirable again.
	handle, acquired, err = manager.TryLock(ctx, "lock:position:ETHUSD")
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, handle.Unlock(ctx))
}

func TestLockHandle_DoubleUnlock(t *testing.T) {
	t.Parallel()

	manager := newTestLockManager(t)
	ctx := context.Background()

	handle, acquired, err := manager.TryLock(ctx, "lock:once")
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, handle.Unlock(ctx))

	err = handle.Unlock(ctx)
	assert.Error(t, err)
}

func TestSafeLockKeyForLogs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"lock:a"`, safeLockKeyForLogs("lock:a"))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}

	truncated := safeLockKeyForLogs(string(long))
	assert.Contains(t, truncated, "...(truncated)")
}
