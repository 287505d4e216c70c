//go:build unit

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SubhajL/online-trading-sub001/clock"
)

var testEpoch = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestQueue(t *testing.T, capacity int, ttl time.Duration) (*BoundedPriorityQueue[string], *clock.Fake) {
	t.Helper()

	fake := clock.NewFake(testEpoch)

	q, err := New[string](capacity, ttl, fake, nil)
	require.NoError(t, err)

	return q, fake
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New[string](0, time.Minute, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New[string](-1, time.Minute, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New[string](10, 0, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	q, err := New[string](10, time.Minute, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, q)
}

func TestDequeueValid_PriorityOrder(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 3, 300*time.Second)

	require.NoError(t, q.Enqueue("A", 1))
	require.NoError(t, q.Enqueue("B", 10))
	require.NoError(t, q.Enqueue("C", 5))

	var got []string
	for {
		item, ok := q.DequeueValid()
		if !ok {
			break
		}

		got = append(got, item.Payload)
	}

	assert.Equal(t, []string{"B", "C", "A"}, got)
}

func TestDequeueValid_NonIncreasingPriorities(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 64, time.Hour)

	priorities := []int{3, 7, 7, 1, 9, 0, 9, 4, 4, 4, 8}
	for _, p := range priorities {
		require.NoError(t, q.Enqueue("x", p))
	}

	previous := int(^uint(0) >> 1)

	for {
		item, ok := q.DequeueValid()
		if !ok {
			break
		}

		assert.LessOrEqual(t, item.Priority, previous)
		previous = item.Priority
	}
}

func TestDequeueValid_SkipsExpired(t *testing.T) {
	t.Parallel()

	q, fake := newTestQueue(t, 10, time.Hour)

	require.NoError(t, q.Enqueue("stale-high", 100, WithTTL(time.Second)))
	require.NoError(t, q.Enqueue("fresh-low", 1))

	fake.Advance(2 * time.Second)

	item, ok := q.DequeueValid()
	require.True(t, ok)
	assert.Equal(t, "fresh-low", item.Payload)

	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Expired)
	assert.Equal(t, uint64(1), stats.Dequeued)
}

func TestDequeueValid_EmptyQueue(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 10, time.Hour)

	_, ok := q.DequeueValid()
	assert.False(t, ok)
}

func TestEnqueue_QueueFullAfterSweep(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 2, time.Hour)

	require.NoError(t, q.Enqueue("a", 1))
	require.NoError(t, q.Enqueue("b", 2))

	err := q.Enqueue("c", 3)
	assert.ErrorIs(t, err, ErrQueueFull)

	// Nothing was evicted.
	assert.Equal(t, 2, q.Stats().Size)
}

func TestEnqueue_SweepAdmitsAfterExpiry(t *testing.T) {
	t.Parallel()

	q, fake := newTestQueue(t, 2, time.Hour)

	require.NoError(t, q.Enqueue("short", 1, WithTTL(time.Second)))
	require.NoError(t, q.Enqueue("long", 2))

	require.ErrorIs(t, q.Enqueue("blocked", 3), ErrQueueFull)

	fake.Advance(2 * time.Second)

	require.NoError(t, q.Enqueue("admitted", 3))

	item, ok := q.DequeueValid()
	require.True(t, ok)
	assert.Equal(t, "admitted", item.Payload)
}

func TestEnqueue_ExpiresAtUsesDefaultTTL(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 4, 300*time.Second)

	require.NoError(t, q.Enqueue("a", 1))

	items := q.DrainValid()
	require.Len(t, items, 1)
	assert.Equal(t, testEpoch, items[0].AddedAt)
	assert.Equal(t, testEpoch.Add(300*time.Second), items[0].ExpiresAt)
}

func TestEnqueue_RejectsNonPositiveTTL(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 4, time.Minute)

	err := q.Enqueue("a", 1, WithTTL(-time.Second))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDrainValid_DescendingAndNonDestructive(t *testing.T) {
	t.Parallel()

	q, fake := newTestQueue(t, 10, time.Hour)

	require.NoError(t, q.Enqueue("low", 1))
	require.NoError(t, q.Enqueue("high", 9))
	require.NoError(t, q.Enqueue("mid", 5))
	require.NoError(t, q.Enqueue("gone", 7, WithTTL(time.Second)))

	fake.Advance(2 * time.Second)

	drained := q.DrainValid()
	require.Len(t, drained, 3)
	assert.Equal(t, "high", drained[0].Payload)
	assert.Equal(t, "mid", drained[1].Payload)
	assert.Equal(t, "low", drained[2].Payload)

	// Valid items remain dequeueable.
	assert.Equal(t, 3, q.Stats().Size)

	item, ok := q.DequeueValid()
	require.True(t, ok)
	assert.Equal(t, "high", item.Payload)
}

func TestSweepExpired(t *testing.T) {
	t.Parallel()

	q, fake := newTestQueue(t, 10, time.Hour)

	require.NoError(t, q.Enqueue("a", 1, WithTTL(time.Second)))
	require.NoError(t, q.Enqueue("b", 2, WithTTL(time.Second)))
	require.NoError(t, q.Enqueue("c", 3))

	assert.Equal(t, 0, q.SweepExpired())

	fake.Advance(time.Second)

	assert.Equal(t, 2, q.SweepExpired())
	assert.Equal(t, 1, q.Stats().Size)
	assert.Equal(t, uint64(2), q.Stats().Expired)
}

func TestStats_OldestAge(t *testing.T) {
	t.Parallel()

	q, fake := newTestQueue(t, 10, time.Hour)

	require.NoError(t, q.Enqueue("old", 1))

	fake.Advance(30 * time.Second)

	require.NoError(t, q.Enqueue("new", 2))

	stats := q.Stats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, 10, stats.Capacity)
	assert.Equal(t, 30*time.Second, stats.OldestAge)
}

func TestStats_EmptyQueueHasZeroAge(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 10, time.Hour)

	assert.Equal(t, time.Duration(0), q.Stats().OldestAge)
}

func TestWaitForItem_ReturnsWhenItemAvailable(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 10, time.Hour)

	done := make(chan error, 1)
	go func() {
		done <- q.WaitForItem(context.Background(), 0)
	}()

	// Give the waiter time to register, then enqueue.
	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.waiters) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, q.Enqueue("wake", 1))
	require.NoError(t, <-done)
}

func TestWaitForItem_ImmediateWhenNotEmpty(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 10, time.Hour)
	require.NoError(t, q.Enqueue("ready", 1))

	require.NoError(t, q.WaitForItem(context.Background(), time.Second))
}

func TestWaitForItem_TimeoutReleasesRegistration(t *testing.T) {
	t.Parallel()

	q, fake := newTestQueue(t, 10, time.Hour)

	done := make(chan error, 1)
	go func() {
		done <- q.WaitForItem(context.Background(), 5*time.Second)
	}()

	require.Eventually(t, func() bool { return fake.WaiterCount() == 1 },
		time.Second, time.Millisecond)

	fake.Advance(5 * time.Second)

	err := <-done
	require.ErrorIs(t, err, ErrWaitTimeout)

	q.mu.Lock()
	assert.Empty(t, q.waiters)
	q.mu.Unlock()
}

func TestWaitForItem_RacingConsumerForcesRewait(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 10, time.Hour)

	done := make(chan error, 1)
	go func() {
		done <- q.WaitForItem(context.Background(), 0)
	}()

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.waiters) == 1
	}, time.Second, time.Millisecond)

	// Enqueue then immediately steal the item: the waiter must not report
	// success for an empty queue.
	require.NoError(t, q.Enqueue("stolen", 1))

	_, ok := q.DequeueValid()
	require.True(t, ok)

	select {
	case err := <-done:
		t.Fatalf("waiter returned on empty queue: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, q.Enqueue("kept", 1))
	require.NoError(t, <-done)
}

func TestWaitForItem_ContextCancellation(t *testing.T) {
	t.Parallel()

	q, _ := newTestQueue(t, 10, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- q.WaitForItem(ctx, 0)
	}()

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.waiters) == 1
	}, time.Second, time.Millisecond)

	cancel()

	err := <-done
	require.ErrorIs(t, err, context.Canceled)

	q.mu.Lock()
	assert.Empty(t, q.waiters)
	q.mu.Unlock()
}

func TestWaitForItem_ExpiredItemsDoNotSatisfyWait(t *testing.T) {
	t.Parallel()

	q, fake := newTestQueue(t, 10, time.Hour)

	require.NoError(t, q.Enqueue("stale", 1, WithTTL(time.Second)))

	fake.Advance(2 * time.Second)

	done := make(chan error, 1)
	go func() {
		done <- q.WaitForItem(context.Background(), time.Second)
	}()

	// The stale item must not satisfy the wait; the waiter registers a
	// timeout timer on the fake clock instead.
	require.Eventually(t, func() bool { return fake.WaiterCount() == 1 },
		time.Second, time.Millisecond)

	fake.Advance(time.Second)

	require.ErrorIs(t, <-done, ErrWaitTimeout)
}

func TestCounters_Lifetime(t *testing.T) {
	t.Parallel()

	q, fake := newTestQueue(t, 10, time.Hour)

	require.NoError(t, q.Enqueue("a", 1))
	require.NoError(t, q.Enqueue("b", 2, WithTTL(time.Second)))
	require.NoError(t, q.Enqueue("c", 3))

	fake.Advance(time.Second)

	_, ok := q.DequeueValid()
	require.True(t, ok)

	_, ok = q.DequeueValid()
	require.True(t, ok)

	stats := q.Stats()
	assert.Equal(t, uint64(3), stats.Enqueued)
	assert.Equal(t, uint64(2), stats.Dequeued)
	assert.Equal(t, uint64(1), stats.Expired)
	assert.Equal(t, 0, stats.Size)
}
