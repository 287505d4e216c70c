package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/SubhajL/online-trading-sub001/clock"
	"github.com/SubhajL/online-trading-sub001/log"
)

var (
	// ErrQueueFull indicates the queue is still at capacity after expired
	// items were swept. The caller should shed load or raise capacity; the
	// queue never silently evicts.
	ErrQueueFull = errors.New("queue: capacity exceeded")

	// ErrWaitTimeout indicates WaitForItem gave up before an item arrived.
	ErrWaitTimeout = errors.New("queue: wait for item timed out")

	// ErrInvalidConfig indicates the queue configuration is invalid.
	ErrInvalidConfig = errors.New("queue: invalid config")
)

// Item is a queued payload together with its scheduling metadata.
type Item[T any] struct {
	Payload   T
	Priority  int // higher values are served first
	AddedAt   time.Time
	ExpiresAt time.Time
}

// Stats is a point-in-time snapshot of queue state and lifetime counters.
type Stats struct {
	Size      int
	Capacity  int
	Enqueued  uint64
	Dequeued  uint64
	Expired   uint64
	OldestAge time.Duration
}

// BoundedPriorityQueue is a capacity- and time-bounded priority queue.
//
// All operations are safe for concurrent use. The queue never blocks while
// holding its lock: WaitForItem suspends outside the critical section via
// the injected clock.
type BoundedPriorityQueue[T any] struct {
	mu      sync.Mutex
	clk     clock.Clock
	logger  log.Logger
	items   itemHeap[T]
	waiters []chan struct{}

	capacity   int
	defaultTTL time.Duration

	enqueued uint64
	dequeued uint64
	expired  uint64
}

// New creates a bounded priority queue. Capacity and defaultTTL must be
// positive. A nil clock defaults to the real clock, a nil logger to
// NoneLogger.
func New[T any](capacity int, defaultTTL time.Duration, clk clock.Clock, logger log.Logger) (*BoundedPriorityQueue[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, capacity)
	}

	if defaultTTL <= 0 {
		return nil, fmt.Errorf("%w: default TTL must be positive, got %s", ErrInvalidConfig, defaultTTL)
	}

	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &BoundedPriorityQueue[T]{
		clk:        clk,
		logger:     logger,
		capacity:   capacity,
		defaultTTL: defaultTTL,
	}, nil
}

// EnqueueOption customizes a single enqueue.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	ttl time.Duration
}

// WithTTL overrides the queue's default TTL for one item.
func WithTTL(ttl time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		o.ttl = ttl
	}
}

// Enqueue inserts a payload with the given priority. When the queue is at
// capacity it first sweeps expired items; if still full it fails with
// ErrQueueFull. O(log n) aside from that sweep.
func (q *BoundedPriorityQueue[T]) Enqueue(payload T, priority int, opts ...EnqueueOption) error {
	options := enqueueOptions{ttl: q.defaultTTL}
	for _, opt := range opts {
		opt(&options)
	}

	if options.ttl <= 0 {
		return fmt.Errorf("%w: item TTL must be positive, got %s", ErrInvalidConfig, options.ttl)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clk.Now()

	if q.items.Len() >= q.capacity {
		if removed := q.sweepLocked(now); removed > 0 {
			q.logger.Debugf("swept %d expired items to admit new enqueue", removed)
		}
	}

	if q.items.Len() >= q.capacity {
		return fmt.Errorf("%w: %d items at capacity %d", ErrQueueFull, q.items.Len(), q.capacity)
	}

	heap.Push(&q.items, Item[T]{
		Payload:   payload,
		Priority:  priority,
		AddedAt:   now,
		ExpiresAt: now.Add(options.ttl),
	})
	q.enqueued++

	q.notifyLocked()

	return nil
}

// DequeueValid pops the highest-priority unexpired item. Expired items
// encountered on the way are discarded and counted as expired, never
// returned. The second result is false when no valid item remains.
func (q *BoundedPriorityQueue[T]) DequeueValid() (Item[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clk.Now()

	for q.items.Len() > 0 {
		item := heap.Pop(&q.items).(Item[T])
		if !item.ExpiresAt.After(now) {
			q.expired++
			continue
		}

		q.dequeued++

		return item, true
	}

	var zero Item[T]

	return zero, false
}

// DrainValid returns every unexpired item in descending priority order
// without removing them. Expired items are swept as a side effect.
func (q *BoundedPriorityQueue[T]) DrainValid() []Item[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sweepLocked(q.clk.Now())

	snapshot := make([]Item[T], len(q.items))
	copy(snapshot, q.items)

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].Priority > snapshot[j].Priority
	})

	return snapshot
}

// SweepExpired removes all expired items and returns how many were removed.
func (q *BoundedPriorityQueue[T]) SweepExpired() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.sweepLocked(q.clk.Now())
}

// WaitForItem suspends until an unexpired item is available, the timeout
// elapses, or ctx is done. A non-positive timeout waits until ctx is done.
//
// The wake registration is always released on timeout or cancellation, and
// a woken waiter re-checks the queue so a racing consumer that re-emptied
// it cannot cause a spurious success.
func (q *BoundedPriorityQueue[T]) WaitForItem(ctx context.Context, timeout time.Duration) error {
	var deadline time.Duration

	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = q.clk.Monotonic() + timeout
	}

	for {
		q.mu.Lock()

		q.sweepLocked(q.clk.Now())

		if q.items.Len() > 0 {
			q.mu.Unlock()
			return nil
		}

		wake := make(chan struct{}, 1)
		q.waiters = append(q.waiters, wake)
		q.mu.Unlock()

		var timeoutCh <-chan time.Time

		if hasDeadline {
			remaining := deadline - q.clk.Monotonic()
			if remaining <= 0 {
				q.releaseWaiter(wake)
				return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
			}

			timeoutCh = q.clk.After(remaining)
		}

		select {
		case <-wake:
			// Re-check: a racing consumer may have drained the queue
			// between the signal and this wakeup.
		case <-timeoutCh:
			q.releaseWaiter(wake)
			return fmt.Errorf("%w after %s", ErrWaitTimeout, timeout)
		case <-ctx.Done():
			q.releaseWaiter(wake)
			return ctx.Err()
		}
	}
}

// Stats returns a snapshot of current state and lifetime counters.
func (q *BoundedPriorityQueue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := Stats{
		Size:     q.items.Len(),
		Capacity: q.capacity,
		Enqueued: q.enqueued,
		Dequeued: q.dequeued,
		Expired:  q.expired,
	}

	if q.items.Len() > 0 {
		now := q.clk.Now()
		oldest := q.items[0].AddedAt

		for _, item := range q.items[1:] {
			if item.AddedAt.Before(oldest) {
				oldest = item.AddedAt
			}
		}

		stats.OldestAge = now.Sub(oldest)
	}

	return stats
}

// sweepLocked removes expired items and returns the count removed.
// Caller must hold q.mu.
func (q *BoundedPriorityQueue[T]) sweepLocked(now time.Time) int {
	retained := q.items[:0]

	removed := 0

	for _, item := range q.items {
		if item.ExpiresAt.After(now) {
			retained = append(retained, item)
		} else {
			removed++
		}
	}

	if removed > 0 {
		q.items = retained
		heap.Init(&q.items)
		q.expired += uint64(removed)
	}

	return removed
}

// notifyLocked wakes exactly one registered waiter. Caller must hold q.mu.
func (q *BoundedPriorityQueue[T]) notifyLocked() {
	if len(q.waiters) == 0 {
		return
	}

	wake := q.waiters[0]
	q.waiters = q.waiters[1:]
	wake <- struct{}{}
}

// releaseWaiter drops a wake registration. If the waiter was signaled
// concurrently with its timeout, the signal is handed to the next waiter so
// no wakeup is lost.
func (q *BoundedPriorityQueue[T]) releaseWaiter(wake chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, w := range q.waiters {
		if w == wake {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			return
		}
	}

	// Not registered anymore: notifyLocked already consumed this waiter.
	// Pass the pending signal on if anyone else is waiting.
	select {
	case <-wake:
		q.notifyLocked()
	default:
	}
}

// itemHeap orders items by descending priority. Ties are heap order, not
// insertion order.
type itemHeap[T any] []Item[T]

func (h itemHeap[T]) Len() int { return len(h) }

func (h itemHeap[T]) Less(i, j int) bool { return h[i].Priority > h[j].Priority }

func (h itemHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap[T]) Push(x any) {
	*h = append(*h, x.(Item[T]))
}

func (h *itemHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}
