package clock

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for deterministic tests.
//
// Advance moves both the instant and the monotonic counter forward and
// wakes pending sleepers and After timers in ascending wake order. Waiters
// are kept in a min-heap keyed by wake time so many concurrent waiters stay
// cheap to fire.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	mono    time.Duration
	seq     uint64
	waiters waiterHeap
}

// Compile-time assertion: *Fake implements Clock.
var _ Clock = (*Fake)(nil)

// waiter is a pending sleep or timer registration.
type waiter struct {
	wake  time.Duration // monotonic instant at which to fire
	seq   uint64        // FIFO tie-break for equal wake times
	ch    chan time.Time
	index int
}

// NewFake creates a fake clock whose instant starts at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current instant.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

// Monotonic returns the fake monotonic counter.
func (f *Fake) Monotonic() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.mono
}

// Sleep suspends until Advance has moved the clock at least d forward, or
// until ctx is done.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	w := f.register(d)

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		f.unregister(w)
		return ctx.Err()
	}
}

// After returns a channel that fires once Advance has moved the clock at
// least d forward. A non-positive d fires immediately.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	if d <= 0 {
		ch := make(chan time.Time, 1)

		f.mu.Lock()
		ch <- f.now
		f.mu.Unlock()

		return ch
	}

	return f.register(d).ch
}

// Advance moves the clock forward by d, firing due waiters in ascending
// wake order. Each waiter observes the instant at its own wake time, not
// the final instant.
func (f *Fake) Advance(d time.Duration) {
	if d <= 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.mono + d

	for f.waiters.Len() > 0 {
		next := f.waiters[0]
		if next.wake > target {
			break
		}

		heap.Pop(&f.waiters)

		step := next.wake - f.mono
		f.mono = next.wake
		f.now = f.now.Add(step)

		// Buffered channel: the waiter may have been abandoned.
		next.ch <- f.now
	}

	f.now = f.now.Add(target - f.mono)
	f.mono = target
}

// WaiterCount reports the number of pending waiters. Useful for asserting
// that timed-out waits released their registrations.
func (f *Fake) WaiterCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.waiters.Len()
}

func (f *Fake) register(d time.Duration) *waiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	w := &waiter{
		wake: f.mono + d,
		seq:  f.seq,
		ch:   make(chan time.Time, 1),
	}
	heap.Push(&f.waiters, w)

	return w
}

func (f *Fake) unregister(w *waiter) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if w.index >= 0 && w.index < f.waiters.Len() && f.waiters[w.index] == w {
		heap.Remove(&f.waiters, w.index)
	}
}

// waiterHeap orders waiters by wake time, then registration order.
type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }

func (h waiterHeap) Less(i, j int) bool {
	if h[i].wake != h[j].wake {
		return h[i].wake < h[j].wake
	}

	return h[i].seq < h[j].seq
}

func (h waiterHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *waiterHeap) Push(x any) {
	w := x.(*waiter)
	w.index = len(*h)
	*h = append(*h, w)
}

func (h *waiterHeap) Pop() any {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	w.index = -1
	*h = old[:n-1]

	return w
}
