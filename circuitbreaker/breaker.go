package circuitbreaker

import (
	"sync"
	"time"

	"github.com/SubhajL/online-trading-sub001/clock"
	"github.com/SubhajL/online-trading-sub001/log"
)

// Breaker is a per-dependency failure gate.
//
// Allow, RecordSuccess, RecordFailure, Reset, State, and Stats are mutually
// atomic: every observer sees the most recently completed transition, never
// a partial one. Elapsed time is measured on the injected clock's monotonic
// reading, so wall-clock adjustments cannot reopen or close a breaker.
type Breaker struct {
	mu     sync.Mutex
	cfg    Config
	clk    clock.Clock
	logger log.Logger
	name   string

	state            State
	counts           Counts
	halfOpenInFlight uint32
	lastTransition   time.Duration

	// onStateChange is invoked asynchronously after a completed transition.
	onStateChange func(name string, from, to State)
}

// NewBreaker creates a closed breaker with the given configuration. A nil
// clock defaults to the real clock, a nil logger to NoneLogger.
func NewBreaker(name string, cfg Config, clk clock.Clock, logger log.Logger) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clk == nil {
		clk = clock.NewReal()
	}

	if logger == nil {
		logger = &log.NoneLogger{}
	}

	return &Breaker{
		cfg:            cfg,
		clk:            clk,
		logger:         logger,
		name:           name,
		state:          StateClosed,
		lastTransition: clk.Monotonic(),
	}, nil
}

// Allow reports whether a request may proceed. In the half-open state it
// admits at most HalfOpenMaxConcurrent in-flight probes; the in-flight
// counter is reset on every transition into half-open.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evaluateLocked()

	switch b.state {
	case StateClosed:
		b.counts.Requests++
		return true
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxConcurrent {
			b.counts.TotalRejections++
			return false
		}

		b.halfOpenInFlight++
		b.counts.Requests++

		return true
	default: // StateOpen
		b.counts.TotalRejections++
		return false
	}
}

// RecordSuccess records a successful call and may close a half-open
// breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evaluateLocked()

	b.counts.TotalSuccesses++
	b.counts.ConsecutiveSuccesses++
	b.counts.ConsecutiveFailures = 0

	switch b.state {
	case StateHalfOpen:
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}

		if b.counts.ConsecutiveSuccesses >= b.cfg.SuccessThreshold {
			b.transitionLocked(StateClosed)
		}
	default:
		// Closed: nothing further. Open: a straggling success from a call
		// that started before the breaker opened; counted, no transition.
	}
}

// RecordFailure records a failed call. It opens a closed breaker at the
// failure threshold and reopens a half-open breaker immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evaluateLocked()

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0

	switch b.state {
	case StateClosed:
		if b.counts.ConsecutiveFailures >= b.cfg.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}

		b.transitionLocked(StateOpen)
	default: // StateOpen: already open, nothing further.
	}
}

// Reset returns the breaker to closed with zeroed counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.counts = Counts{}
	b.halfOpenInFlight = 0

	if b.state != StateClosed {
		b.transitionLocked(StateClosed)
	} else {
		b.lastTransition = b.clk.Monotonic()
	}
}

// State returns the current state, applying the lazy open-to-half-open
// evaluation first.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evaluateLocked()

	return b.state
}

// Counts returns a copy of the lifetime and consecutive counters.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Stats returns a snapshot for monitoring. Aside from the documented lazy
// open-to-half-open evaluation, it is a pure observer.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evaluateLocked()

	return Stats{
		State:            b.state,
		Counts:           b.counts,
		HalfOpenInFlight: b.halfOpenInFlight,
		SinceTransition:  b.clk.Monotonic() - b.lastTransition,
	}
}

// evaluateLocked applies the lazy OPEN -> HALF_OPEN transition once the
// open timeout has elapsed. Caller must hold b.mu.
func (b *Breaker) evaluateLocked() {
	if b.state != StateOpen {
		return
	}

	if b.clk.Monotonic()-b.lastTransition >= b.cfg.Timeout {
		b.transitionLocked(StateHalfOpen)
	}
}

// transitionLocked moves the breaker to a new state, resetting consecutive
// counters and, on entry into half-open, the probe in-flight counter.
// Caller must hold b.mu.
func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}

	b.state = to
	b.lastTransition = b.clk.Monotonic()
	b.counts.ConsecutiveSuccesses = 0
	b.counts.ConsecutiveFailures = 0

	if to == StateHalfOpen {
		b.halfOpenInFlight = 0
	}

	b.logger.Warnf("circuit breaker [%s] state changed: %s -> %s", b.name, from, to)

	if cb := b.onStateChange; cb != nil {
		// Notify outside the critical section so listeners can query the
		// breaker without deadlocking.
		go cb(b.name, from, to)
	}
}
