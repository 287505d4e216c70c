package circuitbreaker

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrOpenState is returned when a request is rejected because the
	// breaker is open.
	ErrOpenState = errors.New("circuitbreaker: circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe budget is
	// exhausted.
	ErrTooManyRequests = errors.New("circuitbreaker: too many requests in half-open state")

	// ErrBreakerNotFound is returned by Manager operations on an
	// unregistered dependency.
	ErrBreakerNotFound = errors.New("circuitbreaker: breaker not found")
)

// State represents circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// Counts represents circuit breaker request statistics.
type Counts struct {
	Requests             uint64
	TotalSuccesses       uint64
	TotalFailures        uint64
	TotalRejections      uint64
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Stats is a snapshot of breaker state for monitoring.
type Stats struct {
	State            State
	Counts           Counts
	HalfOpenInFlight uint32
	SinceTransition  time.Duration
}

// StateChangeListener is notified when a circuit breaker changes state.
type StateChangeListener interface {
	// OnStateChange is called when a circuit breaker changes state.
	OnStateChange(name string, from State, to State)
}

// HealthCheckFunc defines a function that checks dependency health.
type HealthCheckFunc func(ctx context.Context) error
