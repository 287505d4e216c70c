package circuitbreaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates an invalid breaker configuration.
var ErrInvalidConfig = errors.New("circuitbreaker: invalid config")

// Config holds circuit breaker configuration. It is validated at breaker
// construction and never mutated afterwards.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens a
	// closed breaker.
	FailureThreshold uint32

	// SuccessThreshold is the number of consecutive successes that closes a
	// half-open breaker.
	SuccessThreshold uint32

	// Timeout is how long an open breaker rejects requests before the next
	// query moves it to half-open.
	Timeout time.Duration

	// HalfOpenMaxConcurrent caps in-flight probe requests while half-open.
	HalfOpenMaxConcurrent uint32
}

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	if c.FailureThreshold == 0 {
		return fmt.Errorf("%w: failure threshold must be positive", ErrInvalidConfig)
	}

	if c.SuccessThreshold == 0 {
		return fmt.Errorf("%w: success threshold must be positive", ErrInvalidConfig)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}

	if c.HalfOpenMaxConcurrent == 0 {
		return fmt.Errorf("%w: half-open concurrency must be positive", ErrInvalidConfig)
	}

	return nil
}

// DefaultConfig provides balanced settings for most dependencies.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:      5,
		SuccessThreshold:      2,
		Timeout:               30 * time.Second,
		HalfOpenMaxConcurrent: 3,
	}
}

// AggressiveConfig for dependencies requiring fast failure detection.
func AggressiveConfig() Config {
	return Config{
		FailureThreshold:      3,
		SuccessThreshold:      3,
		Timeout:               10 * time.Second,
		HalfOpenMaxConcurrent: 1,
	}
}

// DatabaseConfig is more tolerant of failures since databases should be
// stable and temporary network issues shouldn't immediately trip the
// breaker.
func DatabaseConfig() Config {
	return Config{
		FailureThreshold:      10,
		SuccessThreshold:      2,
		Timeout:               45 * time.Second,
		HalfOpenMaxConcurrent: 5,
	}
}
