//go:build unit

package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SubhajL/online-trading-sub001/clock"
)

var testEpoch = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestBreaker(t *testing.T, cfg Config) (*Breaker, *clock.Fake) {
	t.Helper()

	fake := clock.NewFake(testEpoch)

	breaker, err := NewBreaker("test-dependency", cfg, fake, nil)
	require.NoError(t, err)

	return breaker, fake
}

func TestNewBreaker_ConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero failure threshold", cfg: Config{SuccessThreshold: 1, Timeout: time.Second, HalfOpenMaxConcurrent: 1}},
		{name: "zero success threshold", cfg: Config{FailureThreshold: 1, Timeout: time.Second, HalfOpenMaxConcurrent: 1}},
		{name: "zero timeout", cfg: Config{FailureThreshold: 1, SuccessThreshold: 1, HalfOpenMaxConcurrent: 1}},
		{name: "negative timeout", cfg: Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: -time.Second, HalfOpenMaxConcurrent: 1}},
		{name: "zero half-open concurrency", cfg: Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Second}},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewBreaker("x", tt.cfg, nil, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestBreaker_StartsClosed(t *testing.T) {
	t.Parallel()

	breaker, _ := newTestBreaker(t, DefaultConfig())

	assert.Equal(t, StateClosed, breaker.State())
	assert.True(t, breaker.Allow())
}

func TestBreaker_OpensAtExactFailureThreshold(t *testing.T) {
	t.Parallel()

	breaker, _ := newTestBreaker(t, Config{
		FailureThreshold:      3,
		SuccessThreshold:      1,
		Timeout:               time.Minute,
		HalfOpenMaxConcurrent: 1,
	})

	breaker.RecordFailure()
	breaker.RecordFailure()
	assert.Equal(t, StateClosed, breaker.State())

	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.State())
	assert.False(t, breaker.Allow())
}

func TestBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	t.Parallel()

	breaker, _ := newTestBreaker(t, Config{
		FailureThreshold:      2,
		SuccessThreshold:      1,
		Timeout:               time.Minute,
		HalfOpenMaxConcurrent: 1,
	})

	breaker.RecordFailure()
	breaker.RecordSuccess()
	breaker.RecordFailure()

	// Never two consecutive failures, so still closed.
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreaker_OpenRejectsUntilTimeout(t *testing.T) {
	t.Parallel()

	breaker, fake := newTestBreaker(t, Config{
		FailureThreshold:      2,
		SuccessThreshold:      1,
		Timeout:               60 * time.Second,
		HalfOpenMaxConcurrent: 1,
	})

	breaker.RecordFailure()
	breaker.RecordFailure()
	require.Equal(t, StateOpen, breaker.State())

	fake.Advance(59 * time.Second)
	assert.False(t, breaker.Allow())
	assert.Equal(t, StateOpen, breaker.State())

	fake.Advance(time.Second)
	assert.True(t, breaker.Allow())
	assert.Equal(t, StateHalfOpen, breaker.State())
}

func TestBreaker_HalfOpenClosesAtExactSuccessThreshold(t *testing.T) {
	t.Parallel()

	breaker, fake := newTestBreaker(t, Config{
		FailureThreshold:      1,
		SuccessThreshold:      3,
		Timeout:               time.Second,
		HalfOpenMaxConcurrent: 5,
	})

	breaker.RecordFailure()
	fake.Advance(time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	require.True(t, breaker.Allow())
	breaker.RecordSuccess()
	require.True(t, breaker.Allow())
	breaker.RecordSuccess()
	assert.Equal(t, StateHalfOpen, breaker.State())

	require.True(t, breaker.Allow())
	breaker.RecordSuccess()
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreaker_HalfOpenReopensOnSingleFailure(t *testing.T) {
	t.Parallel()

	breaker, fake := newTestBreaker(t, Config{
		FailureThreshold:      1,
		SuccessThreshold:      5,
		Timeout:               time.Second,
		HalfOpenMaxConcurrent: 10,
	})

	breaker.RecordFailure()
	fake.Advance(time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	// Successes short of the threshold, then one failure.
	require.True(t, breaker.Allow())
	breaker.RecordSuccess()
	require.True(t, breaker.Allow())
	breaker.RecordSuccess()

	require.True(t, breaker.Allow())
	breaker.RecordFailure()

	assert.Equal(t, StateOpen, breaker.State())
	assert.False(t, breaker.Allow())
}

func TestBreaker_HalfOpenConcurrencyCap(t *testing.T) {
	t.Parallel()

	breaker, fake := newTestBreaker(t, Config{
		FailureThreshold:      1,
		SuccessThreshold:      10,
		Timeout:               time.Second,
		HalfOpenMaxConcurrent: 2,
	})

	breaker.RecordFailure()
	fake.Advance(time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	assert.True(t, breaker.Allow())
	assert.True(t, breaker.Allow())
	assert.False(t, breaker.Allow())

	// Completing a probe frees a slot.
	breaker.RecordSuccess()
	assert.True(t, breaker.Allow())
}

func TestBreaker_HalfOpenInFlightResetOnReentry(t *testing.T) {
	t.Parallel()

	breaker, fake := newTestBreaker(t, Config{
		FailureThreshold:      1,
		SuccessThreshold:      10,
		Timeout:               time.Second,
		HalfOpenMaxConcurrent: 1,
	})

	breaker.RecordFailure()
	fake.Advance(time.Second)
	require.True(t, breaker.Allow())

	// Probe fails: back to open, then half-open again after the timeout.
	breaker.RecordFailure()
	require.Equal(t, StateOpen, breaker.State())

	fake.Advance(time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	// The in-flight counter was reset on re-entry, so a probe is admitted.
	assert.True(t, breaker.Allow())
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	breaker, _ := newTestBreaker(t, Config{
		FailureThreshold:      1,
		SuccessThreshold:      1,
		Timeout:               time.Hour,
		HalfOpenMaxConcurrent: 1,
	})

	breaker.RecordFailure()
	require.Equal(t, StateOpen, breaker.State())

	breaker.Reset()

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, Counts{}, breaker.Counts())
	assert.True(t, breaker.Allow())
}

func TestBreaker_StatsSnapshot(t *testing.T) {
	t.Parallel()

	breaker, fake := newTestBreaker(t, Config{
		FailureThreshold:      5,
		SuccessThreshold:      1,
		Timeout:               time.Minute,
		HalfOpenMaxConcurrent: 1,
	})

	require.True(t, breaker.Allow())
	breaker.RecordSuccess()
	require.True(t, breaker.Allow())
	breaker.RecordFailure()

	fake.Advance(10 * time.Second)

	stats := breaker.Stats()
	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, uint64(2), stats.Counts.Requests)
	assert.Equal(t, uint64(1), stats.Counts.TotalSuccesses)
	assert.Equal(t, uint64(1), stats.Counts.TotalFailures)
	assert.Equal(t, uint32(1), stats.Counts.ConsecutiveFailures)
	assert.Equal(t, 10*time.Second, stats.SinceTransition)
}

func TestBreaker_OpenCountsRejections(t *testing.T) {
	t.Parallel()

	breaker, _ := newTestBreaker(t, Config{
		FailureThreshold:      1,
		SuccessThreshold:      1,
		Timeout:               time.Hour,
		HalfOpenMaxConcurrent: 1,
	})

	breaker.RecordFailure()

	assert.False(t, breaker.Allow())
	assert.False(t, breaker.Allow())
	assert.Equal(t, uint64(2), breaker.Counts().TotalRejections)
}
