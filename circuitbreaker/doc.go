// Package circuitbreaker gates calls to flaky dependencies behind a
// three-state breaker (closed, open, half-open).
//
// Breaker is the per-dependency state machine; Manager keys breakers by
// dependency name and runs calls through them so failures are tracked
// consistently across callers. Optional health-check integration resets
// breakers once a dependency recovers.
//
// The open-to-half-open transition is evaluated lazily, on the next state
// query or request after the open timeout elapses. There is no background
// timer: the breaker is scheduler-independent, and an unqueried breaker
// stays open until someone asks. The health checker is the component that
// gives such a breaker a recovery path.
package circuitbreaker
