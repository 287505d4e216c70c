// Package backoff provides retry delay helpers with exponential growth and
// jitter.
//
// Use Exponential or ExponentialWithJitter to size delays and Wait to
// suspend through an injected clock so retry loops stay testable.
package backoff
