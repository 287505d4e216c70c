// Package clock abstracts time for the reliability core.
//
// Every component that measures elapsed time or suspends takes a Clock by
// injection: production code uses NewReal, tests use a Fake advanced
// manually with Advance so timeout and expiry behavior is deterministic
// without real delay.
package clock
