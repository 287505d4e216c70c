// Package queue provides a memory-bounded priority queue with per-item
// expiry, used to hold pending events without letting stale work accumulate.
//
// Items are served in descending priority order; the relative order of
// equal-priority items is heap order and deliberately unspecified. Expired
// items are removed lazily, when an operation encounters them, and are
// never observable to consumers.
package queue
