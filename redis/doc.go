// Package redis implements the cache store driver over Redis/Valkey.
//
// Client wraps a go-redis client with reconnect rate limiting so a dead
// server is not hammered by every caller at once. CacheStore adapts the
// client to the database.CacheDriver boundary, and LockManager provides
// RedLock-based distributed locking for cross-instance fencing.
package redis
