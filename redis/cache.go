package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore adapts a Client to the database.CacheDriver boundary.
type CacheStore struct {
	client *Client
}

// NewCacheStore wraps a Client.
func NewCacheStore(client *Client) *CacheStore {
	return &CacheStore{client: client}
}

// Get returns the value for key. A missing key is not an error: it returns
// the empty string, matching cache-aside usage where a miss just means
// "go to the store".
func (s *CacheStore) Get(ctx context.Context, key string) (string, error) {
	rdb, err := s.client.GetClient(ctx)
	if err != nil {
		return "", err
	}

	value, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}

	if err != nil {
		return "", err
	}

	return value, nil
}

// Set stores value under key with the given TTL. A zero TTL persists the
// key until explicitly removed.
func (s *CacheStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	rdb, err := s.client.GetClient(ctx)
	if err != nil {
		return err
	}

	return rdb.Set(ctx, key, value, ttl).Err()
}

// Ping probes the cache server.
func (s *CacheStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Close shuts down the underlying client.
func (s *CacheStore) Close() error {
	return s.client.Close()
}
