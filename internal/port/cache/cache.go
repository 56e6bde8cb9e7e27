// Package cache defines the caching ports: a byte-oriented key-value cache
// used for alias lookups, and the durable store behind the query cache.
package cache

import (
	"context"
	"time"
)

// Cache is a key-value cache. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
