// Package ristretto implements the cache port with an in-process
// dgraph-io/ristretto cache, used as the L1 for alias lookups.
package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is an in-process, cost-bounded cache.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// Stats reports L1 effectiveness.
type Stats struct {
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

// New creates a cache holding at most sizeMB megabytes of values.
func New(sizeMB int) (*Cache, error) {
	if sizeMB < 1 {
		sizeMB = 1
	}
	maxCost := int64(sizeMB) << 20
	// aliases are short; assume ~64 bytes per value for counter sizing
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxCost / 64 * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores value and waits until it is visible to Get. The cost of an
// entry is its key plus value length.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(key)+len(value)), ttl)
	c.c.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.c.Clear()
}

// Stats returns hit and miss counters since creation.
func (c *Cache) Stats() Stats {
	m := c.c.Metrics
	return Stats{Hits: m.Hits(), Misses: m.Misses(), HitRatio: m.Ratio()}
}

func (c *Cache) Close() {
	c.c.Close()
}
