package cache

import (
	"context"
	"time"

	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/querycache"
)

// EntryStore persists query cache entries. Implementations must be safe
// for concurrent use.
type EntryStore interface {
	// GetEntry returns the entry for key. A missing key is (nil, nil).
	GetEntry(ctx context.Context, key string) (*querycache.Entry, error)
	// UpsertEntry inserts or replaces the entry keyed by e.CacheKey,
	// resetting its hit counters.
	UpsertEntry(ctx context.Context, e *querycache.Entry) error
	IncrementHit(ctx context.Context, key string, at time.Time) error

	DeleteEntry(ctx context.Context, key string) (int64, error)
	DeleteByKind(ctx context.Context, kind intent.Kind) (int64, error)

	// Maintenance.
	DeleteStaleVersions(ctx context.Context, v querycache.Versions) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// EnforceMaxEntries deletes the least recently used entries, ordered by
	// coalesce(last_hit_at, created_at), until at most limit remain.
	EnforceMaxEntries(ctx context.Context, limit int64) (int64, error)
	CountEntries(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (querycache.Stats, error)
}

// Reclaimer is implemented by stores that can compact storage.
type Reclaimer interface {
	Reclaim(ctx context.Context) error
}

// EmptyStats returns zeroed stats with an initialised level map.
func EmptyStats() querycache.Stats {
	return querycache.Stats{ByLevel: map[coverage.Level]int64{}}
}
