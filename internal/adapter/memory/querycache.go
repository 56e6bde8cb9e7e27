// Package memory provides an in-process query cache entry store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/port/cache"
)

// QueryCacheStore keeps entries in a map. Entries are copied on the way in
// and out so callers never share state with the store.
type QueryCacheStore struct {
	mu      sync.RWMutex
	entries map[string]*querycache.Entry
}

var _ cache.EntryStore = (*QueryCacheStore)(nil)

func NewQueryCacheStore() *QueryCacheStore {
	return &QueryCacheStore{entries: make(map[string]*querycache.Entry)}
}

func clone(e *querycache.Entry) *querycache.Entry {
	c := *e
	c.Parameters = append([]byte(nil), e.Parameters...)
	c.Response = append([]byte(nil), e.Response...)
	if e.CoveragePercent != nil {
		v := *e.CoveragePercent
		c.CoveragePercent = &v
	}
	if e.SharedEvents != nil {
		v := *e.SharedEvents
		c.SharedEvents = &v
	}
	if e.ExpiresAt != nil {
		v := *e.ExpiresAt
		c.ExpiresAt = &v
	}
	if e.LastHitAt != nil {
		v := *e.LastHitAt
		c.LastHitAt = &v
	}
	return &c
}

func (s *QueryCacheStore) GetEntry(_ context.Context, key string) (*querycache.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return clone(e), nil
}

func (s *QueryCacheStore) UpsertEntry(_ context.Context, e *querycache.Entry) error {
	c := clone(e)
	c.HitCount = 0
	c.LastHitAt = nil
	s.mu.Lock()
	s.entries[c.CacheKey] = c
	s.mu.Unlock()
	return nil
}

func (s *QueryCacheStore) IncrementHit(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.HitCount++
		e.LastHitAt = &at
	}
	return nil
}

// deleteIf removes every entry matching pred and returns the count.
func (s *QueryCacheStore) deleteIf(pred func(*querycache.Entry) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, e := range s.entries {
		if pred(e) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *QueryCacheStore) DeleteEntry(_ context.Context, key string) (int64, error) {
	return s.deleteIf(func(e *querycache.Entry) bool { return e.CacheKey == key }), nil
}

func (s *QueryCacheStore) DeleteByKind(_ context.Context, kind intent.Kind) (int64, error) {
	return s.deleteIf(func(e *querycache.Entry) bool { return e.QueryKind == kind }), nil
}

func (s *QueryCacheStore) DeleteStaleVersions(_ context.Context, v querycache.Versions) (int64, error) {
	return s.deleteIf(func(e *querycache.Entry) bool { return !e.Current(v) }), nil
}

func (s *QueryCacheStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return s.deleteIf(func(e *querycache.Entry) bool { return e.Expired(now) }), nil
}

// EnforceMaxEntries keeps the limit most recently used entries. Ties break
// on the cache key, matching the Postgres store.
func (s *QueryCacheStore) EnforceMaxEntries(_ context.Context, limit int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int64(len(s.entries)) <= limit {
		return 0, nil
	}
	all := make([]*querycache.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].LastUsed(), all[j].LastUsed()
		if !a.Equal(b) {
			return a.After(b)
		}
		return all[i].CacheKey > all[j].CacheKey
	})
	if limit < 0 {
		limit = 0
	}
	var n int64
	for _, e := range all[limit:] {
		delete(s.entries, e.CacheKey)
		n++
	}
	return n, nil
}

func (s *QueryCacheStore) CountEntries(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

func (s *QueryCacheStore) Stats(context.Context) (querycache.Stats, error) {
	st := cache.EmptyStats()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		st.Entries++
		st.ByLevel[e.ConfidenceLevel]++
		st.TotalHits += e.HitCount
	}
	return st, nil
}
