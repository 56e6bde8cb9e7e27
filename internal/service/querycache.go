package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/query"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/port/cache"
	"github.com/Strob0t/paddock/internal/port/messagequeue"
)

// CacheService owns query cache entries: key derivation, version-aware
// reads, confidence-gated writes and explicit invalidation.
type CacheService struct {
	store    cache.EntryStore
	versions querycache.Versions
	events   *eventPublisher
	now      func() time.Time
}

// NewCacheService creates a CacheService stamping entries with versions.
func NewCacheService(store cache.EntryStore, versions querycache.Versions) *CacheService {
	return &CacheService{store: store, versions: versions, events: &eventPublisher{}, now: time.Now}
}

// SetPublisher enables cache.invalidated events.
func (s *CacheService) SetPublisher(pub messagequeue.Publisher, instance string) {
	s.events = &eventPublisher{pub: pub, instance: instance}
}

// Versions returns the running methodology and schema versions.
func (s *CacheService) Versions() querycache.Versions { return s.versions }

// Key derives the cache key for i from its canonical parameters.
func (s *CacheService) Key(i intent.Intent) (string, error) {
	return querycache.ComputeKey(i.Kind(), i.CanonicalParams())
}

// Get returns the usable entry for key. Expired entries and entries written
// under other versions are misses, never errors.
func (s *CacheService) Get(ctx context.Context, key string) (*querycache.Entry, bool, error) {
	e, err := s.store.GetEntry(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	if e == nil || !e.Usable(s.now(), s.versions) {
		return nil, false, nil
	}
	return e, true, nil
}

// Set upserts e. Entries that are not cacheable are dropped and Set
// reports false.
func (s *CacheService) Set(ctx context.Context, e *querycache.Entry) (bool, error) {
	if !e.ConfidenceLevel.Cacheable() {
		return false, nil
	}
	if err := s.store.UpsertEntry(ctx, e); err != nil {
		return false, fmt.Errorf("cache set: %w", err)
	}
	return true, nil
}

// NewEntry builds the entry for a fresh result under the running versions.
func (s *CacheService) NewEntry(key string, i intent.Intent, res *query.Result, cov coverage.Result) (*querycache.Entry, error) {
	hash, params, err := querycache.HashParams(i.CanonicalParams())
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encode cached response: %w", err)
	}
	now := s.now().UTC()
	e := &querycache.Entry{
		CacheKey:           key,
		QueryKind:          i.Kind(),
		QueryHash:          hash,
		Parameters:         params,
		Response:           body,
		ConfidenceLevel:    cov.Level,
		CoveragePercent:    cov.CoveragePercent,
		SharedEvents:       cov.SharedEvents,
		MethodologyVersion: s.versions.Methodology,
		SchemaVersion:      s.versions.Schema,
		CreatedAt:          now,
	}
	if cov.TTL > 0 {
		exp := now.Add(cov.TTL)
		e.ExpiresAt = &exp
	}
	return e, nil
}

// IncrementHit records a replay. Failures are logged and swallowed.
func (s *CacheService) IncrementHit(ctx context.Context, key string) {
	if err := s.store.IncrementHit(ctx, key, s.now().UTC()); err != nil {
		slog.WarnContext(ctx, "cache hit not recorded", "key", querycache.KeyPrefix(key), "error", err)
	}
}

// Invalidate removes one entry and announces it.
func (s *CacheService) Invalidate(ctx context.Context, key string) (int64, error) {
	n, err := s.store.DeleteEntry(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("invalidate %s: %w", querycache.KeyPrefix(key), err)
	}
	s.events.invalidated(ctx, querycache.Invalidation{Key: key, Removed: n, At: s.now().UTC()})
	return n, nil
}

// InvalidateKind removes every entry of kind and announces it.
func (s *CacheService) InvalidateKind(ctx context.Context, kind intent.Kind) (int64, error) {
	n, err := s.store.DeleteByKind(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("invalidate kind %s: %w", kind, err)
	}
	s.events.invalidated(ctx, querycache.Invalidation{Kind: kind, Removed: n, At: s.now().UTC()})
	return n, nil
}

// FollowInvalidations applies invalidations announced by other instances to
// the local store. It is only useful when each instance owns its store.
func (s *CacheService) FollowInvalidations(ctx context.Context, sub messagequeue.Subscriber) (func(), error) {
	return sub.Subscribe(ctx, messagequeue.SubjectCacheInvalidated, func(ctx context.Context, _ string, data []byte) error {
		var p messagequeue.CacheInvalidatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode invalidation: %w", err)
		}
		if p.Instance == s.events.instance {
			return nil
		}
		var (
			n   int64
			err error
		)
		switch inv := p.Invalidation; {
		case inv.Key != "":
			n, err = s.store.DeleteEntry(ctx, inv.Key)
		case inv.Kind != "":
			n, err = s.store.DeleteByKind(ctx, inv.Kind)
		default:
			return nil
		}
		if err != nil {
			return fmt.Errorf("apply invalidation from %s: %w", p.Instance, err)
		}
		slog.DebugContext(ctx, "remote invalidation applied", "from", p.Instance, "removed", n)
		return nil
	})
}

// Stats summarises the cache contents.
func (s *CacheService) Stats(ctx context.Context) (querycache.Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return cache.EmptyStats(), fmt.Errorf("cache stats: %w", err)
	}
	return st, nil
}

// eventPublisher sends cache lifecycle events. A nil pub drops them.
type eventPublisher struct {
	pub      messagequeue.Publisher
	instance string
}

func (p *eventPublisher) publish(ctx context.Context, subject string, payload any) {
	if p == nil || p.pub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "encode event", "subject", subject, "error", err)
		return
	}
	if err := p.pub.Publish(ctx, subject, data); err != nil {
		slog.WarnContext(ctx, "publish event failed", "subject", subject, "error", err)
	}
}

func (p *eventPublisher) invalidated(ctx context.Context, inv querycache.Invalidation) {
	p.publish(ctx, messagequeue.SubjectCacheInvalidated, messagequeue.CacheInvalidatedPayload{
		Instance:     p.instance,
		Invalidation: inv,
	})
}

func (p *eventPublisher) report(ctx context.Context, r querycache.MaintenanceReport) {
	p.publish(ctx, messagequeue.SubjectMaintenanceReport, messagequeue.MaintenanceReportPayload{
		Instance: p.instance,
		Report:   r,
	})
}
