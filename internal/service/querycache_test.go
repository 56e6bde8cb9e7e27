package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Strob0t/paddock/internal/adapter/memory"
	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/query"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/port/messagequeue"
)

var testVersions = querycache.Versions{Methodology: "2024.1", Schema: "1"}

func newTestCacheService(now time.Time) (*CacheService, *memory.QueryCacheStore) {
	store := memory.NewQueryCacheStore()
	s := NewCacheService(store, testVersions)
	s.now = func() time.Time { return now }
	return s, store
}

func testEntry(t *testing.T, s *CacheService, i intent.Intent, cov coverage.Result) *querycache.Entry {
	t.Helper()
	key, err := s.Key(i)
	if err != nil {
		t.Fatal(err)
	}
	e, err := s.NewEntry(key, i, &query.Result{Intent: intent.Envelope{Intent: i}}, cov)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestCacheService_KeyIgnoresDriverOrder(t *testing.T) {
	s, _ := newTestCacheService(time.Now())
	a, _ := s.Key(&intent.DriverMultiComparison{Season: 2024, DriverIDs: []string{"ver", "nor", "lec"}})
	b, _ := s.Key(&intent.DriverMultiComparison{Season: 2024, DriverIDs: []string{"lec", "ver", "nor"}})
	if a != b {
		t.Errorf("keys differ: %s vs %s", a, b)
	}
	c, _ := s.Key(&intent.DriverMultiComparison{Season: 2023, DriverIDs: []string{"lec", "ver", "nor"}})
	if a == c {
		t.Error("different seasons share a key")
	}
}

func TestCacheService_SetAndGet(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestCacheService(now)
	ctx := context.Background()
	i := &intent.DriverRanking{Season: 2024}

	e := testEntry(t, s, i, coverage.Result{Level: coverage.LevelValid, TTL: time.Hour})
	if e.ExpiresAt == nil || !e.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expires_at = %v", e.ExpiresAt)
	}
	if e.MethodologyVersion != testVersions.Methodology || e.SchemaVersion != testVersions.Schema {
		t.Errorf("versions = %s/%s", e.MethodologyVersion, e.SchemaVersion)
	}
	stored, err := s.Set(ctx, e)
	if err != nil || !stored {
		t.Fatalf("Set = %v, %v", stored, err)
	}

	got, hit, err := s.Get(ctx, e.CacheKey)
	if err != nil || !hit {
		t.Fatalf("Get = %v, %v", hit, err)
	}
	var res query.Result
	if err := json.Unmarshal(got.Response, &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Intent.Kind() != intent.KindDriverRanking {
		t.Errorf("cached intent kind = %s", res.Intent.Kind())
	}

	s.now = func() time.Time { return now.Add(time.Hour) }
	if _, hit, _ := s.Get(ctx, e.CacheKey); hit {
		t.Error("expired entry reported as hit")
	}
}

func TestCacheService_SetRejectsInsufficient(t *testing.T) {
	s, store := newTestCacheService(time.Now())
	ctx := context.Background()
	e := testEntry(t, s, &intent.DriverRanking{Season: 2024}, coverage.Result{Level: coverage.LevelInsufficient})

	stored, err := s.Set(ctx, e)
	if err != nil || stored {
		t.Fatalf("Set = %v, %v", stored, err)
	}
	if n, _ := store.CountEntries(ctx); n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
	if _, hit, _ := s.Get(ctx, e.CacheKey); hit {
		t.Error("insufficient entry is retrievable")
	}
}

func TestCacheService_VersionMismatchIsMiss(t *testing.T) {
	s, store := newTestCacheService(time.Now())
	ctx := context.Background()
	e := testEntry(t, s, &intent.DriverRanking{Season: 2024}, coverage.Result{Level: coverage.LevelValid, TTL: time.Hour})
	e.MethodologyVersion = "2023.9"
	if err := store.UpsertEntry(ctx, e); err != nil {
		t.Fatal(err)
	}
	got, hit, err := s.Get(ctx, e.CacheKey)
	if err != nil {
		t.Fatalf("version mismatch surfaced as error: %v", err)
	}
	if hit || got != nil {
		t.Error("stale methodology entry reported as hit")
	}
}

func TestCacheService_IncrementHitIsBestEffort(t *testing.T) {
	store := &failingEntryStore{EntryStore: memory.NewQueryCacheStore(), incrementErr: errBoom}
	s := NewCacheService(store, testVersions)
	s.IncrementHit(context.Background(), "missing")
}

func TestCacheService_Invalidate(t *testing.T) {
	s, _ := newTestCacheService(time.Now())
	pub := &fakePublisher{}
	s.SetPublisher(pub, "paddock-test")
	ctx := context.Background()

	e1 := testEntry(t, s, &intent.DriverRanking{Season: 2024}, coverage.Result{Level: coverage.LevelValid})
	e2 := testEntry(t, s, &intent.DriverRanking{Season: 2023}, coverage.Result{Level: coverage.LevelValid})
	e3 := testEntry(t, s, &intent.DriverPoleCount{Season: 2023, DriverID: "max_verstappen"}, coverage.Result{Level: coverage.LevelLowCoverage})
	for _, e := range []*querycache.Entry{e1, e2, e3} {
		if _, err := s.Set(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Invalidate(ctx, e1.CacheKey)
	if err != nil || n != 1 {
		t.Fatalf("Invalidate = %d, %v", n, err)
	}
	n, err = s.InvalidateKind(ctx, intent.KindDriverRanking)
	if err != nil || n != 1 {
		t.Fatalf("InvalidateKind = %d, %v", n, err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Entries != 1 || st.ByLevel[coverage.LevelLowCoverage] != 1 {
		t.Errorf("stats = %+v", st)
	}

	if len(pub.subjects) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.subjects))
	}
	for i, subj := range pub.subjects {
		if subj != messagequeue.SubjectCacheInvalidated {
			t.Errorf("subject = %s", subj)
		}
		if err := messagequeue.Validate(subj, pub.data[i]); err != nil {
			t.Errorf("event %d invalid: %v", i, err)
		}
	}
	var ev messagequeue.CacheInvalidatedPayload
	if err := json.Unmarshal(pub.data[1], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Instance != "paddock-test" || ev.Invalidation.Kind != intent.KindDriverRanking || ev.Invalidation.Removed != 1 {
		t.Errorf("event = %+v", ev)
	}
}

func TestCacheService_PublishFailureIsIgnored(t *testing.T) {
	s, _ := newTestCacheService(time.Now())
	s.SetPublisher(&fakePublisher{err: errBoom}, "x")
	if _, err := s.InvalidateKind(context.Background(), intent.KindDriverRanking); err != nil {
		t.Fatalf("publish failure surfaced: %v", err)
	}
}

func TestCacheService_FollowInvalidations(t *testing.T) {
	s, store := newTestCacheService(time.Now())
	s.SetPublisher(&fakePublisher{}, "replica-a")
	ctx := context.Background()

	e1 := testEntry(t, s, &intent.DriverRanking{Season: 2024}, coverage.Result{Level: coverage.LevelValid})
	e2 := testEntry(t, s, &intent.DriverPoleCount{Season: 2023, DriverID: "max_verstappen"}, coverage.Result{Level: coverage.LevelValid})
	for _, e := range []*querycache.Entry{e1, e2} {
		if _, err := s.Set(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	sub := &fakeSubscriber{}
	cancel, err := s.FollowInvalidations(ctx, sub)
	if err != nil {
		t.Fatal(err)
	}
	handler := sub.handlers[messagequeue.SubjectCacheInvalidated]
	if handler == nil {
		t.Fatal("no handler registered")
	}

	send := func(p messagequeue.CacheInvalidatedPayload) error {
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatal(err)
		}
		return handler(ctx, messagequeue.SubjectCacheInvalidated, data)
	}

	// Events from this instance are ignored.
	if err := send(messagequeue.CacheInvalidatedPayload{Instance: "replica-a", Invalidation: querycache.Invalidation{Key: e1.CacheKey}}); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountEntries(ctx); n != 2 {
		t.Fatalf("own event applied, entries = %d", n)
	}

	if err := send(messagequeue.CacheInvalidatedPayload{Instance: "replica-b", Invalidation: querycache.Invalidation{Key: e1.CacheKey}}); err != nil {
		t.Fatal(err)
	}
	if err := send(messagequeue.CacheInvalidatedPayload{Instance: "replica-b", Invalidation: querycache.Invalidation{Kind: intent.KindDriverPoleCount}}); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountEntries(ctx); n != 0 {
		t.Errorf("entries after remote invalidations = %d", n)
	}

	if err := handler(ctx, messagequeue.SubjectCacheInvalidated, []byte("{")); err == nil {
		t.Error("malformed payload accepted")
	}

	cancel()
	if len(sub.handlers) != 0 {
		t.Error("cancel did not unsubscribe")
	}
}
