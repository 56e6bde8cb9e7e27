// Package cachetest provides compliance suites for the cache ports.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/port/cache"
)

// RunCacheCompliance exercises any cache.Cache implementation. Caches that
// apply writes asynchronously must make them visible before returning from
// Set for this suite to pass.
func RunCacheCompliance(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "driver:max verstappen", []byte("max_verstappen"), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "driver:max verstappen")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != "max_verstappen" {
			t.Fatalf("expected max_verstappen, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "driver:nobody")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for unknown key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "track:monza", []byte("monza"), time.Minute)
		if err := c.Delete(ctx, "track:monza"); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, "track:monza")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		if err := c.Delete(ctx, "track:never"); err != nil {
			t.Fatalf("Delete of missing key: %v", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "driver:checo", []byte("perez"), time.Minute)
		_ = c.Set(ctx, "driver:checo", []byte("sergio_perez"), time.Minute)
		val, found, err := c.Get(ctx, "driver:checo")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(val) != "sergio_perez" {
			t.Fatalf("expected sergio_perez after overwrite, got %q (found=%v)", val, found)
		}
	})
}

// Versions used by the entry store suite.
var Versions = querycache.Versions{Methodology: "2024.1", Schema: "1"}

// NewEntry builds a valid entry created at createdAt.
func NewEntry(key string, kind intent.Kind, createdAt time.Time) *querycache.Entry {
	return &querycache.Entry{
		CacheKey:           key,
		QueryKind:          kind,
		QueryHash:          "hash-" + key,
		Parameters:         []byte(`{"season":2024}`),
		Response:           []byte(`{"result":{"type":"driver_ranking","payload":[]}}`),
		ConfidenceLevel:    coverage.LevelValid,
		MethodologyVersion: Versions.Methodology,
		SchemaVersion:      Versions.Schema,
		CreatedAt:          createdAt.UTC().Truncate(time.Microsecond),
	}
}

// RunEntryStoreCompliance exercises an EntryStore. newStore must return an
// empty store on every call.
func RunEntryStoreCompliance(t *testing.T, newStore func(t *testing.T) cache.EntryStore) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("UpsertAndGet", func(t *testing.T) {
		s := newStore(t)
		e := NewEntry("k1", intent.KindDriverRanking, now)
		pct := 87.5
		shared := 12
		e.CoveragePercent = &pct
		e.SharedEvents = &shared
		if err := s.UpsertEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		got, err := s.GetEntry(ctx, "k1")
		if err != nil {
			t.Fatal(err)
		}
		if got == nil {
			t.Fatal("expected entry")
		}
		if got.QueryKind != intent.KindDriverRanking || got.ConfidenceLevel != coverage.LevelValid {
			t.Errorf("got %+v", got)
		}
		if got.CoveragePercent == nil || *got.CoveragePercent != pct || got.SharedEvents == nil || *got.SharedEvents != shared {
			t.Errorf("coverage fields not round-tripped: %+v", got)
		}
		if !got.CreatedAt.Equal(e.CreatedAt) {
			t.Errorf("created_at = %v, want %v", got.CreatedAt, e.CreatedAt)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		got, err := s.GetEntry(ctx, "absent")
		if err != nil || got != nil {
			t.Fatalf("expected (nil, nil), got (%v, %v)", got, err)
		}
	})

	t.Run("IncrementHit", func(t *testing.T) {
		s := newStore(t)
		_ = s.UpsertEntry(ctx, NewEntry("k1", intent.KindDriverRanking, now))
		hitAt := now.Add(time.Minute)
		for range 2 {
			if err := s.IncrementHit(ctx, "k1", hitAt); err != nil {
				t.Fatal(err)
			}
		}
		got, _ := s.GetEntry(ctx, "k1")
		if got.HitCount != 2 {
			t.Errorf("hit_count = %d", got.HitCount)
		}
		if got.LastHitAt == nil || !got.LastHitAt.Equal(hitAt) {
			t.Errorf("last_hit_at = %v", got.LastHitAt)
		}
		if err := s.IncrementHit(ctx, "absent", hitAt); err != nil {
			t.Errorf("increment of missing key: %v", err)
		}
	})

	t.Run("UpsertResetsHits", func(t *testing.T) {
		s := newStore(t)
		_ = s.UpsertEntry(ctx, NewEntry("k1", intent.KindDriverRanking, now))
		_ = s.IncrementHit(ctx, "k1", now)
		e := NewEntry("k1", intent.KindDriverRanking, now.Add(time.Second))
		e.ConfidenceLevel = coverage.LevelLowCoverage
		if err := s.UpsertEntry(ctx, e); err != nil {
			t.Fatal(err)
		}
		got, _ := s.GetEntry(ctx, "k1")
		if got.HitCount != 0 || got.LastHitAt != nil || got.ConfidenceLevel != coverage.LevelLowCoverage {
			t.Errorf("got %+v", got)
		}
		n, _ := s.CountEntries(ctx)
		if n != 1 {
			t.Errorf("count = %d", n)
		}
	})

	t.Run("DeleteEntryAndKind", func(t *testing.T) {
		s := newStore(t)
		_ = s.UpsertEntry(ctx, NewEntry("a", intent.KindDriverRanking, now))
		_ = s.UpsertEntry(ctx, NewEntry("b", intent.KindDriverRanking, now))
		_ = s.UpsertEntry(ctx, NewEntry("c", intent.KindDriverPoleCount, now))
		n, err := s.DeleteEntry(ctx, "c")
		if err != nil || n != 1 {
			t.Fatalf("DeleteEntry = %d, %v", n, err)
		}
		n, err = s.DeleteEntry(ctx, "c")
		if err != nil || n != 0 {
			t.Fatalf("second DeleteEntry = %d, %v", n, err)
		}
		n, err = s.DeleteByKind(ctx, intent.KindDriverRanking)
		if err != nil || n != 2 {
			t.Fatalf("DeleteByKind = %d, %v", n, err)
		}
		if c, _ := s.CountEntries(ctx); c != 0 {
			t.Errorf("count = %d", c)
		}
	})

	t.Run("DeleteStaleVersions", func(t *testing.T) {
		s := newStore(t)
		_ = s.UpsertEntry(ctx, NewEntry("current", intent.KindDriverRanking, now))
		old := NewEntry("old-method", intent.KindDriverRanking, now)
		old.MethodologyVersion = "2023.9"
		_ = s.UpsertEntry(ctx, old)
		oldSchema := NewEntry("old-schema", intent.KindDriverRanking, now)
		oldSchema.SchemaVersion = "0"
		_ = s.UpsertEntry(ctx, oldSchema)

		n, err := s.DeleteStaleVersions(ctx, Versions)
		if err != nil || n != 2 {
			t.Fatalf("DeleteStaleVersions = %d, %v", n, err)
		}
		if got, _ := s.GetEntry(ctx, "current"); got == nil {
			t.Error("current entry removed")
		}
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		s := newStore(t)
		past := now.Add(-time.Minute)
		future := now.Add(time.Hour)
		e1 := NewEntry("expired", intent.KindDriverRanking, now.Add(-time.Hour))
		e1.ExpiresAt = &past
		e2 := NewEntry("fresh", intent.KindDriverRanking, now)
		e2.ExpiresAt = &future
		e3 := NewEntry("forever", intent.KindDriverRanking, now)
		for _, e := range []*querycache.Entry{e1, e2, e3} {
			_ = s.UpsertEntry(ctx, e)
		}
		n, err := s.DeleteExpired(ctx, now)
		if err != nil || n != 1 {
			t.Fatalf("DeleteExpired = %d, %v", n, err)
		}
		if c, _ := s.CountEntries(ctx); c != 2 {
			t.Errorf("count = %d", c)
		}
	})

	t.Run("EnforceMaxEntries", func(t *testing.T) {
		s := newStore(t)
		// entries aged 1..5 minutes, last hit at creation
		for age := 1; age <= 5; age++ {
			at := now.Add(-time.Duration(age) * time.Minute)
			e := NewEntry(ageKey(age), intent.KindDriverRanking, at)
			if err := s.UpsertEntry(ctx, e); err != nil {
				t.Fatal(err)
			}
			if err := s.IncrementHit(ctx, e.CacheKey, at); err != nil {
				t.Fatal(err)
			}
		}
		n, err := s.EnforceMaxEntries(ctx, 3)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Errorf("evicted = %d, want 2", n)
		}
		for age := 1; age <= 5; age++ {
			got, _ := s.GetEntry(ctx, ageKey(age))
			if want := age <= 3; (got != nil) != want {
				t.Errorf("entry aged %dm present=%v, want %v", age, got != nil, want)
			}
		}
		n, err = s.EnforceMaxEntries(ctx, 10)
		if err != nil || n != 0 {
			t.Errorf("under cap evicted %d, %v", n, err)
		}
	})

	t.Run("EnforceMaxEntriesUsesLastHit", func(t *testing.T) {
		s := newStore(t)
		_ = s.UpsertEntry(ctx, NewEntry("old-but-hit", intent.KindDriverRanking, now.Add(-time.Hour)))
		_ = s.IncrementHit(ctx, "old-but-hit", now)
		_ = s.UpsertEntry(ctx, NewEntry("newer-unhit", intent.KindDriverRanking, now.Add(-time.Minute)))
		if _, err := s.EnforceMaxEntries(ctx, 1); err != nil {
			t.Fatal(err)
		}
		if got, _ := s.GetEntry(ctx, "old-but-hit"); got == nil {
			t.Error("recently hit entry evicted")
		}
	})

	t.Run("Stats", func(t *testing.T) {
		s := newStore(t)
		_ = s.UpsertEntry(ctx, NewEntry("a", intent.KindDriverRanking, now))
		low := NewEntry("b", intent.KindDriverRanking, now)
		low.ConfidenceLevel = coverage.LevelLowCoverage
		_ = s.UpsertEntry(ctx, low)
		_ = s.IncrementHit(ctx, "a", now)
		_ = s.IncrementHit(ctx, "b", now)
		_ = s.IncrementHit(ctx, "b", now)

		st, err := s.Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if st.Entries != 2 || st.TotalHits != 3 {
			t.Errorf("stats = %+v", st)
		}
		if st.ByLevel[coverage.LevelValid] != 1 || st.ByLevel[coverage.LevelLowCoverage] != 1 {
			t.Errorf("by level = %v", st.ByLevel)
		}
	})
}

func ageKey(minutes int) string {
	return "aged-" + string(rune('0'+minutes))
}
