package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/paddock/internal/adapter/memory"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/port/cache"
	"github.com/Strob0t/paddock/internal/port/cache/cachetest"
)

func TestQueryCacheStoreCompliance(t *testing.T) {
	cachetest.RunEntryStoreCompliance(t, func(*testing.T) cache.EntryStore {
		return memory.NewQueryCacheStore()
	})
}

func TestQueryCacheStoreReturnsCopies(t *testing.T) {
	s := memory.NewQueryCacheStore()
	ctx := context.Background()
	e := cachetest.NewEntry("k1", intent.KindDriverRanking, time.Now().UTC())
	if err := s.UpsertEntry(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Response[0] = 'X'

	got, err := s.GetEntry(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Response[0] == 'X' {
		t.Error("store shares response bytes with caller")
	}
	got.HitCount = 99
	again, _ := s.GetEntry(ctx, "k1")
	if again.HitCount != 0 {
		t.Errorf("hit count = %d, want 0", again.HitCount)
	}
}
