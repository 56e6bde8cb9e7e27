package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/paddock/internal/adapter/memory"
	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/port/messagequeue"
)

func seedEntry(t *testing.T, store *memory.QueryCacheStore, key string, created time.Time, mutate func(*querycache.Entry)) {
	t.Helper()
	e := &querycache.Entry{
		CacheKey:           key,
		QueryKind:          intent.KindDriverRanking,
		QueryHash:          "h-" + key,
		Parameters:         []byte(`{}`),
		Response:           []byte(`{}`),
		ConfidenceLevel:    coverage.LevelValid,
		MethodologyVersion: testVersions.Methodology,
		SchemaVersion:      testVersions.Schema,
		CreatedAt:          created,
	}
	if mutate != nil {
		mutate(e)
	}
	if err := store.UpsertEntry(context.Background(), e); err != nil {
		t.Fatal(err)
	}
}

func TestCacheMaintenance_Sweep(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mem := memory.NewQueryCacheStore()
	store := &failingEntryStore{EntryStore: mem}

	seedEntry(t, mem, "stale", now.Add(-time.Minute), func(e *querycache.Entry) { e.SchemaVersion = "0" })
	seedEntry(t, mem, "expired", now.Add(-time.Minute), func(e *querycache.Entry) {
		exp := now.Add(-time.Second)
		e.ExpiresAt = &exp
	})
	for age := 1; age <= 5; age++ {
		seedEntry(t, mem, fmt.Sprintf("age-%d", age), now.Add(-time.Duration(age)*time.Minute), nil)
	}

	m := NewCacheMaintenance(store, testVersions, MaintenanceConfig{MaxEntries: 3, VacuumThreshold: 3, AutoVacuum: true})
	m.now = func() time.Time { return now }
	pub := &fakePublisher{}
	m.SetPublisher(pub, "paddock-test")

	r, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if r.StaleVersionsRemoved != 1 || r.ExpiredPurged != 1 || r.LRUEvicted != 2 {
		t.Errorf("report = %+v", r)
	}
	if !r.VacuumSuggested || !r.Vacuumed || store.reclaims != 1 {
		t.Errorf("vacuum suggested=%v vacuumed=%v reclaims=%d", r.VacuumSuggested, r.Vacuumed, store.reclaims)
	}
	if r.RemainingEntries != 3 {
		t.Errorf("remaining = %d, want 3", r.RemainingEntries)
	}
	for _, key := range []string{"age-1", "age-2", "age-3"} {
		if e, _ := mem.GetEntry(context.Background(), key); e == nil {
			t.Errorf("%s evicted", key)
		}
	}

	if len(pub.subjects) != 1 || pub.subjects[0] != messagequeue.SubjectMaintenanceReport {
		t.Fatalf("published = %v", pub.subjects)
	}
	if err := messagequeue.Validate(pub.subjects[0], pub.data[0]); err != nil {
		t.Fatalf("report event invalid: %v", err)
	}
	var ev messagequeue.MaintenanceReportPayload
	if err := json.Unmarshal(pub.data[0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Report.LRUEvicted != 2 {
		t.Errorf("event report = %+v", ev.Report)
	}
}

func TestCacheMaintenance_NoVacuumBelowThreshold(t *testing.T) {
	now := time.Now().UTC()
	mem := memory.NewQueryCacheStore()
	store := &failingEntryStore{EntryStore: mem}
	seedEntry(t, mem, "stale", now, func(e *querycache.Entry) { e.MethodologyVersion = "old" })

	m := NewCacheMaintenance(store, testVersions, MaintenanceConfig{MaxEntries: 10, VacuumThreshold: 5, AutoVacuum: true})
	r, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.VacuumSuggested || r.Vacuumed || store.reclaims != 0 {
		t.Errorf("unexpected vacuum: %+v", r)
	}
}

func TestCacheMaintenance_SuggestsWithoutAutoVacuum(t *testing.T) {
	now := time.Now().UTC()
	mem := memory.NewQueryCacheStore()
	store := &failingEntryStore{EntryStore: mem}
	for i := range 3 {
		seedEntry(t, mem, fmt.Sprintf("s%d", i), now, func(e *querycache.Entry) { e.SchemaVersion = "0" })
	}
	m := NewCacheMaintenance(store, testVersions, MaintenanceConfig{VacuumThreshold: 1})
	r, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !r.VacuumSuggested || r.Vacuumed || store.reclaims != 0 {
		t.Errorf("report = %+v reclaims=%d", r, store.reclaims)
	}
}

// blockingStore holds DeleteStaleVersions until released.
type blockingStore struct {
	*memory.QueryCacheStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) DeleteStaleVersions(ctx context.Context, v querycache.Versions) (int64, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.QueryCacheStore.DeleteStaleVersions(ctx, v)
}

func TestCacheMaintenance_SkipsOverlappingSweep(t *testing.T) {
	store := &blockingStore{
		QueryCacheStore: memory.NewQueryCacheStore(),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	m := NewCacheMaintenance(store, testVersions, MaintenanceConfig{MaxEntries: 10})

	done := make(chan error, 1)
	go func() {
		_, err := m.Sweep(context.Background())
		done <- err
	}()
	<-store.entered

	if _, err := m.Sweep(context.Background()); !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("overlapping sweep err = %v, want ErrSweepInProgress", err)
	}
	close(store.release)
	if err := <-done; err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if _, err := m.Sweep(context.Background()); err != nil {
		t.Errorf("sweep after release: %v", err)
	}
}

func TestCacheMaintenance_StartStopsOnCancel(t *testing.T) {
	m := NewCacheMaintenance(memory.NewQueryCacheStore(), testVersions, MaintenanceConfig{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
