package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/paddock/internal/domain"
	"github.com/Strob0t/paddock/internal/domain/intent"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/domain/template"
	"github.com/Strob0t/paddock/internal/port/cache"
	"github.com/Strob0t/paddock/internal/port/database"
	"github.com/Strob0t/paddock/internal/port/messagequeue"
)

// fakeIdentityStore resolves from fixed alias tables.
type fakeIdentityStore struct {
	mu      sync.Mutex
	drivers map[string]string
	tracks  map[string]string
	teams   map[string][]database.Team // "season:driver"
	err     error
	lookups int
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{
		drivers: map[string]string{
			"max verstappen": "max_verstappen",
			"verstappen":     "max_verstappen",
			"max_verstappen": "max_verstappen",
			"checo":          "sergio_perez",
			"perez":          "sergio_perez",
			"sergio_perez":   "sergio_perez",
			"norris":         "lando_norris",
			"lando_norris":   "lando_norris",
		},
		tracks: map[string]string{
			"monza":              "monza",
			"italian grand prix": "monza",
		},
		teams: map[string][]database.Team{
			"2023:max_verstappen": {{TeamID: "red_bull", TeamName: "Red Bull Racing"}},
			"2023:sergio_perez":   {{TeamID: "red_bull", TeamName: "Red Bull Racing"}},
			"2023:lando_norris":   {{TeamID: "mclaren", TeamName: "McLaren"}},
		},
	}
}

func (f *fakeIdentityStore) lookup(table map[string]string, alias string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return "", f.err
	}
	if id, ok := table[alias]; ok {
		return id, nil
	}
	return "", fmt.Errorf("lookup %q: %w", alias, domain.ErrNotFound)
}

func (f *fakeIdentityStore) LookupDriver(_ context.Context, alias string) (string, error) {
	return f.lookup(f.drivers, alias)
}

func (f *fakeIdentityStore) LookupTrack(_ context.Context, alias string) (string, error) {
	return f.lookup(f.tracks, alias)
}

func (f *fakeIdentityStore) TeamsFor(_ context.Context, season int, driverID string) ([]database.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	teams, ok := f.teams[fmt.Sprintf("%d:%s", season, driverID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return teams, nil
}

func (f *fakeIdentityStore) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

// memCache is a map-backed cache.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// fakeExecutor returns rows chosen per call and records what it was given.
type fakeExecutor struct {
	mu     sync.Mutex
	rows   func(sql string, params []any) []database.Row
	err    error
	calls  int
	sql    []string
	params [][]any
}

func (f *fakeExecutor) Execute(_ context.Context, sql string, params []any) ([]database.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sql = append(f.sql, sql)
	f.params = append(f.params, params)
	if f.err != nil {
		return nil, f.err
	}
	if f.rows == nil {
		return []database.Row{}, nil
	}
	return f.rows(sql, params), nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeTemplates serves "-- <id>" for every approved id.
type fakeTemplates struct{}

func (fakeTemplates) Load(_ context.Context, id template.ID) (string, error) {
	for _, known := range template.All() {
		if known == id {
			return "-- " + string(id), nil
		}
	}
	return "", fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
}

// templateOf extracts the id written by fakeTemplates.
func templateOf(sql string) template.ID {
	return template.ID(strings.TrimPrefix(sql, "-- "))
}

// fakePublisher records published events.
type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	data     [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.data = append(p.data, data)
	return nil
}

// fakeSubscriber captures the handler registered for each subject.
type fakeSubscriber struct {
	handlers map[string]messagequeue.Handler
}

func (s *fakeSubscriber) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	if s.handlers == nil {
		s.handlers = map[string]messagequeue.Handler{}
	}
	s.handlers[subject] = h
	return func() { delete(s.handlers, subject) }, nil
}

// failingEntryStore wraps an EntryStore and fails selected calls.
type failingEntryStore struct {
	cache.EntryStore
	getErr       error
	upsertErr    error
	incrementErr error
	reclaims     int
}

func (s *failingEntryStore) GetEntry(ctx context.Context, key string) (*querycache.Entry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.EntryStore.GetEntry(ctx, key)
}

func (s *failingEntryStore) UpsertEntry(ctx context.Context, e *querycache.Entry) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.EntryStore.UpsertEntry(ctx, e)
}

func (s *failingEntryStore) IncrementHit(ctx context.Context, key string, at time.Time) error {
	if s.incrementErr != nil {
		return s.incrementErr
	}
	return s.EntryStore.IncrementHit(ctx, key, at)
}

func (s *failingEntryStore) Reclaim(context.Context) error {
	s.reclaims++
	return nil
}

var errBoom = errors.New("boom")

func pair(a, b string) intent.DriverPair {
	return intent.DriverPair{DriverAID: a, DriverBID: b}
}

// blockingIdentityStore holds driver lookups until release is closed or
// the lookup context ends.
type blockingIdentityStore struct {
	*fakeIdentityStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingIdentityStore() *blockingIdentityStore {
	return &blockingIdentityStore{
		fakeIdentityStore: newFakeIdentityStore(),
		started:           make(chan struct{}),
		release:           make(chan struct{}),
	}
}

func (s *blockingIdentityStore) LookupDriver(ctx context.Context, alias string) (string, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return s.fakeIdentityStore.LookupDriver(ctx, alias)
}
