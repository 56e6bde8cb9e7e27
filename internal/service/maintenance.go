package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	pdotel "github.com/Strob0t/paddock/internal/adapter/otel"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/port/cache"
	"github.com/Strob0t/paddock/internal/port/messagequeue"
)

// ErrSweepInProgress is returned when a sweep is requested while another
// one is running.
var ErrSweepInProgress = errors.New("cache sweep already in progress")

// MaintenanceConfig bounds the cache sweep.
type MaintenanceConfig struct {
	MaxEntries      int64
	VacuumThreshold int64
	AutoVacuum      bool
	Interval        time.Duration
}

// CacheMaintenance purges stale, expired and least recently used entries.
// At most one sweep runs at a time per instance.
type CacheMaintenance struct {
	store    cache.EntryStore
	versions querycache.Versions
	cfg      MaintenanceConfig
	events   *eventPublisher
	metrics  *pdotel.Metrics
	running  atomic.Bool
	now      func() time.Time
}

// NewCacheMaintenance creates a maintenance runner for store.
func NewCacheMaintenance(store cache.EntryStore, versions querycache.Versions, cfg MaintenanceConfig) *CacheMaintenance {
	return &CacheMaintenance{store: store, versions: versions, cfg: cfg, events: &eventPublisher{}, now: time.Now}
}

// SetPublisher enables cache.maintenance.report events.
func (m *CacheMaintenance) SetPublisher(pub messagequeue.Publisher, instance string) {
	m.events = &eventPublisher{pub: pub, instance: instance}
}

// SetMetrics records sweep removals.
func (m *CacheMaintenance) SetMetrics(metrics *pdotel.Metrics) { m.metrics = metrics }

// Sweep runs stale-version purge, expiry purge and LRU enforcement in that
// order. A failed step is reported in the error; later steps still run.
func (m *CacheMaintenance) Sweep(ctx context.Context) (querycache.MaintenanceReport, error) {
	if !m.running.CompareAndSwap(false, true) {
		return querycache.MaintenanceReport{}, ErrSweepInProgress
	}
	defer m.running.Store(false)

	ctx, span := pdotel.StartSweepSpan(ctx)
	start := m.now()
	var (
		r    querycache.MaintenanceReport
		errs []error
	)
	step := func(name string, fn func() (int64, error), into *int64) {
		n, err := fn()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*into = n
	}

	step("stale versions", func() (int64, error) {
		return m.store.DeleteStaleVersions(ctx, m.versions)
	}, &r.StaleVersionsRemoved)
	step("expired", func() (int64, error) {
		return m.store.DeleteExpired(ctx, start.UTC())
	}, &r.ExpiredPurged)
	if m.cfg.MaxEntries > 0 {
		step("lru", func() (int64, error) {
			return m.store.EnforceMaxEntries(ctx, m.cfg.MaxEntries)
		}, &r.LRUEvicted)
	}

	r.VacuumSuggested = r.Removed() > m.cfg.VacuumThreshold
	if r.VacuumSuggested && m.cfg.AutoVacuum {
		if rc, ok := m.store.(cache.Reclaimer); ok {
			if err := rc.Reclaim(ctx); err != nil {
				errs = append(errs, fmt.Errorf("reclaim: %w", err))
			} else {
				r.Vacuumed = true
			}
		}
	}

	if n, err := m.store.CountEntries(ctx); err != nil {
		errs = append(errs, fmt.Errorf("count: %w", err))
	} else {
		r.RemainingEntries = n
	}

	finished := m.now()
	r.DurationMS = finished.Sub(start).Milliseconds()
	r.FinishedAt = finished.UTC()

	err := errors.Join(errs...)
	pdotel.EndSpan(span, err)
	m.metrics.RecordSweep(ctx, r)
	m.events.report(ctx, r)

	slog.InfoContext(ctx, "cache sweep finished",
		"stale_versions_removed", r.StaleVersionsRemoved,
		"expired_purged", r.ExpiredPurged,
		"lru_evicted", r.LRUEvicted,
		"vacuum_suggested", r.VacuumSuggested,
		"vacuumed", r.Vacuumed,
		"remaining_entries", r.RemainingEntries,
		"duration_ms", r.DurationMS,
	)
	return r, err
}

// Start sweeps every configured interval until ctx is done. It returns nil
// on cancellation so it can run under an errgroup.
func (m *CacheMaintenance) Start(ctx context.Context) error {
	if m.cfg.Interval <= 0 {
		slog.Info("cache maintenance disabled")
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	slog.Info("cache maintenance started", "interval", m.cfg.Interval, "max_entries", m.cfg.MaxEntries)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
				slog.Error("cache sweep failed", "error", err)
			}
		}
	}
}
