package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	pdhttp "github.com/Strob0t/paddock/internal/adapter/http"
	"github.com/Strob0t/paddock/internal/adapter/memory"
	pdnats "github.com/Strob0t/paddock/internal/adapter/nats"
	"github.com/Strob0t/paddock/internal/adapter/natskv"
	pdotel "github.com/Strob0t/paddock/internal/adapter/otel"
	"github.com/Strob0t/paddock/internal/adapter/postgres"
	"github.com/Strob0t/paddock/internal/adapter/ristretto"
	"github.com/Strob0t/paddock/internal/adapter/templates"
	"github.com/Strob0t/paddock/internal/adapter/tiered"
	"github.com/Strob0t/paddock/internal/config"
	"github.com/Strob0t/paddock/internal/domain/coverage"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/domain/template"
	"github.com/Strob0t/paddock/internal/port/cache"
	"github.com/Strob0t/paddock/internal/resilience"
	"github.com/Strob0t/paddock/internal/service"
)

// app is the wired dependency graph shared by serve and the admin commands.
type app struct {
	pool        *pgxpool.Pool
	queue       *pdnats.Queue // nil without NATS
	breaker     *resilience.Breaker
	executor    *postgres.Executor
	queries     *service.QueryService
	cache       *service.CacheService
	maintenance *service.CacheMaintenance
	instance    string

	cleanups []func()
}

func newApp(ctx context.Context, cfg *config.Config, metrics *pdotel.Metrics) (_ *app, err error) {
	a := &app{instance: instanceID()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// --- Infrastructure ---

	a.pool, err = postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	a.cleanups = append(a.cleanups, a.pool.Close)
	slog.Info("postgres connected")

	tmpl := templates.New()
	if err := tmpl.Preload(ctx, template.All()); err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}
	slog.Info("templates loaded", "count", tmpl.Loaded())

	if cfg.NATS.URL != "" {
		a.queue, err = pdnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.cleanups = append(a.cleanups, func() {
			if err := a.queue.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		})
	}

	// --- Stores ---

	a.executor = postgres.NewExecutor(a.pool)
	a.breaker = resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	a.breaker.IsFailure = postgres.IsUnavailable

	aliases, aliasTTL, err := a.aliasCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var entries cache.EntryStore
	switch cfg.Cache.Backend {
	case "memory":
		entries = memory.NewQueryCacheStore()
	default:
		entries = postgres.NewQueryCacheStore(a.pool)
	}

	// --- Services ---

	versions := querycache.Versions{
		Methodology: cfg.Query.MethodologyVersion,
		Schema:      cfg.Query.SchemaVersion,
	}
	a.cache = service.NewCacheService(entries, versions)
	resolver := service.NewIdentityResolver(postgres.NewIdentityStore(a.pool), aliases, aliasTTL)
	evaluator := coverage.NewEvaluator(coverage.TTLs{
		Valid:       cfg.Cache.ValidTTL,
		LowCoverage: cfg.Cache.LowCoverageTTL,
	})
	exec := resilience.Limit(resilience.Guard(a.executor, a.breaker), cfg.Query.MaxConcurrent)
	a.queries = service.NewQueryService(resolver, a.cache, tmpl, exec, evaluator)
	a.queries.SetMetrics(metrics)

	a.maintenance = service.NewCacheMaintenance(entries, versions, service.MaintenanceConfig{
		MaxEntries:      int64(cfg.Cache.MaxEntries),
		VacuumThreshold: cfg.Cache.VacuumThreshold,
		AutoVacuum:      cfg.Cache.AutoVacuum,
		Interval:        cfg.Cache.SweepInterval,
	})
	a.maintenance.SetMetrics(metrics)

	if a.queue != nil {
		a.cache.SetPublisher(a.queue, a.instance)
		a.maintenance.SetPublisher(a.queue, a.instance)
	}
	return a, nil
}

// aliasCache builds the ristretto L1, tiered over a JetStream KV bucket when
// NATS is configured. The returned TTL applies to resolved aliases.
func (a *app) aliasCache(ctx context.Context, cfg *config.Config) (cache.Cache, time.Duration, error) {
	l1, err := ristretto.New(int(cfg.Cache.AliasL1SizeMB))
	if err != nil {
		return nil, 0, fmt.Errorf("alias cache: %w", err)
	}
	a.cleanups = append(a.cleanups, l1.Close)
	if a.queue == nil {
		return l1, cfg.Cache.AliasL1TTL, nil
	}

	l2, err := natskv.Open(ctx, a.queue.JetStream(), cfg.NATS.AliasBucket, cfg.NATS.AliasTTL)
	if err != nil {
		return nil, 0, fmt.Errorf("alias kv: %w", err)
	}
	return tiered.New(l1, l2, cfg.Cache.AliasL1TTL, slog.Default()), cfg.NATS.AliasTTL, nil
}

// healthChecks reports the store, the breaker and, when configured, NATS.
func (a *app) healthChecks() []pdhttp.HealthCheck {
	checks := []pdhttp.HealthCheck{
		{Name: "postgres", Check: a.executor.Ping},
		{Name: "breaker", Check: func(context.Context) error {
			if a.breaker.State() == "open" {
				return resilience.ErrCircuitOpen
			}
			return nil
		}},
	}
	if a.queue != nil {
		checks = append(checks, pdhttp.HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !a.queue.IsConnected() {
				return errors.New("disconnected")
			}
			return nil
		}})
	}
	return checks
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "paddock"
	}
	return host + "-" + uuid.NewString()[:8]
}
