package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	pdhttp "github.com/Strob0t/paddock/internal/adapter/http"
	pdotel "github.com/Strob0t/paddock/internal/adapter/otel"
	"github.com/Strob0t/paddock/internal/adapter/postgres"
	"github.com/Strob0t/paddock/internal/config"
	"github.com/Strob0t/paddock/internal/logger"
	"github.com/Strob0t/paddock/internal/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = run(args)
	case "migrate":
		err = runMigrate(args)
	case "sweep":
		err = runSweep(args)
	case "cache":
		err = runCache(args)
	case "help":
		printHelp()
	default:
		printHelp()
		err = fmt.Errorf("unknown command: %s", cmd)
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: paddock [command] [options]

Commands:
  serve            Run the HTTP query service (default)
  migrate up       Apply pending migrations
  migrate down     Roll back migrations (--steps N, default 1)
  migrate version  Print the current schema version
  sweep            Run one cache maintenance sweep and print the report
  cache clear      Remove every query cache entry
  help             Show this help message

Serve options:
  -c, --config     path to YAML config
  -p, --port       HTTP port
  --log-level      debug, info, warn, error
  --dsn            PostgreSQL DSN
  --nats-url       NATS URL
`)
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	cfg, path, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closer.Close()

	slog.Info("config loaded",
		"path", path,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"cache_backend", cfg.Cache.Backend,
		"nats", cfg.NATS.URL != "",
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTEL, err := pdotel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTEL(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()
	metrics, err := pdotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	a, err := newApp(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.queue != nil && cfg.Cache.Backend == "memory" {
		cancel, err := a.cache.FollowInvalidations(ctx, a.queue)
		if err != nil {
			return fmt.Errorf("invalidation subscriber: %w", err)
		}
		defer cancel()
	}

	// --- HTTP ---

	handlers := &pdhttp.Handlers{
		Queries:     a.queries,
		Cache:       a.cache,
		Maintenance: a.maintenance,
		Checks:      a.healthChecks(),
		BodyLimit:   cfg.Server.BodyLimit,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(pdhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(pdhttp.SecurityHeaders)
	r.Use(pdhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	r.Use(pdotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	pdhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting server", "addr", addr, "instance", a.instance)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.maintenance.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
