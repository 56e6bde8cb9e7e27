package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Strob0t/paddock/internal/adapter/postgres"
	"github.com/Strob0t/paddock/internal/config"
	"github.com/Strob0t/paddock/internal/domain/querycache"
	"github.com/Strob0t/paddock/internal/logger"
)

// runMigrate dispatches migrate subcommands (up, down, version).
func runMigrate(args []string) error {
	if len(args) == 0 {
		printHelp()
		return fmt.Errorf("migrate: missing subcommand")
	}

	fs := flag.NewFlagSet("migrate "+args[0], flag.ContinueOnError)
	steps := fs.Int("steps", 1, "migrations to roll back (down only)")
	configPath := fs.String("config", "", "path to YAML config")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := loadAdminConfig(*configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	dsn := cfg.Postgres.DSN

	switch args[0] {
	case "up":
		if err := postgres.RunMigrations(ctx, dsn); err != nil {
			return err
		}
	case "down":
		if *steps < 1 {
			return fmt.Errorf("migrate down: --steps must be at least 1")
		}
		if err := postgres.RollbackMigrations(ctx, dsn, *steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown migrate command: %s", args[0])
	}

	v, err := postgres.MigrationVersion(ctx, dsn)
	if err != nil {
		return err
	}
	fmt.Printf("schema version: %d\n", v)
	return nil
}

// runSweep runs one maintenance sweep against the configured cache store.
func runSweep(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config")
	timeout := fs.Duration("timeout", 5*time.Minute, "sweep deadline")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAdminConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Cache.Backend == "memory" {
		return fmt.Errorf("sweep: the memory cache backend lives inside the server process")
	}
	log, closer := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.maintenance.Sweep(ctx)
	if werr := printReport(os.Stdout, report); werr != nil {
		return werr
	}
	return err
}

// runCache dispatches cache subcommands (clear).
func runCache(args []string) error {
	if len(args) == 0 || args[0] != "clear" {
		printHelp()
		if len(args) == 0 {
			return fmt.Errorf("cache: missing subcommand")
		}
		return fmt.Errorf("unknown cache command: %s", args[0])
	}

	fs := flag.NewFlagSet("cache clear", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	cfg, err := loadAdminConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Cache.Backend == "memory" {
		return fmt.Errorf("cache clear: the memory cache backend lives inside the server process")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.NewQueryCacheStore(pool).Truncate(ctx); err != nil {
		return err
	}
	fmt.Println("query cache cleared")
	return nil
}

func loadAdminConfig(path string) (*config.Config, error) {
	var flags config.CLIFlags
	if path != "" {
		flags.ConfigPath = &path
	}
	cfg, _, err := config.LoadWithCLI(flags)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func printReport(out io.Writer, r querycache.MaintenanceReport) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STEP\tREMOVED")
	_, _ = fmt.Fprintf(w, "stale versions\t%d\n", r.StaleVersionsRemoved)
	_, _ = fmt.Fprintf(w, "expired\t%d\n", r.ExpiredPurged)
	_, _ = fmt.Fprintf(w, "lru evicted\t%d\n", r.LRUEvicted)
	_, _ = fmt.Fprintf(w, "total\t%d\n", r.Removed())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "remaining\t%d\n", r.RemainingEntries)
	_, _ = fmt.Fprintf(w, "vacuum suggested\t%t\n", r.VacuumSuggested)
	_, _ = fmt.Fprintf(w, "vacuumed\t%t\n", r.Vacuumed)
	_, _ = fmt.Fprintf(w, "duration\t%dms\n", r.DurationMS)
	return w.Flush()
}
