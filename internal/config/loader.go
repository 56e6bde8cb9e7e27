package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "paddock.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("PADDOCK_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PADDOCK_PORT")
	setString(&cfg.Server.CORSOrigin, "PADDOCK_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "PADDOCK_REQUEST_TIMEOUT")
	setInt64(&cfg.Server.BodyLimit, "PADDOCK_BODY_LIMIT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PADDOCK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "PADDOCK_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "PADDOCK_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "PADDOCK_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "PADDOCK_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.AliasBucket, "PADDOCK_NATS_ALIAS_BUCKET")
	setDuration(&cfg.NATS.AliasTTL, "PADDOCK_NATS_ALIAS_TTL")
	setString(&cfg.Logging.Level, "PADDOCK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PADDOCK_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "PADDOCK_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "PADDOCK_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "PADDOCK_BREAKER_TIMEOUT")

	// Cache
	setString(&cfg.Cache.Backend, "PADDOCK_CACHE_BACKEND")
	setDuration(&cfg.Cache.ValidTTL, "PADDOCK_CACHE_VALID_TTL")
	setDuration(&cfg.Cache.LowCoverageTTL, "PADDOCK_CACHE_LOW_COVERAGE_TTL")
	setInt(&cfg.Cache.MaxEntries, "PADDOCK_CACHE_MAX_ENTRIES")
	setDuration(&cfg.Cache.SweepInterval, "PADDOCK_CACHE_SWEEP_INTERVAL")
	setInt64(&cfg.Cache.VacuumThreshold, "PADDOCK_CACHE_VACUUM_THRESHOLD")
	setBool(&cfg.Cache.AutoVacuum, "PADDOCK_CACHE_AUTO_VACUUM")
	setInt64(&cfg.Cache.AliasL1SizeMB, "PADDOCK_CACHE_ALIAS_L1_SIZE_MB")
	setDuration(&cfg.Cache.AliasL1TTL, "PADDOCK_CACHE_ALIAS_L1_TTL")

	// Versions
	setString(&cfg.Query.MethodologyVersion, "PADDOCK_METHODOLOGY_VERSION")
	setString(&cfg.Query.SchemaVersion, "PADDOCK_SCHEMA_VERSION")
	setInt(&cfg.Query.MaxConcurrent, "PADDOCK_QUERY_MAX_CONCURRENT")

	// OpenTelemetry
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "PADDOCK_OTEL_INSECURE")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Cache.Backend != "postgres" && cfg.Cache.Backend != "memory" {
		return errors.New("cache.backend must be postgres or memory")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.MaxEntries < 1 {
		return errors.New("cache.max_entries must be >= 1")
	}
	if cfg.Cache.ValidTTL <= 0 || cfg.Cache.LowCoverageTTL <= 0 {
		return errors.New("cache ttls must be positive")
	}
	if cfg.Cache.LowCoverageTTL > cfg.Cache.ValidTTL {
		return errors.New("cache.low_coverage_ttl must not exceed cache.valid_ttl")
	}
	if cfg.Query.MethodologyVersion == "" || cfg.Query.SchemaVersion == "" {
		return errors.New("query.methodology_version and query.schema_version are required")
	}
	if cfg.Query.MaxConcurrent < 1 {
		return errors.New("query.max_concurrent must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// CLIFlags holds command-line overrides. Nil fields were not set on the
// command line and leave the loaded value untouched.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
}

// ParseFlags parses serve flags from args. Short and long forms share one
// destination.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("paddock", flag.ContinueOnError)
	var configPath, port, logLevel, dsn, natsURL string
	fs.StringVar(&configPath, "config", "", "path to YAML config")
	fs.StringVar(&configPath, "c", "", "path to YAML config (shorthand)")
	fs.StringVar(&port, "port", "", "HTTP port")
	fs.StringVar(&port, "p", "", "HTTP port (shorthand)")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&dsn, "dsn", "", "PostgreSQL DSN")
	fs.StringVar(&natsURL, "nats-url", "", "NATS URL")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = &configPath
		case "port", "p":
			flags.Port = &port
		case "log-level":
			flags.LogLevel = &logLevel
		case "dsn":
			flags.DSN = &dsn
		case "nats-url":
			flags.NatsURL = &natsURL
		}
	})
	return flags, nil
}

// LoadWithCLI loads configuration with the hierarchy defaults < YAML < ENV < CLI.
// It returns the resolved YAML path alongside the config.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if p := os.Getenv("PADDOCK_CONFIG"); p != "" {
		path = p
	}
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, path, fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, path, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, path, nil
}

// applyCLI overlays set command-line flags onto cfg.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
}
