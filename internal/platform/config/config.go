// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendKafka    = "kafka"
	BackendRedis    = "redis"

	AuthModeJWT = "jwt"
	AuthModeDev = "dev"
)

// Config is the full service configuration.
type Config struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	DatabaseURL    string `env:"DATABASE_URL"`
	// MigrateOnStart applies embedded migrations when the postgres backend starts.
	MigrateOnStart bool `env:"DATABASE_MIGRATE" envDefault:"true"`

	EventLogBackend string   `env:"EVENTLOG_BACKEND" envDefault:"memory"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic      string   `env:"KAFKA_TOPIC" envDefault:"club-registry.events"`

	// IdempotencyBackend defaults to StorageBackend when empty.
	IdempotencyBackend string        `env:"IDEMPOTENCY_BACKEND"`
	IdempotencyTTL     time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	RedisURL           string        `env:"REDIS_URL"`

	// TracingEndpoint is an OTLP/HTTP collector URL. Tracing is off when empty.
	TracingEndpoint string `env:"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"`
	ServiceName     string `env:"OTEL_SERVICE_NAME" envDefault:"club-registry"`

	AuthMode      string   `env:"AUTH_MODE" envDefault:"jwt"`
	DevSubject    string   `env:"DEV_SUBJECT" envDefault:"dev-local"`
	DevIssuer     string   `env:"DEV_ISSUER" envDefault:"dev"`
	AdminSubjects []string `env:"ADMIN_SUBJECTS" envSeparator:","`
	JWT           JWTConfig

	// GenesisBalances seeds the ledger at startup, e.g. "56=1000,57=1000".
	GenesisBalances map[string]uint64 `env:"GENESIS_BALANCES" envSeparator:"," envKeyValSeparator:"="`
}

// Load parses the process environment and validates the result.
func Load() (Config, error) {
	return load(env.Options{})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.IdempotencyBackend == "" {
		cfg.IdempotencyBackend = cfg.StorageBackend
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks backend selections and the settings each one needs.
func (c Config) Validate() error {
	var errs []error
	check := func(name, got string, allowed ...string) {
		if !slices.Contains(allowed, got) {
			errs = append(errs, fmt.Errorf("%s must be one of %v, got %q", name, allowed, got))
		}
	}
	check("STORAGE_BACKEND", c.StorageBackend, BackendMemory, BackendPostgres)
	check("EVENTLOG_BACKEND", c.EventLogBackend, BackendMemory, BackendPostgres, BackendKafka)
	check("IDEMPOTENCY_BACKEND", c.IdempotencyBackend, BackendMemory, BackendPostgres, BackendRedis)
	check("AUTH_MODE", c.AuthMode, AuthModeJWT, AuthModeDev)

	if c.usesPostgres() && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
	}
	if c.EventLogBackend == BackendKafka && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka event log"))
	}
	if c.IdempotencyBackend == BackendRedis && c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required for the redis idempotency store"))
	}
	if c.AuthMode == AuthModeJWT {
		if err := c.JWT.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) usesPostgres() bool {
	return c.StorageBackend == BackendPostgres || c.EventLogBackend == BackendPostgres || c.IdempotencyBackend == BackendPostgres
}

// AuthIssuer namespaces subjects in persistent stores.
func (c Config) AuthIssuer() string {
	if c.AuthMode == AuthModeDev {
		return c.DevIssuer
	}
	return c.JWT.Issuer
}
