package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"4300"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// AutoMigrate runs pending migrations on startup
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"false"`

	// Database settings
	Database DatabaseConfig

	// Loader subsystem settings
	Loaders LoadersConfig

	// OpenTelemetry settings
	Otel OtelConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"archgraph"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"archgraph"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// LoadersConfig holds settings for the request-scoped loader subsystem.
// Profile selects a named preset (default, high-volume, lightweight); the
// explicit fields below override the preset when set via the environment.
type LoadersConfig struct {
	Profile string `env:"LOADER_PROFILE" envDefault:"default"`

	// MaxBatchSize caps the number of keys sent in one graph query.
	// 0 means "use the profile's value".
	MaxBatchSize int `env:"LOADER_MAX_BATCH_SIZE" envDefault:"0"`

	// BatchWait is the debounce window during which concurrent loads
	// coalesce into one batch. 0 means "use the profile's value".
	BatchWait time.Duration `env:"LOADER_BATCH_WAIT" envDefault:"0"`

	// CacheMaxSize bounds each loader's cache. 0 means profile value.
	CacheMaxSize int `env:"LOADER_CACHE_MAX_SIZE" envDefault:"0"`

	// SweepInterval is the period of the expired-entry sweep.
	// 0 means profile value.
	SweepInterval time.Duration `env:"LOADER_SWEEP_INTERVAL" envDefault:"0"`
}

// Validate rejects values that would misconfigure a loader bundle.
// Called at startup so bad values fail fast rather than at first load.
func (l *LoadersConfig) Validate() error {
	switch l.Profile {
	case "default", "high-volume", "lightweight":
	default:
		return fmt.Errorf("unknown loader profile %q", l.Profile)
	}
	if l.MaxBatchSize < 0 {
		return fmt.Errorf("LOADER_MAX_BATCH_SIZE must be >= 0, got %d", l.MaxBatchSize)
	}
	if l.BatchWait < 0 {
		return fmt.Errorf("LOADER_BATCH_WAIT must be >= 0, got %s", l.BatchWait)
	}
	if l.CacheMaxSize < 0 {
		return fmt.Errorf("LOADER_CACHE_MAX_SIZE must be >= 0, got %d", l.CacheMaxSize)
	}
	if l.SweepInterval < 0 {
		return fmt.Errorf("LOADER_SWEEP_INTERVAL must be >= 0, got %s", l.SweepInterval)
	}
	return nil
}

// NewConfig loads configuration from the environment
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Loaders.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loader config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.String("loader_profile", cfg.Loaders.Profile),
	)

	return cfg, nil
}
