package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	PresenceStaleAfter  time.Duration `env:"PRESENCE_STALE_AFTER" default:"5m"`
	PresenceWriteRate   float64       `env:"PRESENCE_WRITE_RATE" default:"50"` // per second, across all sessions
	PresenceWriteBurst  int           `env:"PRESENCE_WRITE_BURST" default:"100"`
	SagaBackoffInitial  time.Duration `env:"SAGA_BACKOFF_INITIAL" default:"1s"`
	SagaBackoffMax      time.Duration `env:"SAGA_BACKOFF_MAX" default:"10s"`
	VersionCreateTries  int           `env:"VERSION_CREATE_ATTEMPTS" default:"5"`
	EventStreamMaxLen   int64         `env:"EVENT_STREAM_MAXLEN" default:"10000"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" default:"10s"`

	AdminRateLimit float64 `env:"ADMIN_RATE_LIMIT" default:"5"` // per second, per client IP
	AdminRateBurst int     `env:"ADMIN_RATE_BURST" default:"10"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// UsesPostgres reports whether a database is configured; otherwise the in-memory store is used.
func (c *Config) UsesPostgres() bool { return c.DatabaseURL != "" }

// UsesRedis reports whether presence and the event stream go to Redis.
func (c *Config) UsesRedis() bool { return c.RedisURL != "" }

// StoreBackend names the primary store selected by DATABASE_URL.
func (c *Config) StoreBackend() string {
	if c.UsesPostgres() {
		return "postgres"
	}
	return "memory"
}

func validate(cfg *Config) error {
	if cfg.AppEnv == "production" && cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required in production")
	}

	if cfg.DatabaseURL != "" {
		if _, err := url.Parse(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
		}
	}

	if cfg.PresenceStaleAfter <= 0 {
		return errors.New("PRESENCE_STALE_AFTER must be positive")
	}
	if cfg.PresenceWriteRate <= 0 || cfg.PresenceWriteBurst < 1 {
		return errors.New("PRESENCE_WRITE_RATE must be positive and PRESENCE_WRITE_BURST at least 1")
	}
	if cfg.SagaBackoffInitial <= 0 || cfg.SagaBackoffMax < cfg.SagaBackoffInitial {
		return fmt.Errorf("SAGA_BACKOFF_MAX (%s) must be >= SAGA_BACKOFF_INITIAL (%s) > 0", cfg.SagaBackoffMax, cfg.SagaBackoffInitial)
	}
	if cfg.VersionCreateTries < 1 {
		return errors.New("VERSION_CREATE_ATTEMPTS must be at least 1")
	}
	if cfg.EventStreamMaxLen < 1 {
		return errors.New("EVENT_STREAM_MAXLEN must be at least 1")
	}
	if cfg.AdminRateLimit <= 0 || cfg.AdminRateBurst < 1 {
		return errors.New("ADMIN_RATE_LIMIT must be positive and ADMIN_RATE_BURST at least 1")
	}

	return nil
}
