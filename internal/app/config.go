package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`
	PGDSN        string `envconfig:"PG_DSN"`
	PGMaxConns   int32  `envconfig:"PG_MAX_CONNS" default:"10"`

	// RedisAddr enables the cross-process change feed, idempotency keys and
	// the job queue. Empty keeps everything in-process.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	LedgerCommitAttempts int           `envconfig:"LEDGER_COMMIT_ATTEMPTS" default:"3"`
	RateLimitPerMinute   int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	IdempotencyTTL       time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	// SessionMax caps how many stores keep a live mirror in this process.
	SessionMax     int           `envconfig:"SESSION_MAX" default:"256"`
	SessionIdleTTL time.Duration `envconfig:"SESSION_IDLE_TTL" default:"15m"`

	IntegrityStores   []string `envconfig:"INTEGRITY_STORES"`
	IntegrityCron     string   `envconfig:"INTEGRITY_CRON" default:"@every 6h"`
	WorkerConcurrency int      `envconfig:"WORKER_CONCURRENCY" default:"5"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.PGDSN == "" {
			return errors.New("config: PG_DSN must be provided for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.LedgerCommitAttempts < 1 {
		return errors.New("config: LEDGER_COMMIT_ATTEMPTS must be at least 1")
	}
	if c.RateLimitPerMinute < 0 {
		return errors.New("config: RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.IdempotencyTTL <= 0 {
		return errors.New("config: IDEMPOTENCY_TTL must be positive")
	}
	if c.SessionMax < 1 {
		return errors.New("config: SESSION_MAX must be at least 1")
	}
	if c.SessionIdleTTL <= 0 {
		return errors.New("config: SESSION_IDLE_TTL must be positive")
	}
	stores := c.IntegrityStores[:0]
	for _, id := range c.IntegrityStores {
		if id = strings.TrimSpace(id); id != "" {
			stores = append(stores, id)
		}
	}
	c.IntegrityStores = stores
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// RedisEnabled reports whether a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c != nil && strings.TrimSpace(c.RedisAddr) != ""
}
