package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, BackendMemory, cfg.StoreBackend)
	require.Equal(t, 3, cfg.LedgerCommitAttempts)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 256, cfg.SessionMax)
	require.Equal(t, 15*time.Minute, cfg.SessionIdleTTL)
	require.False(t, cfg.RedisEnabled())
	require.False(t, cfg.IsProduction())
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("PG_DSN", "postgres://localhost/ledgerpos")
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("INTEGRITY_STORES", "store-1, ,store-2")
	t.Setenv("LEDGER_COMMIT_ATTEMPTS", "5")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, BackendPostgres, cfg.StoreBackend)
	require.True(t, cfg.RedisEnabled())
	require.Equal(t, []string{"store-1", "store-2"}, cfg.IntegrityStores)
	require.Equal(t, 5, cfg.LedgerCommitAttempts)
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"postgres without dsn": func(c *Config) { c.StoreBackend = BackendPostgres },
		"unknown backend":      func(c *Config) { c.StoreBackend = "sqlite" },
		"zero attempts":        func(c *Config) { c.LedgerCommitAttempts = 0 },
		"negative rate limit":  func(c *Config) { c.RateLimitPerMinute = -1 },
		"zero ttl":             func(c *Config) { c.IdempotencyTTL = 0 },
		"zero sessions":        func(c *Config) { c.SessionMax = 0 },
		"zero session ttl":     func(c *Config) { c.SessionIdleTTL = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Config{StoreBackend: BackendMemory, LedgerCommitAttempts: 3, IdempotencyTTL: time.Hour, SessionMax: 8, SessionIdleTTL: time.Minute}
			require.NoError(t, cfg.Validate())
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
