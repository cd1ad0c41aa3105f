package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
	"github.com/ledgerpos/ledgerpos/internal/platform/cache"
	"github.com/ledgerpos/ledgerpos/internal/platform/db"
)

// Resources holds the backends shared by the binaries.
type Resources struct {
	Store entitystore.Store
	Redis *redis.Client
	Pool  *pgxpool.Pool

	memory *entitystore.MemoryStore
	logger *slog.Logger
}

// OpenResources connects the configured store backend and, when REDIS_ADDR is
// set, the Redis client used for change notifications.
func OpenResources(ctx context.Context, cfg *Config, logger *slog.Logger) (*Resources, error) {
	if logger == nil {
		logger = slog.Default()
	}
	res := &Resources{logger: logger}

	client, err := cache.New(ctx, cfg.RedisAddr)
	switch {
	case err == nil:
		res.Redis = client
	case errors.Is(err, cache.ErrDisabled):
		logger.Info("redis disabled, using in-process notifications")
	default:
		return nil, err
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
		if err != nil {
			res.Close()
			return nil, err
		}
		res.Pool = pool
		var notifier entitystore.Notifier
		if res.Redis != nil {
			notifier = entitystore.NewRedisNotifier(res.Redis, logger)
		}
		store := entitystore.NewPostgresStore(pool, notifier, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			res.Close()
			return nil, err
		}
		res.Store = store
	case BackendMemory:
		res.memory = entitystore.NewMemoryStore()
		res.Store = res.memory
	default:
		res.Close()
		return nil, fmt.Errorf("app: unknown store backend %q", cfg.StoreBackend)
	}
	logger.Info("store ready", slog.String("backend", cfg.StoreBackend), slog.Bool("redis", res.Redis != nil))
	return res, nil
}

// AsynqOpts returns the queue connection options, or false when Redis is off.
func (r *Resources) AsynqOpts(cfg *Config) (asynq.RedisClientOpt, bool) {
	if r == nil || r.Redis == nil {
		return asynq.RedisClientOpt{}, false
	}
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr}, true
}

// Close releases every backend that was opened.
func (r *Resources) Close() {
	if r == nil {
		return
	}
	if r.memory != nil {
		if err := r.memory.Close(); err != nil {
			r.logger.Warn("memory store close", slog.Any("error", err))
		}
	}
	if r.Pool != nil {
		r.Pool.Close()
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			r.logger.Warn("redis close", slog.Any("error", err))
		}
	}
}
