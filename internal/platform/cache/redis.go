package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDisabled is returned when no Redis address is configured.
var ErrDisabled = errors.New("platform/cache: redis disabled")

// New creates a Redis client and pings it. An empty addr yields ErrDisabled so
// callers can fall back to in-process implementations.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, ErrDisabled
	}
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}
