package entitystore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Notifier carries "collection changed" signals between committers and
// subscribers of a PostgresStore.
type Notifier interface {
	Publish(ctx context.Context, tenant, collection string) error
	// Listen returns a channel that receives a value after each change. The
	// channel is closed when ctx is done.
	Listen(ctx context.Context, tenant, collection string) (<-chan struct{}, error)
}

// ChannelName is the pub/sub channel used for a tenant collection.
func ChannelName(tenant, collection string) string {
	return fmt.Sprintf("ledgerpos:changes:%s:%s", tenant, collection)
}

// LocalNotifier fans signals out inside a single process.
type LocalNotifier struct {
	mu        sync.Mutex
	listeners map[string]map[chan struct{}]struct{}
}

// NewLocalNotifier returns an in-process notifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{listeners: make(map[string]map[chan struct{}]struct{})}
}

// Publish implements Notifier.
func (n *LocalNotifier) Publish(_ context.Context, tenant, collection string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.listeners[ChannelName(tenant, collection)] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Listen implements Notifier.
func (n *LocalNotifier) Listen(ctx context.Context, tenant, collection string) (<-chan struct{}, error) {
	name := ChannelName(tenant, collection)
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	if n.listeners[name] == nil {
		n.listeners[name] = make(map[chan struct{}]struct{})
	}
	n.listeners[name][ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners[name], ch)
		close(ch)
	}()
	return ch, nil
}

// RedisNotifier uses Redis pub/sub so several API instances share one feed.
type RedisNotifier struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisNotifier wraps a Redis client.
func NewRedisNotifier(client *redis.Client, logger *slog.Logger) *RedisNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisNotifier{client: client, logger: logger}
}

// Publish implements Notifier.
func (n *RedisNotifier) Publish(ctx context.Context, tenant, collection string) error {
	return n.client.Publish(ctx, ChannelName(tenant, collection), "changed").Err()
}

// Listen implements Notifier.
func (n *RedisNotifier) Listen(ctx context.Context, tenant, collection string) (<-chan struct{}, error) {
	name := ChannelName(tenant, collection)
	pubsub := n.client.Subscribe(ctx, name)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("entitystore: subscribe %s: %w", name, err)
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					n.logger.Warn("change feed closed", slog.String("channel", name))
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
