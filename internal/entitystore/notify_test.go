package entitystore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestLocalNotifierSignalsListeners(t *testing.T) {
	n := NewLocalNotifier()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := n.Listen(ctx, tenant, "sales")
	require.NoError(t, err)
	other, err := n.Listen(ctx, tenant, "payments")
	require.NoError(t, err)

	require.NoError(t, n.Publish(ctx, tenant, "sales"))
	require.NoError(t, n.Publish(ctx, tenant, "sales"))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected signal")
	}
	select {
	case <-other:
		t.Fatal("payments listener must not be signalled")
	default:
	}
}

func TestRedisNotifierRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	n := NewRedisNotifier(client, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := n.Listen(ctx, tenant, "sales")
	require.NoError(t, err)
	require.NoError(t, n.Publish(ctx, tenant, "sales"))

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected signal over redis")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChannelName(t *testing.T) {
	require.Equal(t, "ledgerpos:changes:s1:sales", ChannelName("s1", "sales"))
}
