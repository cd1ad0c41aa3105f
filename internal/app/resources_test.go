package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenResourcesMemory(t *testing.T) {
	cfg := &Config{StoreBackend: BackendMemory}
	res, err := OpenResources(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer res.Close()

	require.IsType(t, &entitystore.MemoryStore{}, res.Store)
	require.Nil(t, res.Redis)
	_, ok := res.AsynqOpts(cfg)
	require.False(t, ok)
}

func TestOpenResourcesWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &Config{StoreBackend: BackendMemory, RedisAddr: mr.Addr()}
	res, err := OpenResources(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer res.Close()

	require.NotNil(t, res.Redis)
	opts, ok := res.AsynqOpts(cfg)
	require.True(t, ok)
	require.Equal(t, mr.Addr(), opts.Addr)
}

func TestOpenResourcesUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := OpenResources(context.Background(), &Config{StoreBackend: BackendMemory, RedisAddr: addr}, discardLogger())
	require.Error(t, err)
}
