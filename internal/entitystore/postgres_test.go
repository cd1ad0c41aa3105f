package entitystore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerpos/ledgerpos/internal/platform/db"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("LEDGERPOS_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LEDGERPOS_TEST_PG_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.New(ctx, dsn, db.Options{MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := NewPostgresStore(pool, nil, nil)
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestPostgresCommitAndVersionGuard(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	tn := "test-" + uuid.NewString()

	docs, err := s.Commit(ctx, tn, []Write{
		Create("sales", "s1", map[string]any{"total": 100, "balance": 100}),
		Create("payments", "", map[string]any{"amount": 5}),
	})
	require.NoError(t, err)
	require.True(t, docs[0].CreatedAt.Equal(docs[1].CreatedAt))

	updated, err := s.Commit(ctx, tn, []Write{Update("sales", "s1", 1, map[string]any{"balance": 60})})
	require.NoError(t, err)
	require.EqualValues(t, 2, updated[0].Version)
	require.JSONEq(t, `{"total":100,"balance":60}`, string(updated[0].Data))

	_, err = s.Commit(ctx, tn, []Write{Update("sales", "s1", 1, map[string]any{"balance": 0})})
	require.ErrorIs(t, err, ErrConflict)

	_, err = s.Commit(ctx, tn, []Write{
		Create("payments", "", map[string]any{"amount": 1}),
		Update("sales", "missing", 0, map[string]any{"balance": 0}),
	})
	require.ErrorIs(t, err, ErrNotFound)

	payments, err := s.List(ctx, tn, "payments")
	require.NoError(t, err)
	require.Len(t, payments, 1)
}

func TestPostgresSubscribeRefreshesAfterCommit(t *testing.T) {
	s := newPostgresStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tn := "test-" + uuid.NewString()

	feed, err := s.Subscribe(ctx, tn, "customers")
	require.NoError(t, err)
	require.Empty(t, (<-feed).Documents)

	_, err = Put(ctx, s, tn, "customers", "c1", map[string]any{"name": "Ana"})
	require.NoError(t, err)

	select {
	case snap := <-feed:
		require.Len(t, snap.Documents, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("expected refreshed snapshot")
	}
}

func TestPostgresListManyReadsOneSnapshot(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	tn := "test-" + uuid.NewString()

	_, err := s.Commit(ctx, tn, []Write{
		Create("sales", "s1", map[string]any{"total": 100, "balance": 60}),
		Create("payments", "p1", map[string]any{"saleId": "s1", "amount": 40}),
	})
	require.NoError(t, err)

	snaps, err := s.ListMany(ctx, tn, "sales", "payments")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	require.Len(t, snaps[0].Documents, 1)
	require.Len(t, snaps[1].Documents, 1)
	require.False(t, snaps[0].ReadAt.IsZero())
	require.Equal(t, snaps[0].ReadAt, snaps[1].ReadAt)
}
