package ledger

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
)

func TestMirrorRunFollowsFeed(t *testing.T) {
	store := entitystore.NewMemoryStore()
	seedStore(t, store)
	mirror := NewMirror(store, testStore, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mirror.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := mirror.Customer("ana")
		return ok
	}, time.Second, 10*time.Millisecond)

	_, err := entitystore.Put(context.Background(), store, testStore, CollectionCustomers, "citra", CustomerFields(Customer{Name: "Citra"}))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		c, ok := mirror.Customer("citra")
		return ok && c.Name == "Citra"
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, entitystore.Delete(context.Background(), store, testStore, CollectionCustomers, "budi"))
	require.Eventually(t, func() bool {
		_, ok := mirror.Customer("budi")
		return !ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("mirror did not stop")
	}
}

func TestMirrorKeepsNewerVersions(t *testing.T) {
	mirror := NewMirror(entitystore.NewMemoryStore(), testStore, nil)
	newer := entitystore.Document{Collection: CollectionProducts, ID: "soap", Version: 3, Data: []byte(`{"name":"Soap","price":25,"stock":4}`)}
	older := entitystore.Document{Collection: CollectionProducts, ID: "soap", Version: 2, Data: []byte(`{"name":"Soap","price":25,"stock":5}`)}

	mirror.ApplyCommitted([]entitystore.Document{newer})
	mirror.Apply(entitystore.Snapshot{Collection: CollectionProducts, Documents: []entitystore.Document{older}})

	p, ok := mirror.Product("soap")
	require.True(t, ok)
	require.EqualValues(t, 4, p.Stock)
	require.EqualValues(t, 3, p.Version)

	mirror.ApplyCommitted([]entitystore.Document{older})
	p, _ = mirror.Product("soap")
	require.EqualValues(t, 3, p.Version)

	mirror.ApplyCommitted([]entitystore.Document{{Collection: CollectionProducts, ID: "soap"}})
	_, ok = mirror.Product("soap")
	require.False(t, ok)
}

func TestMirrorKeepsCommitsMissingFromOlderSnapshot(t *testing.T) {
	store, svc := newMemoryFixture(t)
	ctx := context.Background()

	stale, err := store.ListMany(ctx, testStore, CollectionSales)
	require.NoError(t, err)
	stale[0].ReadAt = time.Now().Add(-time.Minute)
	sale := mustSale(t, svc, "ana", ItemInput{ProductID: "soap", Quantity: 2})

	svc.Mirror().Apply(stale[0])
	_, ok := svc.Mirror().Sale(sale.ID)
	require.True(t, ok)

	_, err = svc.PayOneSale(ctx, SalePaymentInput{SaleID: sale.ID, Amount: 10, PaymentMethodID: "cash"})
	require.NoError(t, err)

	require.NoError(t, entitystore.Delete(ctx, store, testStore, CollectionSales, sale.ID))
	fresh, err := store.ListMany(ctx, testStore, CollectionSales)
	require.NoError(t, err)
	fresh[0].ReadAt = time.Now().Add(time.Minute)
	svc.Mirror().Apply(fresh[0])
	_, ok = svc.Mirror().Sale(sale.ID)
	require.False(t, ok)
}

func TestMirrorDoesNotResurrectCommittedDeletes(t *testing.T) {
	store := entitystore.NewMemoryStore()
	seedStore(t, store)
	mirror := NewMirror(store, testStore, nil)
	require.NoError(t, mirror.Refresh(context.Background()))

	readAt := time.Now().Add(-time.Minute)
	stale, err := store.List(context.Background(), testStore, CollectionCustomers)
	require.NoError(t, err)
	mirror.ApplyCommitted([]entitystore.Document{{Collection: CollectionCustomers, ID: "budi"}})

	mirror.Apply(entitystore.Snapshot{Collection: CollectionCustomers, Documents: stale, ReadAt: readAt})
	_, ok := mirror.Customer("budi")
	require.False(t, ok)
	_, ok = mirror.Customer("ana")
	require.True(t, ok)

	mirror.Apply(entitystore.Snapshot{Collection: CollectionCustomers, Documents: stale, ReadAt: time.Now().Add(time.Minute)})
	_, ok = mirror.Customer("budi")
	require.True(t, ok)
}

func TestMirrorSkipsMalformedDocuments(t *testing.T) {
	mirror := NewMirror(entitystore.NewMemoryStore(), testStore, nil)
	mirror.Apply(entitystore.Snapshot{Collection: CollectionSales, Documents: []entitystore.Document{
		{Collection: CollectionSales, ID: "bad", Version: 1, Data: []byte(`{"total":"lots"}`)},
		{Collection: CollectionSales, ID: "good", Version: 1, Data: []byte(`{"total":10,"balance":10}`)},
	}})
	sales := mirror.Sales()
	require.Len(t, sales, 1)
	require.Equal(t, "good", sales[0].ID)
}

func TestSessionsShareOneServicePerStore(t *testing.T) {
	store := entitystore.NewMemoryStore()
	seedStore(t, store)
	sessions := NewSessions(store, nil, SessionsConfig{})
	defer sessions.Close()

	var wg sync.WaitGroup
	services := make([]*Service, 8)
	for i := range services {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc, err := sessions.Get(context.Background(), testStore)
			require.NoError(t, err)
			services[i] = svc
		}(i)
	}
	wg.Wait()
	for _, svc := range services[1:] {
		require.Same(t, services[0], svc)
	}
	_, ok := services[0].Mirror().PaymentMethod("cash")
	require.True(t, ok)

	other, err := sessions.Get(context.Background(), "store-2")
	require.NoError(t, err)
	require.NotSame(t, services[0], other)
	require.Empty(t, other.Mirror().Products())

	_, err = sessions.Get(context.Background(), "")
	require.Error(t, err)
}

func TestSessionsApplyCommittedAndClose(t *testing.T) {
	store := entitystore.NewMemoryStore()
	sessions := NewSessions(store, nil, SessionsConfig{})
	svc, err := sessions.Get(context.Background(), testStore)
	require.NoError(t, err)

	docs, err := store.Commit(context.Background(), testStore, []entitystore.Write{
		entitystore.Create(CollectionPaymentMethods, "card", PaymentMethodFields(PaymentMethod{Name: "Card"})),
	})
	require.NoError(t, err)
	sessions.ApplyCommitted(testStore, docs)
	_, ok := svc.Mirror().PaymentMethod("card")
	require.True(t, ok)

	sessions.Close()
	_, err = sessions.Get(context.Background(), testStore)
	require.ErrorIs(t, err, ErrSessionsClosed)
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSessionsEvictLeastRecentlyUsed(t *testing.T) {
	store := entitystore.NewMemoryStore()
	seedStore(t, store)
	sessions := NewSessions(store, nil, SessionsConfig{MaxSessions: 2, IdleTTL: time.Hour})
	defer sessions.Close()
	ctx := context.Background()

	first, err := sessions.Get(ctx, testStore)
	require.NoError(t, err)
	_, err = sessions.Get(ctx, "store-2")
	require.NoError(t, err)
	again, err := sessions.Get(ctx, testStore)
	require.NoError(t, err)
	require.Same(t, first, again)

	_, err = sessions.Get(ctx, "store-3")
	require.NoError(t, err)
	require.Equal(t, 2, sessions.Len())
	kept, err := sessions.Get(ctx, testStore)
	require.NoError(t, err)
	require.Same(t, first, kept)

	baseline := runtime.NumGoroutine()
	for i := 0; i < 200; i++ {
		_, err := sessions.Get(ctx, fmt.Sprintf("unknown-%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, 2, sessions.Len())
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline+2*(len(Collections)+1)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionsCloseIdle(t *testing.T) {
	store := entitystore.NewMemoryStore()
	seedStore(t, store)
	sessions := NewSessions(store, nil, SessionsConfig{IdleTTL: time.Hour})
	defer sessions.Close()
	clock := &manualClock{now: base}
	sessions.now = clock.Now
	ctx := context.Background()

	idle, err := sessions.Get(ctx, testStore)
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	busy, err := sessions.Get(ctx, "store-2")
	require.NoError(t, err)
	clock.Advance(45 * time.Minute)

	require.Equal(t, 1, sessions.closeIdle())
	require.Equal(t, 1, sessions.Len())

	still, err := sessions.Get(ctx, "store-2")
	require.NoError(t, err)
	require.Same(t, busy, still)
	reopened, err := sessions.Get(ctx, testStore)
	require.NoError(t, err)
	require.NotSame(t, idle, reopened)
	_, ok := reopened.Mirror().PaymentMethod("cash")
	require.True(t, ok)
}
