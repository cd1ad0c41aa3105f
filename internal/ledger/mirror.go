package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
)

// Mirror is the in-memory read model of one store. It is refreshed from the
// entity store feed and from documents returned by successful commits.
type Mirror struct {
	store  entitystore.Store
	tenant string
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	docs map[string]map[string]entitystore.Document
	// marks records when a commit result was folded in, per collection and
	// id, until a snapshot read after that time confirms it.
	marks map[string]map[string]commitMark
}

type commitMark struct {
	at      time.Time
	deleted bool
}

// NewMirror creates an empty mirror for tenant.
func NewMirror(store entitystore.Store, tenant string, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}
	docs := make(map[string]map[string]entitystore.Document, len(Collections))
	marks := make(map[string]map[string]commitMark, len(Collections))
	for _, c := range Collections {
		docs[c] = make(map[string]entitystore.Document)
		marks[c] = make(map[string]commitMark)
	}
	return &Mirror{
		store:  store,
		tenant: tenant,
		logger: logger.With(slog.String("store_id", tenant)),
		now:    time.Now,
		docs:   docs,
		marks:  marks,
	}
}

// Tenant returns the store id the mirror belongs to.
func (m *Mirror) Tenant() string {
	return m.tenant
}

// Refresh reloads every collection from one consistent read of the store.
func (m *Mirror) Refresh(ctx context.Context) error {
	return m.RefreshCollections(ctx, Collections...)
}

// RefreshCollections replaces the given collections from one consistent read.
func (m *Mirror) RefreshCollections(ctx context.Context, collections ...string) error {
	snaps, err := m.store.ListMany(ctx, m.tenant, collections...)
	if err != nil {
		return fmt.Errorf("ledger: refresh %v: %w", collections, err)
	}
	for _, snap := range snaps {
		m.Apply(snap)
	}
	return nil
}

// Apply replaces a collection with a feed snapshot. Documents held at a
// higher version than the snapshot's are kept, as are commit results folded
// in after the snapshot's ReadAt: a document committed later is kept even if
// the snapshot lacks it, and one deleted later is not brought back. A zero
// ReadAt counts as a read taken now.
func (m *Mirror) Apply(snap entitystore.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.docs[snap.Collection]
	if !ok {
		return
	}
	readAt := snap.ReadAt
	if readAt.IsZero() {
		readAt = m.now()
	}
	marks := m.marks[snap.Collection]
	newer := func(id string, deleted bool) bool {
		mark, ok := marks[id]
		return ok && mark.deleted == deleted && mark.at.After(readAt)
	}

	fresh := make(map[string]entitystore.Document, len(snap.Documents))
	for _, d := range snap.Documents {
		if newer(d.ID, true) {
			continue
		}
		if held, exists := current[d.ID]; exists && held.Version > d.Version {
			d = held
		}
		fresh[d.ID] = d
	}
	for id, held := range current {
		if _, exists := fresh[id]; !exists && newer(id, false) {
			fresh[id] = held
		}
	}
	for id, mark := range marks {
		if !mark.at.After(readAt) {
			delete(marks, id)
		}
	}
	m.docs[snap.Collection] = fresh
}

// ApplyCommitted folds the result of a successful commit into the mirror.
// Deleted documents come back without a version and are removed.
func (m *Mirror) ApplyCommitted(docs []entitystore.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := m.now()
	for _, d := range docs {
		current, ok := m.docs[d.Collection]
		if !ok {
			continue
		}
		if d.Version == 0 {
			delete(current, d.ID)
			m.marks[d.Collection][d.ID] = commitMark{at: at, deleted: true}
			continue
		}
		m.marks[d.Collection][d.ID] = commitMark{at: at}
		if held, exists := current[d.ID]; exists && held.Version >= d.Version {
			continue
		}
		current[d.ID] = d
	}
}

// Run subscribes to every mirrored collection and applies snapshots from a
// single goroutine until ctx is done or a feed ends.
func (m *Mirror) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	feeds := make([]<-chan entitystore.Snapshot, len(Collections))
	for i, c := range Collections {
		ch, err := m.store.Subscribe(ctx, m.tenant, c)
		if err != nil {
			return fmt.Errorf("ledger: subscribe %s: %w", c, err)
		}
		feeds[i] = ch
	}

	m.logger.Debug("mirror running")
	for {
		var (
			snap entitystore.Snapshot
			ok   bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok = <-feeds[0]:
		case snap, ok = <-feeds[1]:
		case snap, ok = <-feeds[2]:
		case snap, ok = <-feeds[3]:
		case snap, ok = <-feeds[4]:
		}
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.New("ledger: change feed closed")
		}
		m.Apply(snap)
	}
}

func (m *Mirror) documents(collection string) []entitystore.Document {
	m.mu.RLock()
	docs := make([]entitystore.Document, 0, len(m.docs[collection]))
	for _, d := range m.docs[collection] {
		docs = append(docs, d)
	}
	m.mu.RUnlock()
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs
}

func (m *Mirror) document(collection, id string) (entitystore.Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[collection][id]
	return d, ok
}

func decodeAll[T any](m *Mirror, collection string, decode func(entitystore.Document) (T, error)) []T {
	docs := m.documents(collection)
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := decode(d)
		if err != nil {
			m.logger.Warn("skip malformed document", slog.String("collection", collection), slog.Any("error", err))
			continue
		}
		out = append(out, v)
	}
	return out
}

func decodeOne[T any](m *Mirror, collection, id string, decode func(entitystore.Document) (T, error)) (T, bool) {
	var zero T
	d, ok := m.document(collection, id)
	if !ok {
		return zero, false
	}
	v, err := decode(d)
	if err != nil {
		m.logger.Warn("skip malformed document", slog.String("collection", collection), slog.Any("error", err))
		return zero, false
	}
	return v, true
}

// Products returns products in creation order.
func (m *Mirror) Products() []Product {
	return decodeAll(m, CollectionProducts, DecodeProduct)
}

// ProductIndex returns products keyed by id.
func (m *Mirror) ProductIndex() map[string]Product {
	products := m.Products()
	index := make(map[string]Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return index
}

// Product looks up a product.
func (m *Mirror) Product(id string) (Product, bool) {
	return decodeOne(m, CollectionProducts, id, DecodeProduct)
}

// Customers returns customers in creation order.
func (m *Mirror) Customers() []Customer {
	return decodeAll(m, CollectionCustomers, DecodeCustomer)
}

// Customer looks up a customer.
func (m *Mirror) Customer(id string) (Customer, bool) {
	return decodeOne(m, CollectionCustomers, id, DecodeCustomer)
}

// Sales returns sales in creation order.
func (m *Mirror) Sales() []Sale {
	return decodeAll(m, CollectionSales, DecodeSale)
}

// Sale looks up a sale.
func (m *Mirror) Sale(id string) (Sale, bool) {
	return decodeOne(m, CollectionSales, id, DecodeSale)
}

// Payments returns payments in creation order.
func (m *Mirror) Payments() []Payment {
	return decodeAll(m, CollectionPayments, DecodePayment)
}

// PaymentMethods returns payment methods in creation order.
func (m *Mirror) PaymentMethods() []PaymentMethod {
	return decodeAll(m, CollectionPaymentMethods, DecodePaymentMethod)
}

// PaymentMethod looks up a payment method.
func (m *Mirror) PaymentMethod(id string) (PaymentMethod, bool) {
	return decodeOne(m, CollectionPaymentMethods, id, DecodePaymentMethod)
}
