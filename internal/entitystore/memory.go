package entitystore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type docKey struct {
	collection string
	id         string
}

type subscription struct {
	tenant     string
	collection string
	ch         chan Snapshot
}

// MemoryStore keeps documents in process. It honours the same atomicity and
// version contract as PostgresStore and is used for development and tests.
type MemoryStore struct {
	mu     sync.Mutex
	clock  func() time.Time
	docs   map[string]map[docKey]Document
	subs   map[*subscription]struct{}
	closed bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clock: func() time.Time { return time.Now().UTC() },
		docs:  make(map[string]map[docKey]Document),
		subs:  make(map[*subscription]struct{}),
	}
}

// WithClock replaces the timestamp source.
func (s *MemoryStore) WithClock(clock func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
	return s
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, tenant, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[tenant][docKey{collection, id}]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return doc, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, tenant, collection string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(tenant, collection), nil
}

// ListMany implements Store.
func (s *MemoryStore) ListMany(_ context.Context, tenant string, collections ...string) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	readAt := time.Now()
	snaps := make([]Snapshot, len(collections))
	for i, c := range collections {
		snaps[i] = Snapshot{Collection: c, Documents: s.listLocked(tenant, c), ReadAt: readAt}
	}
	return snaps, nil
}

func (s *MemoryStore) listLocked(tenant, collection string) []Document {
	docs := make([]Document, 0)
	for k, d := range s.docs[tenant] {
		if k.collection == collection {
			docs = append(docs, d)
		}
	}
	sortDocuments(docs)
	return docs
}

// Commit implements Store.
func (s *MemoryStore) Commit(ctx context.Context, tenant string, writes []Write) ([]Document, error) {
	writes, err := normalize(tenant, writes)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.docs[tenant]
	staged := make(map[docKey]*Document)
	lookup := func(k docKey) (Document, bool) {
		if d, ok := staged[k]; ok {
			if d == nil {
				return Document{}, false
			}
			return *d, true
		}
		d, ok := current[k]
		return d, ok
	}

	now := s.clock()
	results := make([]Document, len(writes))
	touched := make(map[string]struct{})
	for i, w := range writes {
		k := docKey{w.Collection, w.ID}
		existing, exists := lookup(k)
		switch w.Op {
		case OpCreate:
			if exists {
				return nil, fmt.Errorf("%w: %s/%s already exists", ErrConflict, w.Collection, w.ID)
			}
			data, err := encodeFields(w.Fields)
			if err != nil {
				return nil, err
			}
			doc := Document{Collection: w.Collection, ID: w.ID, Version: 1, Data: data, CreatedAt: now, UpdatedAt: now}
			staged[k] = &doc
			results[i] = doc
		case OpPut:
			data, err := encodeFields(w.Fields)
			if err != nil {
				return nil, err
			}
			doc := Document{Collection: w.Collection, ID: w.ID, Version: 1, Data: data, CreatedAt: now, UpdatedAt: now}
			if exists {
				doc.Version = existing.Version + 1
				doc.CreatedAt = existing.CreatedAt
			}
			staged[k] = &doc
			results[i] = doc
		case OpUpdate:
			if !exists {
				if w.IfVersion > 0 {
					return nil, fmt.Errorf("%w: %s/%s no longer exists", ErrConflict, w.Collection, w.ID)
				}
				return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, w.Collection, w.ID)
			}
			if w.IfVersion > 0 && existing.Version != w.IfVersion {
				return nil, fmt.Errorf("%w: %s/%s version %d, expected %d", ErrConflict, w.Collection, w.ID, existing.Version, w.IfVersion)
			}
			data, err := mergeFields(existing.Data, w.Fields)
			if err != nil {
				return nil, err
			}
			doc := existing
			doc.Data = data
			doc.Version++
			doc.UpdatedAt = now
			staged[k] = &doc
			results[i] = doc
		case OpDelete:
			if !exists {
				if w.IfVersion > 0 {
					return nil, fmt.Errorf("%w: %s/%s no longer exists", ErrConflict, w.Collection, w.ID)
				}
				return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, w.Collection, w.ID)
			}
			if w.IfVersion > 0 && existing.Version != w.IfVersion {
				return nil, fmt.Errorf("%w: %s/%s version %d, expected %d", ErrConflict, w.Collection, w.ID, existing.Version, w.IfVersion)
			}
			staged[k] = nil
			results[i] = Document{Collection: w.Collection, ID: w.ID}
		}
		touched[w.Collection] = struct{}{}
	}

	if current == nil {
		current = make(map[docKey]Document)
		s.docs[tenant] = current
	}
	for k, d := range staged {
		if d == nil {
			delete(current, k)
			continue
		}
		current[k] = *d
	}
	for collection := range touched {
		s.publishLocked(tenant, collection)
	}
	return results, nil
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe(ctx context.Context, tenant, collection string) (<-chan Snapshot, error) {
	if tenant == "" || collection == "" {
		return nil, fmt.Errorf("%w: tenant and collection required", ErrInvalidWrite)
	}
	sub := &subscription{tenant: tenant, collection: collection, ch: make(chan Snapshot, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("entitystore: store closed")
	}
	s.subs[sub] = struct{}{}
	offerLatest(sub.ch, Snapshot{Collection: collection, Documents: s.listLocked(tenant, collection), ReadAt: time.Now()})
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[sub]; ok {
			delete(s.subs, sub)
			close(sub.ch)
		}
	}()
	return sub.ch, nil
}

// Close ends every subscription.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for sub := range s.subs {
		delete(s.subs, sub)
		close(sub.ch)
	}
	return nil
}

func (s *MemoryStore) publishLocked(tenant, collection string) {
	var snap *Snapshot
	for sub := range s.subs {
		if sub.tenant != tenant || sub.collection != collection {
			continue
		}
		if snap == nil {
			snap = &Snapshot{Collection: collection, Documents: s.listLocked(tenant, collection), ReadAt: time.Now()}
		}
		offerLatest(sub.ch, *snap)
	}
}

func sortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}
