// Package entitystore is a per-tenant document store with atomic multi-document
// commits, optimistic version checks and a live snapshot feed.
package entitystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("entitystore: not found")
	// ErrConflict indicates a commit was rejected because of a concurrent change.
	ErrConflict = errors.New("entitystore: write conflict")
	// ErrInvalidWrite indicates a malformed write.
	ErrInvalidWrite = errors.New("entitystore: invalid write")
)

// Document is a stored record. Data holds the JSON encoded fields.
type Document struct {
	Collection string
	ID         string
	Version    int64
	Data       json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode unmarshals the document fields into dst.
func (d Document) Decode(dst any) error {
	if len(d.Data) == 0 {
		return fmt.Errorf("entitystore: %s/%s has no data", d.Collection, d.ID)
	}
	return json.Unmarshal(d.Data, dst)
}

// Op enumerates write kinds.
type Op string

const (
	OpCreate Op = "create"
	OpPut    Op = "put"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Write is one document mutation inside a commit.
type Write struct {
	Op         Op
	Collection string
	ID         string
	Fields     map[string]any
	// IfVersion guards update and delete; zero skips the check.
	IfVersion int64
}

// Create builds a create write. An empty id is generated at commit time.
func Create(collection, id string, fields map[string]any) Write {
	return Write{Op: OpCreate, Collection: collection, ID: id, Fields: fields}
}

// Update builds a field-merging write guarded by version.
func Update(collection, id string, version int64, fields map[string]any) Write {
	return Write{Op: OpUpdate, Collection: collection, ID: id, Fields: fields, IfVersion: version}
}

// Remove builds a delete write guarded by version.
func Remove(collection, id string, version int64) Write {
	return Write{Op: OpDelete, Collection: collection, ID: id, IfVersion: version}
}

// Snapshot is the full content of a collection at a point in time. ReadAt is
// the local time taken before the read started: every commit that returned
// before ReadAt is reflected in Documents.
type Snapshot struct {
	Collection string
	Documents  []Document
	ReadAt     time.Time
}

// Store is the transactional document backend.
type Store interface {
	Get(ctx context.Context, tenant, collection, id string) (Document, error)
	List(ctx context.Context, tenant, collection string) ([]Document, error)
	// ListMany reads several collections from one consistent view. The
	// snapshots are aligned with collections and share one ReadAt.
	ListMany(ctx context.Context, tenant string, collections ...string) ([]Snapshot, error)
	// Commit applies every write or none of them. The returned documents are
	// aligned with writes; deleted entries carry only collection and id.
	Commit(ctx context.Context, tenant string, writes []Write) ([]Document, error)
	// Subscribe streams collection snapshots until ctx is done. The first
	// snapshot is delivered immediately and a slow reader only sees the latest.
	Subscribe(ctx context.Context, tenant, collection string) (<-chan Snapshot, error)
}

// Put creates or replaces a single document.
func Put(ctx context.Context, s Store, tenant, collection, id string, fields map[string]any) (Document, error) {
	docs, err := s.Commit(ctx, tenant, []Write{{Op: OpPut, Collection: collection, ID: id, Fields: fields}})
	if err != nil {
		return Document{}, err
	}
	return docs[0], nil
}

// UpdateFields merges fields into a single existing document.
func UpdateFields(ctx context.Context, s Store, tenant, collection, id string, fields map[string]any) (Document, error) {
	docs, err := s.Commit(ctx, tenant, []Write{Update(collection, id, 0, fields)})
	if err != nil {
		return Document{}, err
	}
	return docs[0], nil
}

// Delete removes a single document.
func Delete(ctx context.Context, s Store, tenant, collection, id string) error {
	_, err := s.Commit(ctx, tenant, []Write{Remove(collection, id, 0)})
	return err
}

func normalize(tenant string, writes []Write) ([]Write, error) {
	if tenant == "" {
		return nil, fmt.Errorf("%w: tenant required", ErrInvalidWrite)
	}
	if len(writes) == 0 {
		return nil, fmt.Errorf("%w: empty commit", ErrInvalidWrite)
	}
	out := make([]Write, len(writes))
	for i, w := range writes {
		if w.Collection == "" {
			return nil, fmt.Errorf("%w: write %d has no collection", ErrInvalidWrite, i)
		}
		switch w.Op {
		case OpCreate:
			if w.ID == "" {
				w.ID = uuid.NewString()
			}
		case OpPut, OpUpdate, OpDelete:
			if w.ID == "" {
				return nil, fmt.Errorf("%w: write %d (%s) has no id", ErrInvalidWrite, i, w.Op)
			}
		default:
			return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidWrite, w.Op)
		}
		if w.Op != OpDelete && w.Fields == nil {
			w.Fields = map[string]any{}
		}
		out[i] = w
	}
	return out, nil
}

func encodeFields(fields map[string]any) (json.RawMessage, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: encode fields: %v", ErrInvalidWrite, err)
	}
	return raw, nil
}

// mergeFields overlays fields on top of the existing top-level keys of data.
func mergeFields(data json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &merged); err != nil {
			return nil, fmt.Errorf("entitystore: decode stored fields: %w", err)
		}
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: encode field %q: %v", ErrInvalidWrite, k, err)
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// offerLatest delivers snap without blocking, replacing any unread snapshot.
func offerLatest(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}
