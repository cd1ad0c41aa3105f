package entitystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerpos/ledgerpos/internal/platform/db"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	tenant     TEXT        NOT NULL,
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	version    BIGINT      NOT NULL DEFAULT 1,
	data       JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant, collection, id)
);
CREATE INDEX IF NOT EXISTS documents_created_idx ON documents (tenant, collection, created_at, id);`

const documentColumns = `collection, id, version, data, created_at, updated_at`

// PostgresStore persists documents in a single JSONB table.
type PostgresStore struct {
	pool     *pgxpool.Pool
	notifier Notifier
	logger   *slog.Logger
}

// NewPostgresStore constructs the store. A nil notifier falls back to
// in-process notifications.
func NewPostgresStore(pool *pgxpool.Pool, notifier Notifier, logger *slog.Logger) *PostgresStore {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, notifier: notifier, logger: logger}
}

// EnsureSchema creates the documents table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("entitystore: ensure schema: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, tenant, collection, id string) (Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE tenant = $1 AND collection = $2 AND id = $3`, tenant, collection, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return doc, err
}

const listSQL = `SELECT ` + documentColumns + ` FROM documents WHERE tenant = $1 AND collection = $2 ORDER BY created_at, id`

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, tenant, collection string) ([]Document, error) {
	return listDocuments(ctx, s.pool, tenant, collection)
}

// ListMany implements Store. The collections are read inside one
// repeatable-read transaction so they share a database snapshot.
func (s *PostgresStore) ListMany(ctx context.Context, tenant string, collections ...string) ([]Snapshot, error) {
	readAt := time.Now()
	snaps := make([]Snapshot, len(collections))
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i, c := range collections {
			docs, err := listDocuments(ctx, tx, tenant, c)
			if err != nil {
				return err
			}
			snaps[i] = Snapshot{Collection: c, Documents: docs, ReadAt: readAt}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("entitystore: list %v: %w", collections, err)
	}
	return snaps, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listDocuments(ctx context.Context, q querier, tenant, collection string) ([]Document, error) {
	rows, err := q.Query(ctx, listSQL, tenant, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Commit implements Store. All writes run in one repeatable-read transaction;
// now() is fixed per transaction so every created document shares a timestamp.
func (s *PostgresStore) Commit(ctx context.Context, tenant string, writes []Write) ([]Document, error) {
	writes, err := normalize(tenant, writes)
	if err != nil {
		return nil, err
	}
	results := make([]Document, len(writes))
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for i, w := range writes {
			doc, err := applyWrite(ctx, tx, tenant, w)
			if err != nil {
				return err
			}
			results[i] = doc
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, db.ErrTxConflict) || db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, err
	}

	touched := make(map[string]struct{})
	for _, w := range writes {
		touched[w.Collection] = struct{}{}
	}
	for collection := range touched {
		if err := s.notifier.Publish(ctx, tenant, collection); err != nil {
			s.logger.Warn("publish change", slog.String("tenant", tenant), slog.String("collection", collection), slog.Any("error", err))
		}
	}
	return results, nil
}

func applyWrite(ctx context.Context, tx pgx.Tx, tenant string, w Write) (Document, error) {
	switch w.Op {
	case OpCreate:
		data, err := encodeFields(w.Fields)
		if err != nil {
			return Document{}, err
		}
		row := tx.QueryRow(ctx, `INSERT INTO documents (tenant, collection, id, data)
VALUES ($1, $2, $3, $4) RETURNING `+documentColumns, tenant, w.Collection, w.ID, data)
		return scanDocument(row)
	case OpPut:
		data, err := encodeFields(w.Fields)
		if err != nil {
			return Document{}, err
		}
		row := tx.QueryRow(ctx, `INSERT INTO documents (tenant, collection, id, data)
VALUES ($1, $2, $3, $4)
ON CONFLICT (tenant, collection, id) DO UPDATE
SET data = EXCLUDED.data, version = documents.version + 1, updated_at = now()
RETURNING `+documentColumns, tenant, w.Collection, w.ID, data)
		return scanDocument(row)
	case OpUpdate:
		patch, err := encodeFields(w.Fields)
		if err != nil {
			return Document{}, err
		}
		row := tx.QueryRow(ctx, `UPDATE documents
SET data = data || $4::jsonb, version = version + 1, updated_at = now()
WHERE tenant = $1 AND collection = $2 AND id = $3 AND ($5::bigint = 0 OR version = $5)
RETURNING `+documentColumns, tenant, w.Collection, w.ID, patch, w.IfVersion)
		doc, err := scanDocument(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, missingOrStale(w)
		}
		return doc, err
	case OpDelete:
		tag, err := tx.Exec(ctx, `DELETE FROM documents
WHERE tenant = $1 AND collection = $2 AND id = $3 AND ($4::bigint = 0 OR version = $4)`, tenant, w.Collection, w.ID, w.IfVersion)
		if err != nil {
			return Document{}, err
		}
		if tag.RowsAffected() == 0 {
			return Document{}, missingOrStale(w)
		}
		return Document{Collection: w.Collection, ID: w.ID}, nil
	}
	return Document{}, fmt.Errorf("%w: unknown op %q", ErrInvalidWrite, w.Op)
}

func missingOrStale(w Write) error {
	if w.IfVersion > 0 {
		return fmt.Errorf("%w: %s/%s changed since version %d", ErrConflict, w.Collection, w.ID, w.IfVersion)
	}
	return fmt.Errorf("%w: %s/%s", ErrNotFound, w.Collection, w.ID)
}

// Subscribe implements Store by re-listing the collection after every change
// signal from the notifier.
func (s *PostgresStore) Subscribe(ctx context.Context, tenant, collection string) (<-chan Snapshot, error) {
	signals, err := s.notifier.Listen(ctx, tenant, collection)
	if err != nil {
		return nil, err
	}
	readAt := time.Now()
	first, err := s.List(ctx, tenant, collection)
	if err != nil {
		return nil, err
	}
	out := make(chan Snapshot, 1)
	out <- Snapshot{Collection: collection, Documents: first, ReadAt: readAt}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				readAt := time.Now()
				docs, err := s.List(ctx, tenant, collection)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					s.logger.Warn("refresh snapshot", slog.String("tenant", tenant), slog.String("collection", collection), slog.Any("error", err))
					continue
				}
				offerLatest(out, Snapshot{Collection: collection, Documents: docs, ReadAt: readAt})
			}
		}
	}()
	return out, nil
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	var data []byte
	if err := row.Scan(&doc.Collection, &doc.ID, &doc.Version, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	doc.Data = data
	doc.CreatedAt = doc.CreatedAt.UTC()
	doc.UpdatedAt = doc.UpdatedAt.UTC()
	return doc, nil
}
