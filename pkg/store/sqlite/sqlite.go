// Package sqlite implements store.DocumentStore on a single SQLite file
// using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oneform/formroom/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	fields TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// Store is a SQLite-backed document store.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex // serialises writers
	path string
	now  func() time.Time
}

var _ store.DocumentStore = (*Store)(nil)

// Open opens (creating if needed) the database at path. The special path
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and avoids SQLITE_BUSY
	// between pooled writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Get retrieves a document by ID.
func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, fields, created_at, updated_at FROM documents WHERE collection = ? AND id = ?`,
		collection, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Put stores or replaces a document.
func (s *Store) Put(ctx context.Context, collection string, doc *store.Document) error {
	if err := store.CheckPut(collection, doc); err != nil {
		return err
	}
	fields, err := store.EncodeFields(doc.Fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.Get(ctx, collection, doc.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	store.Stamp(doc, existing, s.now())

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			fields = excluded.fields,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		collection, doc.ID, string(fields), formatTime(doc.CreatedAt), formatTime(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to write document %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

// Delete removes a document by ID.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Query scans a collection and returns documents matching all filters.
// Filters are evaluated in Go so JSONPath semantics match the other backends.
func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]*store.Document, error) {
	compiled, err := store.CompileFilters(filters)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields, created_at, updated_at FROM documents WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	result := make([]*store.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s row: %w", collection, err)
		}
		if store.Match(doc.Fields, compiled) {
			result = append(result, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}

	store.SortDocuments(result)
	return result, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*store.Document, error) {
	var (
		id, fields       string
		created, updated string
	)
	if err := row.Scan(&id, &fields, &created, &updated); err != nil {
		return nil, err
	}

	doc := &store.Document{ID: id}
	var err error
	if doc.Fields, err = store.DecodeFields([]byte(fields)); err != nil {
		return nil, err
	}
	if doc.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("bad created_at: %w", err)
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("bad updated_at: %w", err)
	}
	return doc, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
