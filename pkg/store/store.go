package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Collections used by the platform.
const (
	CollectionForms      = "forms"
	CollectionRooms      = "fileRooms"
	CollectionUserAccess = "userAccess"
	CollectionUsers      = "users"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidDocument is returned when a document cannot be stored.
	ErrInvalidDocument = errors.New("invalid document")
)

// Document is a stored record. Fields hold JSON-compatible values only.
type Document struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// String returns the field at key if it is a string.
func (d *Document) String(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

// Strings returns the field at key as a string slice, skipping non-strings.
func (d *Document) Strings(key string) []string {
	switch v := d.Fields[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// DocumentStore is the contract every storage backend fulfils.
//
// Put is an upsert. It sets CreatedAt on first write (unless already set)
// and UpdatedAt on every write, and writes both back into doc.
// Query returns documents matching all filters, ordered by CreatedAt then ID.
// Returned documents are copies; mutating them does not affect the store.
type DocumentStore interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Put(ctx context.Context, collection string, doc *Document) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, filters ...Filter) ([]*Document, error)
	Close() error
}

// CheckPut validates a document before it is written.
func CheckPut(collection string, doc *Document) error {
	if collection == "" {
		return fmt.Errorf("%w: empty collection", ErrInvalidDocument)
	}
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDocument)
	}
	return nil
}

// Stamp applies the Put timestamp rules. existing is the stored version, or
// nil if the document is new.
func Stamp(doc, existing *Document, now time.Time) {
	now = now.UTC()
	switch {
	case existing != nil && !existing.CreatedAt.IsZero():
		doc.CreatedAt = existing.CreatedAt
	case doc.CreatedAt.IsZero():
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
}

// EncodeFields serialises document fields for storage.
func EncodeFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return b, nil
}

// DecodeFields is the inverse of EncodeFields.
func DecodeFields(b []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(b) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode fields: %w", err)
	}
	return fields, nil
}

// Clone deep-copies a document through its JSON form, so the copy holds the
// same value types a persistent backend would return.
func Clone(doc *Document) (*Document, error) {
	b, err := EncodeFields(doc.Fields)
	if err != nil {
		return nil, err
	}
	fields, err := DecodeFields(b)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:        doc.ID,
		Fields:    fields,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// SortDocuments orders documents by CreatedAt, then ID.
func SortDocuments(docs []*Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}
