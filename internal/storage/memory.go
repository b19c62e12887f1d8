package storage

import (
	"context"
	"sync"
	"time"

	"github.com/oneform/formroom/pkg/store"
)

// MemoryStore is a thread-safe in-memory implementation of store.DocumentStore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*store.Document
	now         func() time.Time
}

var _ store.DocumentStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*store.Document),
		now:         time.Now,
	}
}

// Get retrieves a document by ID.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (*store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.Clone(doc)
}

// Put stores or replaces a document.
func (s *MemoryStore) Put(_ context.Context, collection string, doc *store.Document) error {
	if err := store.CheckPut(collection, doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	if docs == nil {
		docs = make(map[string]*store.Document)
		s.collections[collection] = docs
	}

	store.Stamp(doc, docs[doc.ID], s.now())
	stored, err := store.Clone(doc)
	if err != nil {
		return err
	}
	docs[doc.ID] = stored
	return nil
}

// Delete removes a document by ID.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	if _, ok := docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(docs, id)
	return nil
}

// Query returns the documents in a collection matching all filters.
func (s *MemoryStore) Query(_ context.Context, collection string, filters ...store.Filter) ([]*store.Document, error) {
	compiled, err := store.CompileFilters(filters)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*store.Document, 0)
	for _, doc := range s.collections[collection] {
		if !store.Match(doc.Fields, compiled) {
			continue
		}
		c, err := store.Clone(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	store.SortDocuments(result)
	return result, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
