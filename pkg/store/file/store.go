// Package file provides a JSON-file implementation of store.DocumentStore.
// Documents live in memory and are written to disk by a debounced
// background saver, with a final save on Close.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oneform/formroom/pkg/store"
)

// Current data format version for migration support
const dataVersion = 1

// DefaultSaveDebounce is the delay between a write and the save it triggers.
const DefaultSaveDebounce = 500 * time.Millisecond

// Store implements store.DocumentStore on a single JSON file.
type Store struct {
	path         string
	mu           sync.RWMutex
	data         *storeData
	dirty        atomic.Bool
	saving       sync.Mutex
	saveDebounce time.Duration
	saveCh       chan struct{}
	closeCh      chan struct{}
	closeOnce    sync.Once
	closedCh     chan struct{} // signals when saveLoop has exited
	now          func() time.Time
	log          *slog.Logger
}

var _ store.DocumentStore = (*Store)(nil)

// storeData holds all persisted data.
type storeData struct {
	Version     int                                   `json:"version"`
	Collections map[string]map[string]*store.Document `json:"collections"`
}

func emptyData() *storeData {
	return &storeData{Version: dataVersion, Collections: map[string]map[string]*store.Document{}}
}

// Option configures a Store.
type Option func(*Store)

// WithSaveDebounce sets the delay between a write and the save it triggers.
func WithSaveDebounce(d time.Duration) Option {
	return func(s *Store) { s.saveDebounce = d }
}

// WithLogger sets the logger used for background save failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Open loads the data file at path (a missing file means an empty store)
// and starts the background saver.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:         path,
		data:         emptyData(),
		saveDebounce: DefaultSaveDebounce,
		saveCh:       make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
		closedCh:     make(chan struct{}),
		now:          time.Now,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Ensure the directory exists with secure permissions (0700)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	default:
		var stored storeData
		if err := json.Unmarshal(raw, &stored); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if stored.Version > dataVersion {
			return nil, fmt.Errorf("%s has data version %d, newer than supported %d", path, stored.Version, dataVersion)
		}
		if stored.Collections == nil {
			stored.Collections = map[string]map[string]*store.Document{}
		}
		s.data = &stored
	}

	go s.saveLoop()
	return s, nil
}

// Path returns the data file location.
func (s *Store) Path() string {
	return s.path
}

// saveLoop handles debounced saving to prevent excessive disk writes.
func (s *Store) saveLoop() {
	defer close(s.closedCh)
	var timer *time.Timer
	for {
		select {
		case <-s.saveCh:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.saveDebounce, func() {
				if err := s.save(); err != nil {
					s.log.Error("failed to save store data", "path", s.path, "error", err)
				}
			})
		case <-s.closeCh:
			if timer != nil {
				timer.Stop()
			}
			if err := s.save(); err != nil {
				s.log.Error("failed to save store data on close", "path", s.path, "error", err)
			}
			return
		}
	}
}

// save writes the data file if there are unsaved changes. The write goes to
// a temp file that is then renamed over the data file.
func (s *Store) save() error {
	s.saving.Lock()
	defer s.saving.Unlock()

	if !s.dirty.Swap(false) {
		return nil
	}

	s.mu.RLock()
	s.data.Version = dataVersion
	raw, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		s.dirty.Store(true)
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		s.dirty.Store(true)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		s.dirty.Store(true)
		return err
	}
	return nil
}

// markDirty marks data as needing to be saved.
func (s *Store) markDirty() {
	s.dirty.Store(true)
	select {
	case s.saveCh <- struct{}{}:
	default:
		// save already pending
	}
}

// Flush writes pending changes immediately.
func (s *Store) Flush() error {
	return s.save()
}

// Get retrieves a document by ID.
func (s *Store) Get(_ context.Context, collection, id string) (*store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data.Collections[collection][id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return store.Clone(doc)
}

// Put stores or replaces a document.
func (s *Store) Put(_ context.Context, collection string, doc *store.Document) error {
	if err := store.CheckPut(collection, doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.data.Collections[collection]
	if docs == nil {
		docs = make(map[string]*store.Document)
		s.data.Collections[collection] = docs
	}
	store.Stamp(doc, docs[doc.ID], s.now())
	stored, err := store.Clone(doc)
	if err != nil {
		return err
	}
	docs[doc.ID] = stored
	s.markDirty()
	return nil
}

// Delete removes a document by ID.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.data.Collections[collection]
	if _, ok := docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(docs, id)
	if len(docs) == 0 {
		delete(s.data.Collections, collection)
	}
	s.markDirty()
	return nil
}

// Query returns the documents in a collection matching all filters.
func (s *Store) Query(_ context.Context, collection string, filters ...store.Filter) ([]*store.Document, error) {
	compiled, err := store.CompileFilters(filters)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*store.Document, 0)
	for _, doc := range s.data.Collections[collection] {
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

// Close saves pending changes and stops the saver. Safe to call multiple times.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})
	<-s.closedCh
	return nil
}
