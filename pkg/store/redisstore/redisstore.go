// Package redisstore implements store.DocumentStore on Redis.
//
// Each document is a JSON string at <prefix>:doc:<collection>:<id>. A set at
// <prefix>:idx:<collection> lists the IDs of a collection so queries can
// scan it without KEYS.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oneform/formroom/pkg/store"
)

// DefaultPrefix namespaces keys when no prefix is configured.
const DefaultPrefix = "formroom"

// maxTxRetries bounds optimistic-lock retries in Put.
const maxTxRetries = 5

// Store is a Redis-backed document store. It is safe for concurrent use.
type Store struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

var _ store.DocumentStore = (*Store)(nil)

// New connects a store using the given options.
func New(opts *redis.Options, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		rdb:    redis.NewClient(opts),
		prefix: prefix,
		now:    time.Now,
	}
}

// FromConfig builds a store from backend configuration.
func FromConfig(cfg store.RedisConfig) *Store {
	return New(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, cfg.Prefix)
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// DocKey returns the key holding a document.
func (s *Store) DocKey(collection, id string) string {
	return fmt.Sprintf("%s:doc:%s:%s", s.prefix, collection, id)
}

// IndexKey returns the key of a collection's ID set.
func (s *Store) IndexKey(collection string) string {
	return fmt.Sprintf("%s:idx:%s", s.prefix, collection)
}

// record is the stored JSON form of a document.
type record struct {
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func decode(id, raw string) (*store.Document, error) {
	var r record
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	return &store.Document{ID: id, Fields: r.Fields, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}, nil
}

// Get retrieves a document by ID.
func (s *Store) Get(ctx context.Context, collection, id string) (*store.Document, error) {
	raw, err := s.rdb.Get(ctx, s.DocKey(collection, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document from Redis: %w", err)
	}
	return decode(id, raw)
}

// Put stores or replaces a document. The read of the previous version and
// the write happen under WATCH so CreatedAt survives concurrent updates.
func (s *Store) Put(ctx context.Context, collection string, doc *store.Document) error {
	if err := store.CheckPut(collection, doc); err != nil {
		return err
	}
	if _, err := store.EncodeFields(doc.Fields); err != nil {
		return err
	}

	key := s.DocKey(collection, doc.ID)
	txf := func(tx *redis.Tx) error {
		var existing *store.Document
		raw, err := tx.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if existing, err = decode(doc.ID, raw); err != nil {
				return err
			}
		}

		store.Stamp(doc, existing, s.now())
		payload, err := json.Marshal(record{Fields: doc.Fields, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt})
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidDocument, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, s.IndexKey(collection), doc.ID)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to write document to Redis: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to write document to Redis: %w", redis.TxFailedErr)
}

// Delete removes a document by ID.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.DocKey(collection, id))
		pipe.SRem(ctx, s.IndexKey(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete document from Redis: %w", err)
	}
	if del.Val() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Query loads a collection through its index set and returns documents
// matching all filters.
func (s *Store) Query(ctx context.Context, collection string, filters ...store.Filter) ([]*store.Document, error) {
	compiled, err := store.CompileFilters(filters)
	if err != nil {
		return nil, err
	}

	ids, err := s.rdb.SMembers(ctx, s.IndexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	result := make([]*store.Document, 0, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.DocKey(collection, id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", collection, err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a document; a crashed writer left it.
			continue
		}
		doc, err := decode(ids[i], raw)
		if err != nil {
			return nil, err
		}
		if store.Match(doc.Fields, compiled) {
			result = append(result, doc)
		}
	}

	store.SortDocuments(result)
	return result, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}
