// Package store defines the document storage used by forms, rooms and
// accounts.
//
// A DocumentStore keeps JSON-shaped documents grouped into named
// collections. Four backends implement it:
//
//   - storage.MemoryStore (internal/storage): process-local, the default
//   - file.Store (pkg/store/file): a JSON file written in the background
//   - sqlite.Store (pkg/store/sqlite): a single SQLite file
//   - redisstore.Store (pkg/store/redisstore): a Redis server
//
// Queries are conjunctions of Filters whose paths are JSONPath expressions
// over a document's fields. Every backend evaluates filters with Match so
// results are identical across backends.
package store
