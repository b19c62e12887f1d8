// Package storage provides the in-memory document store.
//
// MemoryStore implements store.DocumentStore with a map of collections
// guarded by a sync.RWMutex. It is the default backend for the server and
// the backend used by most package tests.
//
// Documents are copied on the way in and on the way out, through the same
// JSON encoding the persistent backends use, so callers observe identical
// value types whichever backend is configured.
package storage
