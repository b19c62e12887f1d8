package store

import "context"

// Collection is a DocumentStore view bound to one collection name.
type Collection struct {
	underlying DocumentStore
	name       string
}

// NewCollection creates a collection view.
func NewCollection(s DocumentStore, name string) *Collection {
	return &Collection{underlying: s, name: name}
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Get retrieves a document by ID.
func (c *Collection) Get(ctx context.Context, id string) (*Document, error) {
	return c.underlying.Get(ctx, c.name, id)
}

// Put stores a document.
func (c *Collection) Put(ctx context.Context, doc *Document) error {
	return c.underlying.Put(ctx, c.name, doc)
}

// Delete removes a document by ID.
func (c *Collection) Delete(ctx context.Context, id string) error {
	return c.underlying.Delete(ctx, c.name, id)
}

// Query returns the documents matching all filters.
func (c *Collection) Query(ctx context.Context, filters ...Filter) ([]*Document, error) {
	return c.underlying.Query(ctx, c.name, filters...)
}

// All returns every document in the collection.
func (c *Collection) All(ctx context.Context) ([]*Document, error) {
	return c.underlying.Query(ctx, c.name)
}
