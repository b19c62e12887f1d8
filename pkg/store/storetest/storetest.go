// Package storetest holds behaviour tests shared by every store.DocumentStore
// backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneform/formroom/pkg/store"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.DocumentStore

// Run exercises a backend against the DocumentStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.DocumentStore)
	}{
		{"PutAndGet", testPutAndGet},
		{"GetMissing", testGetMissing},
		{"Upsert", testUpsert},
		{"Delete", testDelete},
		{"CollectionsAreIsolated", testCollectionsIsolated},
		{"QueryFilters", testQueryFilters},
		{"QueryOrder", testQueryOrder},
		{"ReturnsCopies", testReturnsCopies},
		{"InvalidDocument", testInvalidDocument},
		{"ConcurrentPuts", testConcurrentPuts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func testPutAndGet(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	doc := &store.Document{
		ID: "f1",
		Fields: map[string]any{
			"userId":        "u1",
			"encryptedData": "fr1.k1.abc",
			"tags":          []any{"a", "b"},
			"count":         2,
		},
	}
	require.NoError(t, s.Put(ctx, store.CollectionForms, doc))
	assert.False(t, doc.CreatedAt.IsZero())
	assert.Equal(t, doc.CreatedAt, doc.UpdatedAt)

	got, err := s.Get(ctx, store.CollectionForms, "f1")
	require.NoError(t, err)
	assert.Equal(t, "f1", got.ID)
	assert.Equal(t, "u1", got.String("userId"))
	assert.Equal(t, []string{"a", "b"}, got.Strings("tags"))
	assert.Equal(t, float64(2), got.Fields["count"])
	assert.True(t, got.CreatedAt.Equal(doc.CreatedAt))
}

func testGetMissing(t *testing.T, s store.DocumentStore) {
	_, err := s.Get(context.Background(), store.CollectionForms, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpsert(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	doc := &store.Document{ID: "r1", Fields: map[string]any{"ownerId": "u1"}}
	require.NoError(t, s.Put(ctx, store.CollectionRooms, doc))
	created := doc.CreatedAt

	time.Sleep(2 * time.Millisecond)
	update := &store.Document{ID: "r1", Fields: map[string]any{"ownerId": "u1", "connectedUsers": []any{"u2"}}}
	require.NoError(t, s.Put(ctx, store.CollectionRooms, update))

	got, err := s.Get(ctx, store.CollectionRooms, "r1")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created), "CreatedAt must survive updates")
	assert.True(t, got.UpdatedAt.After(created))
	assert.Equal(t, []string{"u2"}, got.Strings("connectedUsers"))
}

func testDelete(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{ID: "f1"}))

	require.NoError(t, s.Delete(ctx, store.CollectionForms, "f1"))
	_, err := s.Get(ctx, store.CollectionForms, "f1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, store.CollectionForms, "f1"), store.ErrNotFound)

	docs, err := s.Query(ctx, store.CollectionForms)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testCollectionsIsolated(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{ID: "x", Fields: map[string]any{"kind": "form"}}))
	require.NoError(t, s.Put(ctx, store.CollectionRooms, &store.Document{ID: "x", Fields: map[string]any{"kind": "room"}}))

	form, err := s.Get(ctx, store.CollectionForms, "x")
	require.NoError(t, err)
	assert.Equal(t, "form", form.String("kind"))

	require.NoError(t, s.Delete(ctx, store.CollectionRooms, "x"))
	_, err = s.Get(ctx, store.CollectionForms, "x")
	assert.NoError(t, err)

	docs, err := s.Query(ctx, store.CollectionRooms)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func testQueryFilters(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	put := func(id, roomID, userID string, users ...any) {
		t.Helper()
		require.NoError(t, s.Put(ctx, store.CollectionUserAccess, &store.Document{
			ID:     id,
			Fields: map[string]any{"roomId": roomID, "userId": userID, "seen": users},
		}))
	}
	put("u1_a", "r1", "u1", "x")
	put("u1_b", "r2", "u1")
	put("u2_a", "r1", "u2", "x", "y")

	ids := func(docs []*store.Document) []string {
		out := make([]string, 0, len(docs))
		for _, d := range docs {
			out = append(out, d.ID)
		}
		return out
	}

	docs, err := s.Query(ctx, store.CollectionUserAccess, store.Where("roomId", "r1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1_a", "u2_a"}, ids(docs))

	docs, err = s.Query(ctx, store.CollectionUserAccess, store.Where("roomId", "r1"), store.Where("$.userId", "u1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1_a"}, ids(docs))

	docs, err = s.Query(ctx, store.CollectionUserAccess, store.Filter{Path: "seen", Op: store.Contains, Value: "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2_a"}, ids(docs))

	docs, err = s.Query(ctx, store.CollectionUserAccess, store.Filter{Path: "userId", Op: store.Prefix, Value: "u"})
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	_, err = s.Query(ctx, store.CollectionUserAccess, store.Filter{Path: "userId", Op: "regex"})
	assert.Error(t, err)
}

func testQueryOrder(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{ID: "0", CreatedAt: base}))

	docs, err := s.Query(ctx, store.CollectionForms)
	require.NoError(t, err)
	require.Len(t, docs, 4)
	got := []string{docs[0].ID, docs[1].ID, docs[2].ID, docs[3].ID}
	assert.Equal(t, []string{"0", "c", "a", "b"}, got)
}

func testReturnsCopies(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{ID: "f1", Fields: map[string]any{"userId": "u1"}}))

	got, err := s.Get(ctx, store.CollectionForms, "f1")
	require.NoError(t, err)
	got.Fields["userId"] = "mallory"

	again, err := s.Get(ctx, store.CollectionForms, "f1")
	require.NoError(t, err)
	assert.Equal(t, "u1", again.String("userId"))
}

func testInvalidDocument(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	assert.ErrorIs(t, s.Put(ctx, store.CollectionForms, &store.Document{}), store.ErrInvalidDocument)
	assert.ErrorIs(t, s.Put(ctx, store.CollectionForms, nil), store.ErrInvalidDocument)
	assert.ErrorIs(t, s.Put(ctx, "", &store.Document{ID: "a"}), store.ErrInvalidDocument)
}

func testConcurrentPuts(t *testing.T, s store.DocumentStore) {
	ctx := context.Background()
	const n = 20

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := &store.Document{ID: fmt.Sprintf("doc-%02d", i), Fields: map[string]any{"i": i}}
			if err := s.Put(ctx, store.CollectionForms, doc); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	docs, err := s.Query(ctx, store.CollectionForms)
	require.NoError(t, err)
	assert.Len(t, docs, n)
}
