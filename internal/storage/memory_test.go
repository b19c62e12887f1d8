package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		return NewMemoryStore()
	})
}

func TestMemoryStore_PutCopiesInput(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	fields := map[string]any{"userId": "u1"}
	require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{ID: "a", Fields: fields}))
	fields["userId"] = "changed"

	got, err := s.Get(ctx, store.CollectionForms, "a")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.String("userId"))
}

func TestMemoryStore_RejectsUnencodableFields(t *testing.T) {
	s := NewMemoryStore()
	err := s.Put(context.Background(), store.CollectionForms, &store.Document{
		ID:     "a",
		Fields: map[string]any{"ch": make(chan int)},
	})
	assert.ErrorIs(t, err, store.ErrInvalidDocument)
	_, err = s.Get(context.Background(), store.CollectionForms, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
