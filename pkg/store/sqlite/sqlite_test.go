package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		s, err := Open(filepath.Join(t.TempDir(), "formroom.db"))
		require.NoError(t, err)
		return s
	})
}

func TestStore_InMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		s, err := Open(":memory:")
		require.NoError(t, err)
		return s
	})
}

func TestStore_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "formroom.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())
	require.NoError(t, s.Put(ctx, store.CollectionUsers, &store.Document{
		ID:     "u1",
		Fields: map[string]any{"plan": "pro"},
	}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	doc, err := reopened.Get(ctx, store.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, "pro", doc.String("plan"))
}
