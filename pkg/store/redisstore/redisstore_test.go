package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/store/storetest"
)

// setupTestStore creates a store connected to a miniredis instance.
func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	return New(&redis.Options{Addr: mr.Addr()}, "test"), mr
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.DocumentStore {
		s, _ := setupTestStore(t)
		return s
	})
}

func TestStore_KeyLayout(t *testing.T) {
	s, mr := setupTestStore(t)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{
		ID:     "f1",
		Fields: map[string]any{"userId": "u1"},
	}))

	assert.True(t, mr.Exists("test:doc:forms:f1"))
	members, err := mr.Members("test:idx:forms")
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, members)

	require.NoError(t, s.Delete(ctx, store.CollectionForms, "f1"))
	assert.False(t, mr.Exists("test:doc:forms:f1"))
	assert.Zero(t, s.rdb.SCard(ctx, "test:idx:forms").Val())
}

func TestStore_SkipsDanglingIndexEntries(t *testing.T) {
	s, mr := setupTestStore(t)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.CollectionRooms, &store.Document{ID: "r1"}))
	_, err := mr.SAdd("test:idx:fileRooms", "ghost")
	require.NoError(t, err)

	docs, err := s.Query(ctx, store.CollectionRooms)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "r1", docs[0].ID)
}

func TestStore_DefaultPrefixAndPing(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	defer mr.Close()

	s := FromConfig(store.RedisConfig{Addr: mr.Addr()})
	defer s.Close()

	assert.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, "formroom:doc:users:u1", s.DocKey(store.CollectionUsers, "u1"))
	assert.Equal(t, "formroom:idx:users", s.IndexKey(store.CollectionUsers))
}

func TestStore_ConnectionError(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	s := New(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}, "test")
	defer s.Close()
	mr.Close()

	_, err := s.Get(context.Background(), store.CollectionForms, "f1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}
