package cache

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/quill/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	store := NewSQLiteStore(database)
	ctx := context.Background()
	at := time.UnixMilli(1_760_000_000_000)

	_, ok, err := store.Get(ctx, "products:list:u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "products:list:u1", Entry{Value: []byte(`[]`), WrittenAt: at}))

	e, ok, err := store.Get(ctx, "products:list:u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`[]`), e.Value)
	assert.True(t, at.Equal(e.WrittenAt))

	require.NoError(t, store.Delete(ctx, "products:list:u1"))
	_, ok, err = store.Get(ctx, "products:list:u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_Clear(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	store := NewSQLiteStore(database)
	ctx := context.Background()
	for _, k := range []string{"products:list:u1", "projects:list:u1"} {
		require.NoError(t, store.Set(ctx, k, Entry{Value: []byte(`[]`), WrittenAt: time.Now()}))
	}

	n, err := store.Clear(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStore_TypedCacheRoundTrip(t *testing.T) {
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	c := New[[]item](NewSQLiteStore(database))
	ctx := context.Background()

	c.Set(ctx, ListKey("projects", "u1"), []item{{ID: "a", Title: "A"}})

	got, ok := c.Get(ctx, ListKey("projects", "u1"))
	require.True(t, ok)
	assert.Equal(t, "A", got[0].Title)
}
