package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	err     error
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]Entry{}}
}

func (m *memStore) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Entry{}, false, m.err
	}
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *memStore) Set(_ context.Context, key string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries[key] = e
	return nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.entries, key)
	return nil
}

type item struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "products:list:u1", ListKey("products", "u1"))
	assert.Equal(t, "brain_dumps:abc:u1", RecordKey("brain_dumps", "abc", "u1"))
}

func TestCache_SetGet(t *testing.T) {
	c := New[[]item](newMemStore())
	ctx := context.Background()

	c.Set(ctx, "k", []item{{ID: "1", Title: "One"}})

	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []item{{ID: "1", Title: "One"}}, got)
}

func TestCache_Miss(t *testing.T) {
	c := New[item](newMemStore())
	_, ok := c.Get(context.Background(), "missing")
	assert.False(t, ok)
}

func TestCache_StaleAfterTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := New[item](newMemStore(), WithTTL(5*time.Minute), WithClock(clock))
	ctx := context.Background()

	c.Set(ctx, "k", item{ID: "1"})

	now = now.Add(5 * time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.True(t, ok, "entry at exactly the TTL is still fresh")

	now = now.Add(time.Second)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_Undecodable(t *testing.T) {
	store := newMemStore()
	store.entries["k"] = Entry{Value: []byte("{not json"), WrittenAt: time.Now()}

	c := New[item](store)
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestCache_StoreErrorsAreSwallowed(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("disk full")
	c := New[item](store)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		c.Set(ctx, "k", item{ID: "1"})
		c.Invalidate(ctx, "k")
	})
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := New[item](newMemStore())
	ctx := context.Background()

	c.Set(ctx, "k", item{ID: "1"})
	c.Invalidate(ctx, "k")

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCache_NilStore(t *testing.T) {
	c := New[item](nil)
	ctx := context.Background()

	c.Set(ctx, "k", item{ID: "1"})
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
