// Package cache keeps recently fetched backend data for a short time so list
// pages render without a round trip. Entries are advisory: a failing store
// never fails the caller.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTTL is how long an entry is served before it counts as stale.
const DefaultTTL = 5 * time.Minute

// Entry is one stored value and when it was written.
type Entry struct {
	Value     []byte    `json:"value"`
	WrittenAt time.Time `json:"written_at"`
}

// Store persists raw cache entries.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
	Delete(ctx context.Context, key string) error
}

// ListKey is the key of an entity's list cache for a user.
func ListKey(entity, userID string) string {
	return entity + ":list:" + userID
}

// RecordKey is the key of a single record's cache for a user.
func RecordKey(entity, id, userID string) string {
	return entity + ":" + id + ":" + userID
}

// Cache is a typed JSON view over a Store with a freshness window.
type Cache[T any] struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
	log zerolog.Logger
}

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for swallowed store errors.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// New wraps store. A nil store yields a cache that never hits.
func New[T any](store Store, opts ...Option) *Cache[T] {
	o := options{ttl: DefaultTTL, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{store: store, ttl: o.ttl, now: o.now, log: o.log}
}

// Get returns the cached value when present and fresh. Missing, stale,
// undecodable and unreadable entries all report false.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	if c == nil || c.store == nil {
		return zero, false
	}

	e, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return zero, false
	}
	if !ok {
		return zero, false
	}
	if c.now().Sub(e.WrittenAt) > c.ttl {
		return zero, false
	}

	var v T
	if err := json.Unmarshal(e.Value, &v); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
		return zero, false
	}
	return v, true
}

// Set stores v under key, stamped with the current time.
func (c *Cache[T]) Set(ctx context.Context, key string, v T) {
	if c == nil || c.store == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.store.Set(ctx, key, Entry{Value: data, WrittenAt: c.now()}); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Invalidate drops key.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}
