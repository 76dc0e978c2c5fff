package cache

import (
	"context"
	"database/sql"

	"github.com/hpungsan/quill/internal/db"
)

// SQLiteStore keeps entries in the local database's cache namespace.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an initialized database (see db.Init).
func NewSQLiteStore(database *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	rec, err := db.Get(ctx, s.db, db.NamespaceCache, key)
	if err != nil {
		return Entry{}, false, err
	}
	if rec == nil {
		return Entry{}, false, nil
	}
	return Entry{Value: rec.Value, WrittenAt: rec.WrittenAt}, true, nil
}

// Set implements Store.
func (s *SQLiteStore) Set(ctx context.Context, key string, e Entry) error {
	return db.Put(ctx, s.db, db.Record{
		Namespace: db.NamespaceCache,
		Key:       key,
		Value:     e.Value,
		WrittenAt: e.WrittenAt,
	})
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	return db.Delete(ctx, s.db, db.NamespaceCache, key)
}

// Clear removes every cache entry whose key starts with prefix ("" clears all).
func (s *SQLiteStore) Clear(ctx context.Context, prefix string) (int, error) {
	return db.DeletePrefix(ctx, s.db, db.NamespaceCache, prefix)
}
