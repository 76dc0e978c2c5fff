package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/quill/internal/errors"
)

// Namespaces used in the kv table.
const (
	NamespaceCache   = "cache"
	NamespaceHandoff = "handoff"
	NamespaceSession = "session"
)

// Record is one row of the kv table.
type Record struct {
	Namespace string
	Key       string
	Value     []byte
	WrittenAt time.Time
}

// Get returns the record for (namespace, key), or nil when absent.
func Get(ctx context.Context, db *sql.DB, namespace, key string) (*Record, error) {
	query := `
		SELECT value, written_at
		FROM kv
		WHERE namespace = ? AND key = ?
	`

	var (
		value     []byte
		writtenAt int64
	)
	err := db.QueryRowContext(ctx, query, namespace, key).Scan(&value, &writtenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return &Record{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		WrittenAt: time.UnixMilli(writtenAt),
	}, nil
}

// Put inserts or replaces the record for (namespace, key).
func Put(ctx context.Context, db *sql.DB, r Record) error {
	query := `
		INSERT INTO kv (namespace, key, value, written_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			written_at = excluded.written_at
	`

	if _, err := db.ExecContext(ctx, query, r.Namespace, r.Key, r.Value, r.WrittenAt.UnixMilli()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Delete removes the record for (namespace, key). Deleting a missing key is not an error.
func Delete(ctx context.Context, db *sql.DB, namespace, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// DeletePrefix removes every record in namespace whose key starts with prefix.
// Returns the number of rows removed.
func DeletePrefix(ctx context.Context, db *sql.DB, namespace, prefix string) (int, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM kv WHERE namespace = ? AND substr(key, 1, ?) = ?`,
		namespace, len(prefix), prefix,
	)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// Take reads and deletes a record in one transaction, so a single-use
// record is handed to exactly one reader. Returns nil when absent.
func Take(ctx context.Context, db *sql.DB, namespace, key string) (*Record, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		value     []byte
		writtenAt int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT value, written_at FROM kv WHERE namespace = ? AND key = ?`,
		namespace, key,
	).Scan(&value, &writtenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &Record{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		WrittenAt: time.UnixMilli(writtenAt),
	}, nil
}

// PurgeOlderThan removes records in namespace written before cutoff whose
// key starts with prefix. An empty prefix matches every key.
func PurgeOlderThan(ctx context.Context, db *sql.DB, namespace, prefix string, cutoff time.Time) (int, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM kv WHERE namespace = ? AND written_at < ? AND substr(key, 1, ?) = ?`,
		namespace, cutoff.UnixMilli(), len(prefix), prefix,
	)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}
