package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	_ "github.com/glebarez/go-sqlite"
)

// SQLite keeps buckets in a SQLite database.
// Insertion order is given by an autoincrementing sequence column,
// so a replaced entry always sorts after every existing one.
type SQLite struct {
	db         *sql.DB
	writeMutex *sync.Mutex
	closed     atomic.Bool
}

type sqliteBucket struct {
	s         *SQLite
	namespace string
}

// NewSQLite opens the database with the given filename, creating the schema if needed.
// If the file name is empty, ":memory:" or "memory", a new in-memory db is opened.
func NewSQLite(filename string) (*SQLite, error) {
	inMemory := filename == "" || filename == ":memory:" || filename == "memory"
	if inMemory {
		filename = ":memory:"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("could not open sqlite db %s: %w", filename, err)
	}
	if inMemory {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS namespaces (
			name TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value BLOB,
			UNIQUE (namespace, key)
		)`,
		"CREATE INDEX IF NOT EXISTS entries_namespace_seq_idx ON entries (namespace, seq)",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("could not create schema: %w", err)
		}
	}
	if !inMemory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("could not enable WAL: %w", err)
		}
	}
	return &SQLite{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s *SQLite) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}

func (s *SQLite) Open(ctx context.Context, namespace string) (Bucket, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.ExecContext(ctx, "INSERT OR IGNORE INTO namespaces (name) VALUES (?)", namespace); err != nil {
		return nil, s.checkClosed(err)
	}
	return &sqliteBucket{s, namespace}, nil
}

func (s *SQLite) Delete(ctx context.Context, namespace string) (bool, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, s.checkClosed(err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE namespace = ?", namespace); err != nil {
		return false, err
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM namespaces WHERE name = ?", namespace)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, tx.Commit()
}

func (b *sqliteBucket) Put(ctx context.Context, key string, value []byte) error {
	b.s.writeMutex.Lock()
	defer b.s.writeMutex.Unlock()
	tx, err := b.s.db.BeginTx(ctx, nil)
	if err != nil {
		return b.s.checkClosed(err)
	}
	defer tx.Rollback()
	// the bucket might have been deleted since it was opened
	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO namespaces (name) VALUES (?)", b.namespace); err != nil {
		return err
	}
	// delete first so that the new row gets a new sequence number
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE namespace = ? AND key = ?", b.namespace, key); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO entries (namespace, key, value) VALUES (?, ?, ?)",
		b.namespace, key, value,
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *sqliteBucket) Match(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.s.db.QueryRowContext(ctx,
		"SELECT value FROM entries WHERE namespace = ? AND key = ?", b.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, b.s.checkClosed(err)
	}
	return value, true, nil
}

func (b *sqliteBucket) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.s.db.QueryContext(ctx,
		"SELECT key FROM entries WHERE namespace = ? ORDER BY seq ASC", b.namespace,
	)
	if err != nil {
		return nil, b.s.checkClosed(err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (b *sqliteBucket) Delete(ctx context.Context, key string) (bool, error) {
	b.s.writeMutex.Lock()
	defer b.s.writeMutex.Unlock()
	result, err := b.s.db.ExecContext(ctx, "DELETE FROM entries WHERE namespace = ? AND key = ?", b.namespace, key)
	if err != nil {
		return false, b.s.checkClosed(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// checkClosed returns ErrClosed if err was caused by using the db after Close.
func (s *SQLite) checkClosed(err error) error {
	if err != nil && s.closed.Load() {
		return ErrClosed
	}
	return err
}
