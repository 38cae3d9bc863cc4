// Package store persists host state in a small SQLite key-value table.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"chatpilot/internal/domain"
)

// SQLiteKV implements domain.KVStore using SQLite. Set buffers writes in
// memory; Flush commits every dirty key in one transaction.
type SQLiteKV struct {
	db *sql.DB

	mu    sync.Mutex
	dirty map[string]json.RawMessage
}

// Open opens (or creates) the database at dbPath and runs the schema
// migration.
func Open(dbPath string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, domain.NewDomainError("store.Open", domain.ErrStore, err.Error())
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, domain.NewDomainError("store.Open", domain.ErrStore, fmt.Sprintf("set WAL mode: %v", err))
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, domain.NewDomainError("store.Open", domain.ErrStore, fmt.Sprintf("migrate: %v", err))
	}
	return &SQLiteKV{db: db, dirty: make(map[string]json.RawMessage)}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	return err
}

// Close flushes pending writes and closes the database.
func (s *SQLiteKV) Close() error {
	flushErr := s.Flush(context.Background())
	return errors.Join(flushErr, s.db.Close())
}

// Get returns the value for key. Unflushed writes are visible.
func (s *SQLiteKV) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	if v, ok := s.dirty[key]; ok {
		s.mu.Unlock()
		return append(json.RawMessage(nil), v...), true, nil
	}
	s.mu.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, domain.NewDomainError("SQLiteKV.Get", domain.ErrStore, err.Error())
	}
	return json.RawMessage(value), true, nil
}

// Set buffers value for key until the next Flush.
func (s *SQLiteKV) Set(_ context.Context, key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return domain.NewDomainError("SQLiteKV.Set", domain.ErrInvalidInput, "value is not valid JSON")
	}
	s.mu.Lock()
	s.dirty[key] = append(json.RawMessage(nil), value...)
	s.mu.Unlock()
	return nil
}

// Flush writes all buffered keys in one transaction. On failure the buffer
// is kept so a later Flush can retry.
func (s *SQLiteKV) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dirty) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewDomainError("SQLiteKV.Flush", domain.ErrStore, err.Error())
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for key, value := range s.dirty {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(value), now,
		)
		if err != nil {
			tx.Rollback()
			return domain.NewDomainError("SQLiteKV.Flush", domain.ErrStore, err.Error())
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.NewDomainError("SQLiteKV.Flush", domain.ErrStore, err.Error())
	}
	s.dirty = make(map[string]json.RawMessage)
	return nil
}

var _ domain.KVStore = (*SQLiteKV)(nil)
