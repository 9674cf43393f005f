// Package credentials provides persistent CredentialStore implementations.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// SQLiteStore keeps small client-side key/value settings, the bearer
// credential among them, in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ orderstatus.CredentialStore = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the store at path. Use ":memory:" for
// a throwaway store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open credential db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("configure credential db: %w", err)
	}
	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS local_storage (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create local_storage: %w", err)
	}
	return &SQLiteStore{db: conn}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the value for key and whether it was present.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_storage (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Token returns the stored credential, or orderstatus.ErrNoCredential when
// none is stored.
func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	token, ok, err := s.Get(ctx, orderstatus.CredentialKey)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", orderstatus.ErrNoCredential
	}
	return token, nil
}
