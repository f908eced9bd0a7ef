// Package sqlite implements a keyring.Keyring backed by a SQLite database.
// It is the default durable ring on hosts where the application already
// carries a local database and no OS credential service is available.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/corvidchat/authkit/pkg/keyring"
	_ "modernc.org/sqlite"
)

type Ring struct {
	db  *sql.DB
	dsn string
}

// NewRing opens (or creates) the keyring database at dsn. Use ":memory:"
// for an ephemeral ring in tests.
func NewRing(dsn string) (*Ring, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("keyring: failed to open database: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("keyring: failed to set journal mode: %w", err)
	}

	return &Ring{db: db, dsn: dsn}, nil
}

func (r *Ring) Close() error { return r.db.Close() }

// Ping verifies the database connection is still alive.
func (r *Ring) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Ring) Get(name string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM secrets WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", keyring.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring: failed to read %q: %w", name, err)
	}
	return value, nil
}

func (r *Ring) Set(name, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO secrets (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("keyring: failed to write %q: %w", name, err)
	}
	return nil
}

func (r *Ring) Delete(name string) error {
	if _, err := r.db.Exec(`DELETE FROM secrets WHERE name = ?`, name); err != nil {
		return fmt.Errorf("keyring: failed to delete %q: %w", name, err)
	}
	return nil
}
