// Package db provides the Postgres connection helper, schema migration, and the
// keyed JSON document table that backs the bot's data source.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// ErrDocumentNotFound is returned when no document is stored under a key.
var ErrDocumentNotFound = errors.New("document not found")

// Connect opens a Postgres connection pool for dsn. The pool is lazy; callers
// that need an early failure should PingContext.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty postgres dsn")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	database.SetMaxOpenConns(4)
	database.SetConnMaxIdleTime(5 * time.Minute)
	return database, nil
}

// Migrate applies idempotent schema changes for all required tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			key TEXT PRIMARY KEY,
			doc JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}

// GetDocument returns the raw JSON stored under key and when it was last written.
func GetDocument(ctx context.Context, db *sql.DB, key string) (json.RawMessage, time.Time, error) {
	var (
		raw     []byte
		updated sql.NullTime
	)
	err := db.QueryRowContext(ctx, `SELECT doc, updated_at FROM documents WHERE key = $1`, key).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, key)
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return json.RawMessage(raw), updated.Time, nil
}

// PutDocument stores doc under key, replacing any previous document.
func PutDocument(ctx context.Context, db *sql.DB, key string, doc json.RawMessage) error {
	if !json.Valid(doc) {
		return fmt.Errorf("document %q is not valid json", key)
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO documents(key, doc, updated_at) VALUES($1, $2::jsonb, NOW())
		 ON CONFLICT(key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		key, string(doc))
	return err
}
