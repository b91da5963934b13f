package datasource

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/luminbot/luminbot-discord/db"
	"github.com/luminbot/luminbot-discord/streams"
)

// ErrNotFound is returned when the requested data key has no document.
var ErrNotFound = errors.New("data key not found")

// Store returns the raw document stored under a key.
type Store interface {
	GetData(ctx context.Context, key string) (json.RawMessage, error)
}

// PostgresStore serves documents from the documents table.
type PostgresStore struct {
	DB *sql.DB
}

// GetData implements Store.
func (s *PostgresStore) GetData(ctx context.Context, key string) (json.RawMessage, error) {
	raw, _, err := db.GetDocument(ctx, s.DB, key)
	if errors.Is(err, db.ErrDocumentNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return raw, err
}

// PutData writes a document under key.
func (s *PostgresStore) PutData(ctx context.Context, key string, doc json.RawMessage) error {
	return db.PutDocument(ctx, s.DB, key, doc)
}

// Ping reports whether the backing database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// DocumentSource turns the document under Key into a snapshot.
type DocumentSource struct {
	Store Store
	Key   string
}

// Fetch implements streams.Source.
func (s *DocumentSource) Fetch(ctx context.Context) (streams.Snapshot, error) {
	raw, err := s.Store.GetData(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("get data %q: %w", s.Key, err)
	}
	snap, err := streams.ParseDocument(raw)
	if err != nil {
		return nil, fmt.Errorf("get data %q: %w", s.Key, err)
	}
	return snap, nil
}
