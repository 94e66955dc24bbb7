package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
)

const (
	selectDocument = `SELECT body FROM kv_documents WHERE name = ?`
	upsertDocument = `INSERT INTO kv_documents (name, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
)

// SQLStore keeps documents in the kv_documents table (postgres or sqlite).
// The schema is created by the core/database migrations.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps db. Close leaves it open.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Load reads the named document.
func (s *SQLStore) Load(ctx context.Context, name string) (Document, error) {
	var body string
	err := s.db.GetContext(ctx, &body, s.db.Rebind(selectDocument), name)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	if strings.TrimSpace(body) == "" {
		return Document{}, nil
	}
	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Save upserts the named document.
func (s *SQLStore) Save(ctx context.Context, name string, doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upsertDocument), name, string(raw), time.Now().UTC().Unix()); err != nil {
		return fmt.Errorf("upsert %s: %w", name, err)
	}
	return nil
}

// Close is a no-op; the database handle belongs to the caller.
func (s *SQLStore) Close() error { return nil }
