// Package kv provides small durable document stores keyed by session id.
//
// A document is a flat JSON object. Every write rewrites the whole document,
// and readers treat a missing or empty document as an empty map.
package kv

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
)

const component = "store"

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Document is the decoded form of a stored JSON object.
type Document map[string]json.RawMessage

// Store loads and saves whole documents by name.
type Store interface {
	// Load returns the named document. A document that was never saved is empty, not an error.
	Load(ctx context.Context, name string) (Document, error)
	// Save replaces the named document.
	Save(ctx context.Context, name string, doc Document) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Dir holds JSON files for the file backend and the badger directory.
	Dir string
	// DB is required by the postgres and sqlite backends.
	DB *sqlx.DB
}

// Open builds the Store described by opts.
func Open(opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		return NewFileStore(opts.Dir), nil
	case BackendBadger:
		return OpenBadger(opts.Dir)
	case BackendPostgres, BackendSQLite:
		if opts.DB == nil {
			return nil, fmt.Errorf("kv: %s backend requires a database handle", opts.Backend)
		}
		return NewSQLStore(opts.DB), nil
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", opts.Backend)
	}
}
