package kv

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
)

const docKeyPrefix = "doc:"

// BadgerStore keeps documents as single values in a badger database.
type BadgerStore struct {
	db    *badger.DB
	owned bool
}

// OpenBadger opens (or creates) a badger database in dir. The store owns it.
func OpenBadger(dir string) (*BadgerStore, error) {
	if dir == "" {
		return nil, errors.New("kv: badger backend requires a directory")
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("kv: open badger %s: %w", dir, err)
	}
	return &BadgerStore{db: db, owned: true}, nil
}

// NewBadgerStore wraps an existing database. Close leaves it open.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func docKey(name string) []byte {
	return []byte(docKeyPrefix + name)
}

// Load reads the named document.
func (s *BadgerStore) Load(_ context.Context, name string) (Document, error) {
	doc := Document{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return nil
			}
			return json.Unmarshal(val, &doc)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badger get %s: %w", name, err)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

// Save replaces the named document.
func (s *BadgerStore) Save(_ context.Context, name string, doc Document) error {
	if doc == nil {
		doc = Document{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(name), raw)
	})
}

// Close closes the database when the store opened it.
func (s *BadgerStore) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
