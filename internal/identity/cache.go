// Package identity remembers which external user id a chat session logged in as.
package identity

import (
	"context"
	"strings"

	"github.com/m3rciful/vitalsbot/internal/kv"
)

// Document is the name of the persisted session to user id mapping.
const Document = "id_mapping"

// Cache maps session ids to external user ids. It survives restarts.
type Cache struct {
	m *kv.Map[string]
}

// New binds a Cache to store.
func New(store kv.Store) *Cache {
	return &Cache{m: kv.NewMap[string](store, Document)}
}

// Lookup returns the user id remembered for sid.
func (c *Cache) Lookup(ctx context.Context, sid int64) (string, bool, error) {
	id, ok, err := c.m.Get(ctx, sid)
	if err != nil || !ok {
		return "", false, err
	}
	id = strings.TrimSpace(id)
	return id, id != "", nil
}

// Remember stores userID for sid, replacing any previous value.
func (c *Cache) Remember(ctx context.Context, sid int64, userID string) error {
	return c.m.Put(ctx, sid, strings.TrimSpace(userID))
}

// Forget drops the mapping for sid and reports whether one existed.
func (c *Cache) Forget(ctx context.Context, sid int64) (bool, error) {
	return c.m.Delete(ctx, sid)
}

// All returns a snapshot of every mapping.
func (c *Cache) All(ctx context.Context) (map[int64]string, error) {
	return c.m.Load(ctx)
}
