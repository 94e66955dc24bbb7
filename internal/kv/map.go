package kv

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/m3rciful/vitalsbot/core/logger"
)

// Map is a typed view over one document whose keys are session ids.
// Mutations are read-modify-write and serialized within the process.
type Map[V any] struct {
	store Store
	name  string
	mu    sync.Mutex
}

// NewMap binds a typed map to the named document in store.
func NewMap[V any](store Store, name string) *Map[V] {
	return &Map[V]{store: store, name: name}
}

// Name returns the document name.
func (m *Map[V]) Name() string { return m.name }

// Load returns every decodable entry of the document.
func (m *Map[V]) Load(ctx context.Context) (map[int64]V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// Get returns the entry stored for id.
func (m *Map[V]) Get(ctx context.Context, id int64) (V, bool, error) {
	var zero V
	entries, err := m.Load(ctx)
	if err != nil {
		return zero, false, err
	}
	v, ok := entries[id]
	return v, ok, nil
}

// Update loads the document, applies fn and saves it when fn reports a change.
func (m *Map[V]) Update(ctx context.Context, fn func(entries map[int64]V) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := m.load(ctx)
	if err != nil {
		return err
	}
	if !fn(entries) {
		return nil
	}
	return m.save(ctx, entries)
}

// Put stores v under id, replacing any previous entry.
func (m *Map[V]) Put(ctx context.Context, id int64, v V) error {
	return m.Update(ctx, func(entries map[int64]V) bool {
		entries[id] = v
		return true
	})
}

// Delete removes id and reports whether it was present.
func (m *Map[V]) Delete(ctx context.Context, id int64) (bool, error) {
	var existed bool
	err := m.Update(ctx, func(entries map[int64]V) bool {
		_, existed = entries[id]
		if existed {
			delete(entries, id)
		}
		return existed
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

func (m *Map[V]) load(ctx context.Context) (map[int64]V, error) {
	doc, err := m.store.Load(ctx, m.name)
	if err != nil {
		return nil, fmt.Errorf("kv: load %s: %w", m.name, err)
	}
	out := make(map[int64]V, len(doc))
	for key, raw := range doc {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			logger.Warn(ctx, component, "entry.skip",
				slog.String("doc", m.name),
				slog.String("key", logger.SanitizeLimit(key, 64)),
				slog.String("reason", "bad_key"),
			)
			continue
		}
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			logger.Warn(ctx, component, "entry.skip",
				slog.String("doc", m.name),
				slog.Int64("session_id", id),
				slog.String("reason", "bad_value"),
				slog.String("err", err.Error()),
			)
			continue
		}
		out[id] = v
	}
	return out, nil
}

func (m *Map[V]) save(ctx context.Context, entries map[int64]V) error {
	doc := make(Document, len(entries))
	for id, v := range entries {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("kv: encode %s[%d]: %w", m.name, id, err)
		}
		doc[strconv.FormatInt(id, 10)] = raw
	}
	if err := m.store.Save(ctx, m.name, doc); err != nil {
		return fmt.Errorf("kv: save %s: %w", m.name, err)
	}
	return nil
}
