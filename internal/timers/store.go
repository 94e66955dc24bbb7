package timers

import (
	"context"

	"github.com/m3rciful/vitalsbot/internal/kv"
)

// Document is the name of the persisted timer map.
const Document = "timer"

// Store persists at most one Record per session.
type Store struct {
	m *kv.Map[Record]
}

// NewStore binds a Store to kv.
func NewStore(store kv.Store) *Store {
	return &Store{m: kv.NewMap[Record](store, Document)}
}

// All returns every decodable record.
func (s *Store) All(ctx context.Context) (map[int64]Record, error) {
	return s.m.Load(ctx)
}

// Get returns the record for sid.
func (s *Store) Get(ctx context.Context, sid int64) (Record, bool, error) {
	return s.m.Get(ctx, sid)
}

// Put replaces the record for sid.
func (s *Store) Put(ctx context.Context, sid int64, rec Record) error {
	return s.m.Put(ctx, sid, rec)
}

// Delete removes the record for sid and reports whether one existed.
func (s *Store) Delete(ctx context.Context, sid int64) (bool, error) {
	return s.m.Delete(ctx, sid)
}

// DeleteIf removes the record for sid only while it is still the record with id.
func (s *Store) DeleteIf(ctx context.Context, sid int64, id string) (bool, error) {
	var deleted bool
	err := s.m.Update(ctx, func(entries map[int64]Record) bool {
		rec, ok := entries[sid]
		if !ok || rec.ID != id {
			return false
		}
		delete(entries, sid)
		deleted = true
		return true
	})
	return deleted, err
}

// DeleteMany removes several sessions with a single write.
func (s *Store) DeleteMany(ctx context.Context, sids []int64) (int, error) {
	var n int
	err := s.m.Update(ctx, func(entries map[int64]Record) bool {
		for _, sid := range sids {
			if _, ok := entries[sid]; ok {
				delete(entries, sid)
				n++
			}
		}
		return n > 0
	})
	return n, err
}
