// Package telemetrytest provides an in-memory RecordStore for tests.
package telemetrytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/vitalsbot/internal/telemetry"
)

// Store holds rows per table and evaluates selections in memory.
type Store struct {
	mu     sync.Mutex
	tables map[string][]telemetry.Record
	// Err, when set, is returned by every Select.
	Err error
	// Calls records every selection received.
	Calls []telemetry.Selection
}

// New returns an empty store.
func New() *Store {
	return &Store{tables: make(map[string][]telemetry.Record)}
}

// Add appends rows to table.
func (s *Store) Add(table string, rows ...telemetry.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], rows...)
}

// Select implements telemetry.RecordStore.
func (s *Store) Select(_ context.Context, sel telemetry.Selection) ([]telemetry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, sel)
	if s.Err != nil {
		return nil, s.Err
	}

	var out []telemetry.Record
	for _, row := range s.tables[sel.Table] {
		if matches(row, sel.Where) {
			out = append(out, row)
		}
	}
	if sel.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			c := compare(out[i][sel.OrderBy], out[j][sel.OrderBy])
			if sel.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if sel.Limit > 0 && len(out) > sel.Limit {
		out = out[:sel.Limit]
	}
	return out, nil
}

func matches(row telemetry.Record, preds []telemetry.Predicate) bool {
	for _, p := range preds {
		c := compare(row[p.Column], p.Value)
		switch p.Op {
		case telemetry.OpEq:
			if c != 0 {
				return false
			}
		case telemetry.OpGte:
			if c < 0 {
				return false
			}
		case telemetry.OpLte:
			if c > 0 {
				return false
			}
		}
	}
	return true
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
