// Package timers keeps per-session scheduled deliveries: the durable record,
// the in-memory scheduler that owns live handles, and the callback that fires them.
package timers

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/vitalsbot/internal/telemetry"
)

// Kind is either one-shot or periodic.
type Kind string

const (
	KindOneShot  Kind = "one-shot"
	KindPeriodic Kind = "periodic"
)

// ParseKind accepts a menu value.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindOneShot, KindPeriodic:
		return Kind(s), true
	default:
		return "", false
	}
}

// ErrInvalidRecord marks a record that cannot be scheduled.
var ErrInvalidRecord = errors.New("timers: invalid record")

// Record is the durable definition of a session's timer. Records are replaced, never updated.
type Record struct {
	// ID distinguishes a record from a later replacement for the same session.
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`

	DueAt *time.Time `json:"due_at,omitempty"`

	FirstDueAt      *time.Time `json:"first_due_at,omitempty"`
	IntervalSeconds int64      `json:"interval_seconds,omitempty"`

	Query     telemetry.Query `json:"query"`
	CreatedAt time.Time       `json:"created_at"`
}

// MaxMinutes bounds the delay and period of a timer to one leap year.
const MaxMinutes = 366 * 24 * 60

// NewRecord builds a record created at now. A one-shot fires once after
// minutes; a periodic timer first fires after minutes and then every minutes.
func NewRecord(kind Kind, now time.Time, minutes int, q telemetry.Query) (Record, error) {
	if minutes <= 0 || minutes > MaxMinutes {
		return Record{}, fmt.Errorf("%w: minutes must be in 1..%d", ErrInvalidRecord, MaxMinutes)
	}
	now = now.UTC()
	period := time.Duration(minutes) * time.Minute
	due := now.Add(period)

	rec := Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Query:     q,
		CreatedAt: now,
	}
	switch kind {
	case KindOneShot:
		rec.DueAt = &due
	case KindPeriodic:
		rec.FirstDueAt = &due
		rec.IntervalSeconds = int64(period / time.Second)
	}
	return rec, rec.Validate()
}

// Interval returns the period of a periodic record.
func (r Record) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

// Validate reports whether the record carries what its kind needs.
func (r Record) Validate() error {
	switch r.Kind {
	case KindOneShot:
		if r.DueAt == nil || r.DueAt.IsZero() {
			return fmt.Errorf("%w: one-shot without due_at", ErrInvalidRecord)
		}
	case KindPeriodic:
		if r.FirstDueAt == nil || r.FirstDueAt.IsZero() {
			return fmt.Errorf("%w: periodic without first_due_at", ErrInvalidRecord)
		}
		if r.IntervalSeconds <= 0 {
			return fmt.Errorf("%w: periodic without interval", ErrInvalidRecord)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, r.Kind)
	}
	if err := r.Query.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return nil
}
