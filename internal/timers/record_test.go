package timers

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/vitalsbot/internal/telemetry"
)

func TestNewRecord(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := telemetry.Query{Dataset: telemetry.DatasetHourly, Mode: telemetry.ModeLatest, Limit: 3}

	one, err := NewRecord(KindOneShot, now, 15, q)
	require.NoError(t, err)
	require.NotNil(t, one.DueAt)
	assert.Equal(t, now.Add(15*time.Minute), *one.DueAt)
	assert.Nil(t, one.FirstDueAt)
	assert.NotEmpty(t, one.ID)

	rep, err := NewRecord(KindPeriodic, now, 15, q)
	require.NoError(t, err)
	require.NotNil(t, rep.FirstDueAt)
	assert.Equal(t, now.Add(15*time.Minute), *rep.FirstDueAt)
	assert.Equal(t, int64(900), rep.IntervalSeconds)
	assert.Equal(t, 15*time.Minute, rep.Interval())
	assert.NotEqual(t, one.ID, rep.ID)

	_, err = NewRecord(KindOneShot, now, 0, q)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = NewRecord(KindPeriodic, now, MaxMinutes+1, q)
	assert.ErrorIs(t, err, ErrInvalidRecord)
	_, err = NewRecord(KindOneShot, now, 200_000_000, q)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	year, err := NewRecord(KindPeriodic, now, MaxMinutes, q)
	require.NoError(t, err)
	assert.True(t, year.FirstDueAt.After(now))
	assert.Equal(t, int64(MaxMinutes*60), year.IntervalSeconds)

	_, err = NewRecord("weekly", now, 5, q)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	_, err = NewRecord(KindOneShot, now, 5, telemetry.Query{Dataset: telemetry.DatasetHourly, Mode: telemetry.ModeLatest})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestRecordJSONShape(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rec, err := NewRecord(KindPeriodic, now, 1, telemetry.Query{Dataset: telemetry.DatasetDaily, Mode: telemetry.ModeLast})
	require.NoError(t, err)

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "periodic", fields["kind"])
	assert.Equal(t, "2024-01-01T12:01:00Z", fields["first_due_at"])
	assert.EqualValues(t, 60, fields["interval_seconds"])
	assert.NotContains(t, fields, "due_at")
	assert.Equal(t, map[string]any{"dataset": "daily", "mode": "last"}, fields["query"])
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("one-shot")
	assert.True(t, ok)
	assert.Equal(t, KindOneShot, k)

	_, ok = ParseKind("repeating")
	assert.False(t, ok)
}
