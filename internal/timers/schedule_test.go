package timers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/vitalsbot/internal/telemetry"
)

func TestNextFire(t *testing.T) {
	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	interval := 10 * time.Minute

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"before first", first.Add(-3 * time.Hour), first},
		{"at first", first, first},
		{"between slots", first.Add(25 * time.Minute), first.Add(30 * time.Minute)},
		{"on a slot", first.Add(30 * time.Minute), first.Add(30 * time.Minute)},
		{"just before a slot", first.Add(29*time.Minute + 59*time.Second), first.Add(30 * time.Minute)},
		{"long downtime", first.Add(72*time.Hour + time.Second), first.Add(72*time.Hour + interval)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextFire(tt.now, first, interval))
		})
	}
}

func TestNextFireStaysPhaseLocked(t *testing.T) {
	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	interval := 7 * time.Minute

	for offset := time.Duration(0); offset < 6*time.Hour; offset += 3*time.Minute + 17*time.Second {
		now := first.Add(offset)
		next := NextFire(now, first, interval)

		assert.Zero(t, next.Sub(first)%interval, "offset %s", offset)
		assert.False(t, next.Before(now), "offset %s", offset)
		assert.LessOrEqual(t, next.Sub(now), interval, "offset %s", offset)
	}
}

func TestNextAfterIsStrictlyLater(t *testing.T) {
	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	interval := 5 * time.Minute

	assert.Equal(t, first.Add(interval), nextAfter(first, first, interval))
	assert.Equal(t, first.Add(2*interval), nextAfter(first.Add(interval+time.Second), first, interval))
	assert.Equal(t, first, nextAfter(first.Add(-time.Minute), first, interval))
}

func TestNextForRecords(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := telemetry.Query{Dataset: telemetry.DatasetDaily, Mode: telemetry.ModeLast}

	past := now.Add(-time.Second)
	_, ok := Next(Record{Kind: KindOneShot, DueAt: &past, Query: q}, now)
	assert.False(t, ok, "missed one-shot")

	exact := now
	_, ok = Next(Record{Kind: KindOneShot, DueAt: &exact, Query: q}, now)
	assert.False(t, ok, "one-shot due exactly now counts as missed")

	future := now.Add(time.Minute)
	next, ok := Next(Record{Kind: KindOneShot, DueAt: &future, Query: q}, now)
	assert.True(t, ok)
	assert.Equal(t, future, next)

	first := now.Add(-25 * time.Minute)
	next, ok = Next(Record{Kind: KindPeriodic, FirstDueAt: &first, IntervalSeconds: 600, Query: q}, now)
	assert.True(t, ok)
	assert.Equal(t, now.Add(5*time.Minute), next)
}
