package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/m3rciful/vitalsbot/internal/telemetry"
	"github.com/m3rciful/vitalsbot/internal/telemetry/telemetrytest"
)

func hourlyRows(n int) []telemetry.Record {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]telemetry.Record, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, telemetry.Record{
			"time":        base.Add(time.Duration(i) * time.Hour),
			"bpm_avg":     float64(60 + i),
			"temperature": 36.5,
		})
	}
	return rows
}

func TestFetchHourlyLatest(t *testing.T) {
	store := telemetrytest.New()
	store.Add("followhour", hourlyRows(10)...)
	f := telemetry.NewFetcher(store, telemetry.Options{})

	q := telemetry.Query{Dataset: telemetry.DatasetHourly, Mode: telemetry.ModeLatest, Limit: 5}
	recs, err := f.Fetch(context.Background(), q, "UTC")
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Equal(t, "Time: 2024-03-01 09:00:00\nBPM: 69\nTemperature: 36.5°C", recs[0])
	assert.True(t, strings.HasPrefix(recs[4], "Time: 2024-03-01 05:00:00"))

	msg := telemetry.Compose(q, recs, false)
	assert.True(t, strings.HasPrefix(msg, "Latest 5 records from hourly:\n\n"))
	assert.Equal(t, 4, strings.Count(msg, "\n---\n"))
}

func TestFetchNoRowsIsEmptyResult(t *testing.T) {
	store := telemetrytest.New()
	store.Err = fmt.Errorf("select: %w", telemetry.ErrNoRows)
	f := telemetry.NewFetcher(store, telemetry.Options{})

	recs, err := f.Fetch(context.Background(), telemetry.Query{Dataset: telemetry.DatasetDaily, Mode: telemetry.ModeLast}, "")
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NotNil(t, recs)
}

func TestFetchUpstreamFailureIsGeneric(t *testing.T) {
	store := telemetrytest.New()
	store.Err = errors.New("connection refused")
	f := telemetry.NewFetcher(store, telemetry.Options{})

	_, err := f.Fetch(context.Background(), telemetry.Query{Dataset: telemetry.DatasetDaily, Mode: telemetry.ModeLast}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, telemetry.ErrUpstream)
	assert.NotContains(t, err.Error(), "connection refused")
}

func TestFetchInvalidQueryNeverReachesStore(t *testing.T) {
	store := telemetrytest.New()
	f := telemetry.NewFetcher(store, telemetry.Options{})

	_, err := f.Fetch(context.Background(), telemetry.Query{Dataset: telemetry.DatasetHourly, Mode: telemetry.ModeLatest}, "")
	assert.ErrorIs(t, err, telemetry.ErrInvalidQuery)
	assert.Empty(t, store.Calls)
}

func TestFetchQueuesOnSharedBudget(t *testing.T) {
	store := telemetrytest.New()
	store.Add("onetest", telemetry.Record{"date": "2024-03-01", "bpm_avg": 70.0, "temperature": 36.6})

	limiter := rate.NewLimiter(rate.Limit(200), 1)
	interactive := telemetry.NewFetcher(store, telemetry.Options{Limiter: limiter})
	timer := interactive.WithLimiter(nil, "timer")
	require.Same(t, interactive.Limiter(), timer.Limiter())

	q := telemetry.Query{Dataset: telemetry.DatasetDaily, Mode: telemetry.ModeLast}
	for i := 0; i < 4; i++ {
		f := interactive
		if i%2 == 1 {
			f = timer
		}
		recs, err := f.Fetch(context.Background(), q, "")
		require.NoError(t, err, "call %d must wait, not fail", i)
		require.Len(t, recs, 1)
	}
	assert.Len(t, store.Calls, 4)
}

func TestFetchHonoursCancelledContext(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(0.001), 1)
	require.True(t, limiter.Allow())
	f := telemetry.NewFetcher(telemetrytest.New(), telemetry.Options{Limiter: limiter})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, telemetry.Query{Dataset: telemetry.DatasetDaily, Mode: telemetry.ModeLast}, "")
	assert.Error(t, err)
}
