package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/vitalsbot/core/logger"
	"github.com/m3rciful/vitalsbot/internal/metrics"
)

const component = "telemetry"

// DefaultRatePerSecond is the shared request budget toward the remote store.
const DefaultRatePerSecond = 20

// UpstreamMessage is what users see for any upstream failure.
const UpstreamMessage = "An error occurred while fetching data."

var (
	// ErrNoRows is returned by a RecordStore when the store reports "no such row".
	ErrNoRows = errors.New("telemetry: no such row")
	// ErrUpstream wraps every other store failure.
	ErrUpstream = errors.New("telemetry: upstream failure")
	// ErrInvalidQuery marks a query that cannot be planned.
	ErrInvalidQuery = errors.New("telemetry: invalid query")
)

// RecordStore executes selections against the remote store.
type RecordStore interface {
	Select(ctx context.Context, sel Selection) ([]Record, error)
}

// Options configures a Fetcher.
type Options struct {
	Tables Tables
	// Limiter is shared by every fetcher built from it. Nil builds one at RatePerSecond.
	Limiter       *rate.Limiter
	RatePerSecond float64
	Burst         int
	// Origin labels wait metrics, e.g. "interactive" or "timer".
	Origin string
}

// NewLimiter returns a limiter admitting perSecond requests per second.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = DefaultRatePerSecond
	}
	if burst <= 0 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Fetcher is the parameterized fetch capability used by both flows and the timer callback.
type Fetcher struct {
	store   RecordStore
	tables  Tables
	limiter *rate.Limiter
	origin  string
}

// NewFetcher builds a fetcher over store.
func NewFetcher(store RecordStore, opts Options) *Fetcher {
	tables := opts.Tables
	if len(tables) == 0 {
		tables = DefaultTables()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = NewLimiter(opts.RatePerSecond, opts.Burst)
	}
	origin := opts.Origin
	if origin == "" {
		origin = "interactive"
	}
	return &Fetcher{store: store, tables: tables, limiter: limiter, origin: origin}
}

// WithLimiter returns a copy that draws from l and labels its waits with origin.
func (f *Fetcher) WithLimiter(l *rate.Limiter, origin string) *Fetcher {
	cp := *f
	if l != nil {
		cp.limiter = l
	}
	if origin != "" {
		cp.origin = origin
	}
	return &cp
}

// Limiter exposes the budget this fetcher draws from.
func (f *Fetcher) Limiter() *rate.Limiter { return f.limiter }

// Tables returns the dataset to table mapping.
func (f *Fetcher) Tables() Tables { return f.tables }

// Fetch runs q and renders each record in the timezone tz.
// "No such row" yields an empty slice; any other store failure yields ErrUpstream.
func (f *Fetcher) Fetch(ctx context.Context, q Query, tz string) ([]string, error) {
	sel, err := f.tables.Plan(q)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("telemetry: wait for budget: %w", err)
	}
	metrics.RateLimitWait.WithLabelValues(f.origin).Observe(time.Since(start).Seconds())

	rows, err := f.store.Select(ctx, sel)
	metrics.FetchDuration.WithLabelValues(string(q.Dataset)).Observe(time.Since(start).Seconds())
	switch {
	case errors.Is(err, ErrNoRows):
		metrics.FetchTotal.WithLabelValues(string(q.Dataset), string(q.Mode), "empty").Inc()
		logger.Debug(ctx, component, "fetch.empty",
			slog.String("dataset", string(q.Dataset)),
			slog.String("mode", string(q.Mode)),
		)
		return []string{}, nil
	case err != nil:
		metrics.FetchTotal.WithLabelValues(string(q.Dataset), string(q.Mode), "fail").Inc()
		logger.Error(ctx, component, "fetch.fail",
			slog.String("status", "fail"),
			slog.String("dataset", string(q.Dataset)),
			slog.String("mode", string(q.Mode)),
			slog.String("table", sel.Table),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.Duration("duration", logger.Took(start)),
		)
		return nil, fmt.Errorf("%w: %s", ErrUpstream, sel.Table)
	}

	outcome := "ok"
	if len(rows) == 0 {
		outcome = "empty"
	}
	metrics.FetchTotal.WithLabelValues(string(q.Dataset), string(q.Mode), outcome).Inc()
	logger.Debug(ctx, component, "fetch.ok",
		slog.String("dataset", string(q.Dataset)),
		slog.String("mode", string(q.Mode)),
		slog.Int("records", len(rows)),
		slog.Duration("duration", logger.Took(start)),
	)

	return FormatRecords(q.Dataset, rows, LoadLocation(tz)), nil
}
