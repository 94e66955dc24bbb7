// Package remote talks to the Postgres database behind the telemetry store.
// It serves both profile lookups and telemetry selections, and shares one
// circuit breaker between them.
package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/m3rciful/vitalsbot/core/logger"
	"github.com/m3rciful/vitalsbot/internal/metrics"
	"github.com/m3rciful/vitalsbot/internal/profile"
	"github.com/m3rciful/vitalsbot/internal/telemetry"
)

const component = "remote"

// invalid_text_representation: a malformed id cannot match any profile.
const pqInvalidText = "22P02"

// Options configures a Client.
type Options struct {
	ProfilesTable string
	QueryTimeout  time.Duration
	BreakerName   string
}

// Client implements profile.Gateway and telemetry.RecordStore.
type Client struct {
	db       *sqlx.DB
	cb       *gobreaker.CircuitBreaker[any]
	name     string
	profiles string
	timeout  time.Duration
}

var (
	_ profile.Gateway       = (*Client)(nil)
	_ telemetry.RecordStore = (*Client)(nil)
)

// New wraps db.
func New(db *sqlx.DB, opts Options) *Client {
	name := opts.BreakerName
	if name == "" {
		name = "remote-store"
	}
	table := opts.ProfilesTable
	if table == "" {
		table = "user_profiles"
	}
	timeout := opts.QueryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// Absence is an answer, not a failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, telemetry.ErrNoRows) || errors.Is(err, profile.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), component, "breaker.transition",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{db: db, cb: cb, name: name, profiles: table, timeout: timeout}
}

// Ping checks connectivity; used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Lookup fetches one profile by id.
func (c *Client) Lookup(ctx context.Context, id string) (profile.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return profile.Profile{}, profile.ErrNotFound
	}
	query := c.db.Rebind(fmt.Sprintf(
		`SELECT id::text AS id, COALESCE(status, '') AS status, COALESCE(timezone, '') AS timezone, COALESCE(email, '') AS email FROM %s WHERE id = ?`,
		pq.QuoteIdentifier(c.profiles),
	))

	res, err := c.execute(ctx, func(ctx context.Context) (any, error) {
		var p profile.Profile
		err := c.db.GetContext(ctx, &p, query, id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, profile.ErrNotFound
		case isInvalidText(err):
			return nil, profile.ErrNotFound
		case err != nil:
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return profile.Profile{}, profile.ErrNotFound
		}
		logger.Error(ctx, component, "profile.lookup.fail",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return profile.Profile{}, fmt.Errorf("profile lookup: %w", err)
	}
	return res.(profile.Profile).Normalize(), nil
}

// Select runs sel and returns rows as column maps.
func (c *Client) Select(ctx context.Context, sel telemetry.Selection) ([]telemetry.Record, error) {
	query, args, err := BuildSelect(sel)
	if err != nil {
		return nil, err
	}
	query = c.db.Rebind(query)

	res, err := c.execute(ctx, func(ctx context.Context) (any, error) {
		rows, err := c.db.QueryxContext(ctx, query, args...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, telemetry.ErrNoRows
			}
			return nil, err
		}
		defer rows.Close()

		var out []telemetry.Record
		for rows.Next() {
			row := make(map[string]any)
			if err := rows.MapScan(row); err != nil {
				return nil, err
			}
			out = append(out, normalizeRow(row))
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	records, _ := res.([]telemetry.Record)
	return records, nil
}

func (c *Client) execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.cb.Execute(func() (any, error) {
		return fn(qctx)
	})
	switch {
	case err == nil:
		metrics.BreakerRequests.WithLabelValues(c.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.BreakerRequests.WithLabelValues(c.name, "rejected").Inc()
	case errors.Is(err, telemetry.ErrNoRows), errors.Is(err, profile.ErrNotFound):
		metrics.BreakerRequests.WithLabelValues(c.name, "success").Inc()
	default:
		metrics.BreakerRequests.WithLabelValues(c.name, "failure").Inc()
	}
	return res, err
}

// BuildSelect renders sel as SQL with '?' placeholders.
func BuildSelect(sel telemetry.Selection) (string, []any, error) {
	if strings.TrimSpace(sel.Table) == "" {
		return "", nil, errors.New("remote: empty table")
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(pq.QuoteIdentifier(sel.Table))

	args := make([]any, 0, len(sel.Where))
	for i, p := range sel.Where {
		op, err := sqlOp(p.Op)
		if err != nil {
			return "", nil, err
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(pq.QuoteIdentifier(p.Column))
		b.WriteString(" ")
		b.WriteString(op)
		b.WriteString(" ?")
		args = append(args, p.Value)
	}

	if sel.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(pq.QuoteIdentifier(sel.OrderBy))
		if sel.Desc {
			b.WriteString(" DESC")
		}
	}
	if sel.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", sel.Limit)
	}
	return b.String(), args, nil
}

func sqlOp(op telemetry.Op) (string, error) {
	switch op {
	case telemetry.OpEq:
		return "=", nil
	case telemetry.OpGte:
		return ">=", nil
	case telemetry.OpLte:
		return "<=", nil
	default:
		return "", fmt.Errorf("remote: unsupported operator %q", op)
	}
}

func normalizeRow(row map[string]any) telemetry.Record {
	out := make(telemetry.Record, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			out[k] = string(b)
			continue
		}
		out[k] = v
	}
	return out
}

func isInvalidText(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqInvalidText
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
