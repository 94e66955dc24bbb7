package timers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/vitalsbot/core/logger"
	"github.com/m3rciful/vitalsbot/internal/chat"
	"github.com/m3rciful/vitalsbot/internal/metrics"
	"github.com/m3rciful/vitalsbot/internal/profile"
	"github.com/m3rciful/vitalsbot/internal/telemetry"
)

// Notices pushed when a timer cannot deliver data.
const (
	MsgNoProfile    = "No profile found. Please login with /data first."
	MsgProfileError = "Error fetching profile."
)

// Identities resolves the profile id a session logged in with.
type Identities interface {
	Lookup(ctx context.Context, sid int64) (string, bool, error)
}

// Fetcher runs a query for display in tz.
type Fetcher interface {
	Fetch(ctx context.Context, q telemetry.Query, tz string) ([]string, error)
}

// Callback delivers a due timer: it resolves the session's profile, runs the
// stored query and pushes the result. A one-shot record is removed after every
// outcome.
type Callback struct {
	Identities Identities
	Profiles   profile.Gateway
	Fetcher    Fetcher
	Sender     chat.Sender
	Store      *Store
}

var _ Firer = (*Callback)(nil)

// Fire implements Firer.
func (c *Callback) Fire(ctx context.Context, sid int64, rec Record) {
	ctx = logger.WithTimerRun(ctx, uuid.NewString())
	start := time.Now()

	outcome := c.deliver(ctx, sid, rec)
	metrics.TimerFires.WithLabelValues(string(rec.Kind), outcome).Inc()

	if rec.Kind == KindOneShot && c.Store != nil {
		if _, err := c.Store.DeleteIf(ctx, sid, rec.ID); err != nil {
			metrics.StoreWriteFailures.WithLabelValues(Document).Inc()
			logger.Warn(ctx, component, "timer.fire.cleanup",
				slog.String("status", "fail"),
				slog.String("timer_id", rec.ID),
				slog.String("err", err.Error()),
			)
		}
	}

	logger.Info(ctx, component, "timer.fire",
		slog.Int64("session_id", sid),
		slog.String("timer_id", rec.ID),
		slog.String("kind", string(rec.Kind)),
		slog.String("dataset", string(rec.Query.Dataset)),
		slog.String("outcome", outcome),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
}

func (c *Callback) deliver(ctx context.Context, sid int64, rec Record) string {
	profileID, ok, err := c.Identities.Lookup(ctx, sid)
	if err != nil {
		logger.Warn(ctx, component, "timer.identity.lookup",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	if !ok {
		c.push(ctx, sid, MsgNoProfile)
		return "fail"
	}

	p, err := c.Profiles.Lookup(ctx, profileID)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			logger.Warn(ctx, component, "timer.profile.lookup",
				slog.String("status", "fail"),
				slog.String("profile_id", profileID),
				slog.String("err", err.Error()),
			)
		}
		c.push(ctx, sid, MsgProfileError)
		return "fail"
	}

	records, err := c.Fetcher.Fetch(ctx, rec.Query, p.Timezone)
	if err != nil {
		c.push(ctx, sid, telemetry.UpstreamMessage)
		return "fail"
	}
	c.push(ctx, sid, telemetry.Compose(rec.Query, records, true))
	return "ok"
}

func (c *Callback) push(ctx context.Context, sid int64, text string) {
	if err := c.Sender.Send(ctx, sid, chat.Text(text)); err != nil {
		logger.Warn(ctx, component, "timer.push",
			slog.String("status", "fail"),
			slog.Int64("session_id", sid),
			slog.String("err", err.Error()),
		)
	}
}
