package middleware

import (
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/m3rciful/vitalsbot/core/logger"
	tghelpers "github.com/m3rciful/vitalsbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const rateLimitChats = 4096

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the sustained spacing between updates of one chat.
	Interval time.Duration
	// Burst is how many updates may arrive back to back; 0 means 1.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// updateKind names an update for exclusions and logs.
func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	default:
		return "other"
	}
}

// RateLimitMiddleware returns a middleware that throttles updates per chat with
// a token bucket. Limiters of the least recently active chats are evicted.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	var mu sync.Mutex
	limiters, _ := lru.New[int64, *rate.Limiter](rateLimitChats)

	limiterFor := func(sid int64) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		if l, ok := limiters.Get(sid); ok {
			return l
		}
		l := rate.NewLimiter(rate.Every(opts.Interval), burst)
		limiters.Add(sid, l)
		return l
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sid := tghelpers.SessionID(c)
			if sid == 0 || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			if limiterFor(sid).Allow() {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "rate_limit",
				slog.Int64("session_id", sid),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
