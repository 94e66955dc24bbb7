package middleware

import (
	"log/slog"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/m3rciful/vitalsbot/core/logger"
	"github.com/m3rciful/vitalsbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/vitalsbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const recentUpdatesSize = 1024

// recentUpdates holds update IDs already logged; the middleware can wrap
// several branches of one update.
var recentUpdates, _ = lru.New[int, struct{}](recentUpdatesSize)

// LoggerMiddleware binds the update's logging context and writes one
// sampled debug line on receipt.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, id := tghelpers.Bind(c)
		if seen, _ := recentUpdates.ContainsOrAdd(id.UpdateID, struct{}{}); seen || !logger.ShouldSampleDebug() {
			return next(c)
		}
		logger.Debug(ctx, "tg", "update.received", receiptAttrs(c, id)...)
		return next(c)
	}
}

func receiptAttrs(c tele.Context, id tghelpers.Identity) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if id.ChatID != 0 {
		attrs = append(attrs, slog.String("chat_type", string(id.ChatType)))
	}
	if id.Username != "" {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(id.Username, 64)))
	}

	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.Parse(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		// free text may be a profile id
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.Int("text_len", utf8.RuneCountInString(t)))
		}
	}
	return attrs
}
