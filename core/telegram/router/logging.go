package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/vitalsbot/core/logger"
	tghelpers "github.com/m3rciful/vitalsbot/core/telegram/helpers"
	"github.com/m3rciful/vitalsbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

const errTextLimit = 256

// handle runs fn as handlerName and writes the handler.handled summary.
func handle(c tele.Context, handlerName string, fn func() error, extras ...slog.Attr) error {
	ctx := tghelpers.WithHandler(c, handlerName)
	start := time.Now()
	err := fn()

	outcome := logger.Outcome(err)
	msgs, kb := middleware.GetCounters(c)
	attrs := make([]slog.Attr, 0, 8+len(extras))
	attrs = append(attrs,
		slog.String("status", outcome),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), errTextLimit)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.Event(ctx, "tg", level, "handler.handled", append(attrs, extras...)...)
	return err
}

// skipped records an update no handler took.
func skipped(c tele.Context, handlerName string) {
	logger.Debug(tghelpers.WithHandler(c, handlerName), "tg", "handler.handled",
		slog.String("status", "skip"),
		slog.String("outcome", logger.Outcome(nil)),
	)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode gives err a short upper-case code for log filtering.
func errorCode(err error) string {
	var (
		coder interface{ Code() string }
		flood tele.FloodError
		api   *tele.Error
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.As(err, &flood):
		return "TG_FLOOD"
	case errors.As(err, &api):
		return fmt.Sprintf("TG_%d", api.Code)
	case errors.As(err, &coder) && strings.TrimSpace(coder.Code()) != "":
		return codeText(coder.Code())
	}
	for inner := errors.Unwrap(err); inner != nil; inner = errors.Unwrap(inner) {
		err = inner
	}
	return codeText(strings.TrimPrefix(fmt.Sprintf("%T", err), "*"))
}

func codeText(s string) string {
	if _, after, ok := strings.Cut(s, "."); ok {
		s = after
	}
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}
