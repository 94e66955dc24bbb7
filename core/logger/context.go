package logger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type ctxKey uint8

const (
	keyRID ctxKey = iota
	keyUpdate
	keySession
	keyTimerRun
	keyHandler
)

// updateMeta identifies the Telegram update being handled.
type updateMeta struct {
	updateID int
	userID   int64
	chatID   int64
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func with(ctx context.Context, k ctxKey, v any) context.Context {
	return context.WithValue(orBackground(ctx), k, v)
}

func from[T any](ctx context.Context, k ctxKey) T {
	var zero T
	if ctx == nil {
		return zero
	}
	v, _ := ctx.Value(k).(T)
	return v
}

// WithRID sets the correlation id written as rid.
func WithRID(ctx context.Context, rid string) context.Context { return with(ctx, keyRID, rid) }

func RIDFrom(ctx context.Context) string { return from[string](ctx, keyRID) }

// WithUpdateMeta records the update, user and chat ids of an incoming update.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return with(ctx, keyUpdate, updateMeta{updateID: updateID, userID: userID, chatID: chatID})
}

func UpdateIDFrom(ctx context.Context) int { return from[updateMeta](ctx, keyUpdate).updateID }
func UserIDFrom(ctx context.Context) int64 { return from[updateMeta](ctx, keyUpdate).userID }
func ChatIDFrom(ctx context.Context) int64 { return from[updateMeta](ctx, keyUpdate).chatID }

// WithSession records the conversation session id, which is the chat id.
func WithSession(ctx context.Context, sessionID int64) context.Context {
	return with(ctx, keySession, sessionID)
}

func SessionIDFrom(ctx context.Context) int64 { return from[int64](ctx, keySession) }

// WithTimerRun tags one timer fire. Fires have no update, so the run id also
// becomes the rid unless one is set.
func WithTimerRun(ctx context.Context, runID string) context.Context {
	if runID == "" {
		return orBackground(ctx)
	}
	ctx = with(ctx, keyTimerRun, runID)
	if RIDFrom(ctx) == "" {
		ctx = WithRID(ctx, runID)
	}
	return ctx
}

func TimerRunFrom(ctx context.Context) string { return from[string](ctx, keyTimerRun) }

// WithHandler names the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return orBackground(ctx)
	}
	return with(ctx, keyHandler, handler)
}

func HandlerFrom(ctx context.Context) string { return from[string](ctx, keyHandler) }

// BuildRID formats updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites a BuildRID value as dot-separated base36 segments.
// Anything else is returned trimmed but otherwise unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return rid
		}
		parts[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(parts, ".")
}
