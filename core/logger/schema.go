package logger

import (
	"log/slog"
	"strings"
)

// Level names written to the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}

// enum is the closed value set of one field. Values outside it are dropped
// unless open is set, in which case they pass through lowercased.
type enum struct {
	values map[string]struct{}
	open   bool
}

func newEnum(open bool, values ...string) enum {
	e := enum{values: make(map[string]struct{}, len(values)), open: open}
	for _, v := range values {
		e.values[v] = struct{}{}
	}
	return e
}

func (e enum) normalize(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", false
	}
	if _, ok := e.values[v]; ok || e.open {
		return v, true
	}
	return "", false
}

var enums = map[string]enum{
	"status": newEnum(true, "ok", "fail", "skip", "retry", "rate_limited", "cancelled"),
	// Outcome of a handler, a flow or a timer fire.
	"outcome": newEnum(false, "ok", "fail", "cancelled", "denied", "restart", "rate_limited"),
}

// defaultKeyOrder puts correlation first and bulky fields last; unlisted
// keys follow in lexical order.
var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"outcome",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"session_id",
	"timer_run",
	"handler",
	"cb_key",
	"flow",
	"state",
	"profile_id",
	"dataset",
	"mode",
	"kind",
	"timer_id",
	"next_fire",
	"duration_ms",
	"wait_ms",
	"messages",
	"kb",
	"count",
	"records",
	"listen",
	"target",
	"breaker",
	"attempts",
	"backoff_ms",
	"err",
	"err_code",
	"stack",
}
