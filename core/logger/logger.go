// Package logger is the process-wide structured logger: one line per event,
// keyed by component and event, with request, session and timer-run ids
// taken from the context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/vitalsbot/core/buildinfo"
	coreconfig "github.com/m3rciful/vitalsbot/core/config"
)

const (
	defaultDebugNum = 1
	defaultDebugDen = 50
	sinkBufferSize  = 64 * 1024
)

// sinks are the writers opened by InitLogger and released by Shutdown.
type sinks struct {
	main    *asyncWriter
	errs    *asyncWriter
	closers []io.Closer
}

var (
	initOnce sync.Once

	mu     sync.Mutex
	active *sinks

	levelVar     slog.LevelVar
	debugSampler = newRatioSampler(defaultDebugNum, defaultDebugDen)
	trace        atomic.Bool

	discard = slog.New(slog.DiscardHandler)
	root    atomic.Pointer[slog.Logger]

	// DB logs connection and pool events.
	DB = discard
	// TG logs Telegram transport events.
	TG = discard
	// MIG logs schema migrations.
	MIG = discard
	// TWire logs bot wiring: commands, routes, poller.
	TWire = discard
)

// InitLogger installs the structured handler as slog's default. Only the
// first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		if cfg == nil {
			cfg = &coreconfig.Config{}
		}
		levelVar.Set(parseLevel(cfg.Logging.Level))
		debugSampler.Set(parseDebugSample(cfg.Logging.DebugSample))
		trace.Store(isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE")))

		s, err := openSinks(cfg.Logging)
		if err != nil {
			initErr = err
			return
		}
		mu.Lock()
		active = s
		mu.Unlock()

		hc := handlerConfig{
			level:    &levelVar,
			writer:   s.main,
			format:   parseFormat(cfg.Logging),
			keyOrder: parseKeyOrder(cfg.Logging.KeysOrder),
			stacks:   parseStacks(cfg.Logging.Stacks),
		}
		if s.errs != nil {
			hc.errWriter = s.errs
		}
		l := slog.New(newStructuredHandler(hc))
		root.Store(l)
		slog.SetDefault(l)

		DB = l.With("component", "db")
		TG = l.With("component", "tg")
		MIG = l.With("component", "db.migrate")
		TWire = l.With("component", "tg.wire")

		l.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build", buildinfo.String()),
			slog.String("profile", profileName(cfg.Logging)),
			slog.String("log_level", levelVar.Level().String()),
		)
	})
	return initErr
}

// openSinks always writes to stdout; bot_file mirrors every line and
// errors_file receives ERROR lines only. An unopenable file is reported,
// not fatal.
func openSinks(cfg coreconfig.LoggingConfig) (*sinks, error) {
	s := &sinks{}
	main := []io.Writer{os.Stdout}

	dir := strings.TrimSpace(cfg.Dir)
	open := func(name string) io.Writer {
		name = strings.TrimSpace(name)
		if dir == "" || name == "" {
			return nil
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "logger: create %s: %v\n", dir, err)
			return nil
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: open %s: %v\n", name, err)
			return nil
		}
		s.closers = append(s.closers, f)
		return f
	}

	if w := open(cfg.BotFile); w != nil {
		main = append(main, w)
	}
	s.main = newAsyncWriter(main, sinkBufferSize)
	if w := open(cfg.ErrorsFile); w != nil {
		s.errs = newAsyncWriter([]io.Writer{w}, sinkBufferSize)
	}
	return s, nil
}

// Shutdown flushes and closes the sinks. Later calls are no-ops.
func Shutdown() error {
	mu.Lock()
	s := active
	active = nil
	mu.Unlock()
	if s == nil {
		return nil
	}

	var errs []error
	for _, w := range []*asyncWriter{s.main, s.errs} {
		if w == nil {
			continue
		}
		errs = append(errs, w.Flush(), w.Close())
	}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func parseFormat(cfg coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	switch profileName(cfg) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

func parseKeyOrder(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			order = append(order, p)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// parseStacks keeps stack traces unless explicitly switched off.
func parseStacks(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "0", "false", "off", "no", "none":
		return false
	}
	return true
}

// parseDebugSample reads "num/den"; an empty value means the default 1/50
// and "0" disables sampling.
func parseDebugSample(raw string) (int, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultDebugNum, defaultDebugDen
	}
	num, den := parseRatioSpec(raw)
	if num == 0 && den == 0 {
		return 0, 0
	}
	if num <= 0 || den <= 0 {
		return defaultDebugNum, defaultDebugDen
	}
	return num, den
}

func profileName(cfg coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(cfg.Profile)); p != "" {
		return p
	}
	return "prod"
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Component returns the logger for one component. Before InitLogger it discards.
func Component(name string) *slog.Logger {
	l := root.Load()
	if l == nil {
		return discard
	}
	if name = strings.TrimSpace(name); name != "" {
		return l.With("component", name)
	}
	return l
}

// Event logs event at level for component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	l := Component(component)
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, level) {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	l.LogAttrs(ctx, level, event, attrs...)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
// TRACE=1 lets every line through.
func ShouldSampleDebug() bool {
	if trace.Load() {
		return true
	}
	return debugSampler.Allow()
}
