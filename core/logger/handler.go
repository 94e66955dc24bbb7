package logger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

type logFormat uint8

const (
	formatJSON logFormat = iota
	formatKV
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

// lineWriter takes ownership of one complete, newline-terminated line.
type lineWriter interface {
	Write(line []byte) error
}

type handlerConfig struct {
	level  slog.Leveler
	writer lineWriter
	// errWriter also receives ERROR lines when set.
	errWriter lineWriter
	format    logFormat
	keyOrder  []string
	// stacks keeps the stack field.
	stacks bool
}

// fields is one event before encoding. Keys are flat; groups are joined with dots.
type fields map[string]any

type structuredHandler struct {
	cfg    handlerConfig
	preset fields
	prefix string
}

var _ slog.Handler = (*structuredHandler)(nil)

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = defaultKeyOrder
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}

	f := make(fields, len(h.preset)+r.NumAttrs()+8)
	maps.Copy(f, h.preset)
	ts := r.Time.UTC()
	f["ts"] = ts.Truncate(time.Millisecond).Format(tsLayout)
	f["level"] = levelName(r.Level)
	if h.cfg.format == formatJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(h.prefix, a)
		return true
	})
	f.fromContext(ctx)
	f.finish(r.Message, h.cfg.format == formatJSON, h.cfg.stacks)

	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)
	if err := f.encode(buf, h.cfg.format, h.cfg.keyOrder); err != nil {
		return err
	}
	buf.WriteByte('\n')
	line := bytes.Clone(buf.Bytes())

	err := h.cfg.writer.Write(line)
	if h.cfg.errWriter != nil && r.Level >= slog.LevelError {
		err = errors.Join(err, h.cfg.errWriter.Write(line))
	}
	return err
}

// WithAttrs flattens attrs once under the current group prefix.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.preset = make(fields, len(h.preset)+len(attrs))
	maps.Copy(clone.preset, h.preset)
	for _, a := range attrs {
		clone.preset.add(h.prefix, a)
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix += "." + name
	}
	return &clone
}

func (f fields) add(prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := a.Key
	if prefix != "" {
		if key == "" {
			key = prefix
		} else {
			key = prefix + "." + key
		}
	}
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			f.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := normalizeValue(key, v); ok {
		f[k] = val
	}
}

// normalizeValue maps v onto the types the encoders know: string, bool,
// int64, uint64 and float64. Durations become whole milliseconds under a
// key ending in _ms. Empty strings are dropped.
func normalizeValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		s := strings.TrimSpace(v.String())
		return key, s, s != ""
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return msKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return msKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		s := strings.TrimSpace(x.String())
		return key, s, s != ""
	default:
		return key, fmt.Sprint(x), true
	}
}

func msKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

// setDefault stores v unless key is present or v is a zero id.
func (f fields) setDefault(key string, v any) {
	if _, ok := f[key]; ok {
		return
	}
	switch x := v.(type) {
	case string:
		if x == "" {
			return
		}
	case int64:
		if x == 0 {
			return
		}
	}
	f[key] = v
}

func (f fields) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	f.setDefault("rid", RIDFrom(ctx))
	f.setDefault("update_id", int64(UpdateIDFrom(ctx)))
	f.setDefault("user_id", UserIDFrom(ctx))
	f.setDefault("chat_id", ChatIDFrom(ctx))
	f.setDefault("handler", HandlerFrom(ctx))
	f.setDefault("session_id", SessionIDFrom(ctx))
	f.setDefault("timer_run", TimerRunFrom(ctx))
}

// finish fills event and component, compacts rid and applies the enums.
func (f fields) finish(msg string, keepFullRID, stacks bool) {
	if rid, ok := f["rid"].(string); ok {
		if compact := CompactRID(rid); compact != rid {
			if keepFullRID {
				f.setDefault("rid_full", rid)
			}
			f["rid"] = compact
		}
	}
	if ev, _ := f["event"].(string); ev == "" {
		if msg == "" {
			msg = "unknown"
		}
		f["event"] = msg
	}
	if c, _ := f["component"].(string); c == "" {
		f["component"] = "app"
	}
	for key, e := range enums {
		s, ok := f[key].(string)
		if !ok {
			continue
		}
		if v, keep := e.normalize(s); keep {
			f[key] = v
		} else {
			delete(f, key)
		}
	}
	if !stacks {
		delete(f, "stack")
	}
}

func (f fields) keys(order []string) []string {
	out := make([]string, 0, len(f))
	seen := make(map[string]bool, len(f))
	for _, k := range order {
		if _, ok := f[k]; ok && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(f)-len(out))
	for k := range f {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func (f fields) encode(buf *bytes.Buffer, format logFormat, order []string) error {
	keys := f.keys(order)
	if format == formatKV {
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(k)
			buf.WriteByte('=')
			buf.WriteString(kvValue(f[k]))
		}
		return nil
	}

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := json.Marshal(f[k])
		if err != nil {
			return fmt.Errorf("logger: encode %s: %w", k, err)
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return nil
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
