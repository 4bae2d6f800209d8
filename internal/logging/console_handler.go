package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
)

// scopeKeys are lifted out of the trailing attributes and rendered together
// right after the message, in this order.
var scopeKeys = []struct {
	field string
	label string
}{
	{FieldGroupID, "group"},
	{FieldBookID, "book"},
	{FieldReaderID, "reader"},
}

// consoleHandler renders one human-readable line per record:
//
//	2026-01-02T15:04:05Z INFO matching: group formed {group=1b2c3d4e book=9f8e7d6c} members=3
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     *slog.LevelVar
	bound     []field
	prefix    []string
	addSource bool
	color     bool
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource, color bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, level: lvl, addSource: addSource, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]field, 0, len(h.bound)+record.NumAttrs())
	fields = append(fields, h.bound...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.prefix, attr)
		return true
	})

	component, scope, rest := splitFields(fields)

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var line bytes.Buffer
	line.Grow(96 + 24*len(rest))
	line.WriteString(ts.UTC().Format(time.RFC3339))
	line.WriteByte(' ')
	line.WriteString(h.label(record.Level))
	line.WriteByte(' ')
	if component != "" {
		line.WriteString(component)
		line.WriteString(": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	line.WriteString(msg)

	if len(scope) > 0 {
		line.WriteString(" {")
		line.WriteString(strings.Join(scope, " "))
		line.WriteByte('}')
	}

	if h.addSource {
		if src := record.Source(); src != nil {
			fmt.Fprintf(&line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}

	for _, f := range rest {
		line.WriteByte(' ')
		line.WriteString(f.key)
		line.WriteByte('=')
		line.WriteString(renderValue(f.value, true))
	}
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(line.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.derive()
	for _, attr := range attrs {
		next.bound = appendField(next.bound, h.prefix, attr)
	}
	return next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.derive()
	next.prefix = append(next.prefix, name)
	return next
}

func (h *consoleHandler) derive() *consoleHandler {
	next := *h
	next.bound = append([]field(nil), h.bound...)
	next.prefix = append([]string(nil), h.prefix...)
	return &next
}

func (h *consoleHandler) label(level slog.Level) string {
	text, color := "DEBUG", ansiGray
	switch {
	case level >= slog.LevelError:
		text, color = "ERROR", ansiRed
	case level >= slog.LevelWarn:
		text, color = "WARN", ansiYellow
	case level >= slog.LevelInfo:
		text, color = "INFO", ansiCyan
	}
	if !h.color {
		return text
	}
	return color + text + ansiReset
}

// splitFields pulls the component and entity identifiers out of fields. The
// last value bound for a scope key wins so a request-scoped logger can narrow
// a broader one.
func splitFields(fields []field) (string, []string, []field) {
	var component string
	ids := make(map[string]string, len(scopeKeys))
	rest := fields[:0:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			if component == "" {
				component = renderValue(f.value, false)
			}
		case FieldGroupID, FieldBookID, FieldReaderID:
			ids[f.key] = renderValue(f.value, false)
		default:
			if f.key != "" {
				rest = append(rest, f)
			}
		}
	}
	var scope []string
	for _, k := range scopeKeys {
		if id := ids[k.field]; id != "" {
			scope = append(scope, k.label+"="+ShortID(id))
		}
	}
	return component, scope, rest
}

func appendField(dst []field, prefix []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		nested := prefix
		if attr.Key != "" {
			nested = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, member := range attr.Value.Group() {
			dst = appendField(dst, nested, member)
		}
		return dst
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	return append(dst, field{key: key, value: attr.Value})
}

// ShortID trims a canonical UUID to its first block. Other identifiers are
// returned unchanged.
func ShortID(id string) string {
	if len(id) == 36 && strings.Count(id, "-") == 4 {
		return id[:8]
	}
	return id
}

func renderValue(v slog.Value, quote bool) string {
	var s string
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}
	if quote && needsQuoting(s) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsFunc(s, func(r rune) bool {
		return r <= ' ' || r == '=' || r == '"'
	})
}
