package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders each record as a single human-readable line:
// timestamp, level, optional component prefix, message, then key=value
// attributes. Attributes added through WithAttrs are flattened once up
// front, so Handle only walks the record's own attrs.
type consoleHandler struct {
	mu         *sync.Mutex
	out        io.Writer
	leveler    *slog.LevelVar
	withSource bool

	pairs []pair
	group string
}

type pair struct {
	key string
	val slog.Value
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, out: w, leveler: lvl, withSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.leveler.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	pairs := make([]pair, 0, len(h.pairs)+record.NumAttrs())
	pairs = append(pairs, h.pairs...)
	record.Attrs(func(a slog.Attr) bool {
		pairs = flatten(pairs, h.group, a)
		return true
	})
	comp, pairs := splitComponent(pairs)

	var b bytes.Buffer
	h.writeHeader(&b, record, comp)
	for _, p := range pairs {
		b.WriteByte(' ')
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(formatValue(p.val))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(b.Bytes())
	return err
}

func (h *consoleHandler) writeHeader(b *bytes.Buffer, record slog.Record, comp string) {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteByte(' ')

	if comp != "" {
		b.WriteString(comp)
		b.WriteString(": ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	b.WriteString(msg)

	if h.withSource {
		if src := recordSource(record); src != nil {
			fmt.Fprintf(b, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
}

// recordSource mirrors slog.Record.Source, which requires Go 1.25: it
// resolves the record's PC to a source location, returning nil when the
// record carries no caller information.
func recordSource(r slog.Record) *slog.Source {
	fs := runtime.CallersFrames([]uintptr{r.PC})
	f, _ := fs.Next()
	if f.Function == "" && f.File == "" && f.Line == 0 {
		return nil
	}
	return &slog.Source{Function: f.Function, File: f.File, Line: f.Line}
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := h.clone()
	for _, a := range attrs {
		next.pairs = flatten(next.pairs, h.group, a)
	}
	return next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.group = joinKey(h.group, name)
	return next
}

// clone shares the writer and its mutex so every derived handler keeps
// serializing writes to the same destination.
func (h *consoleHandler) clone() *consoleHandler {
	return &consoleHandler{
		mu:         h.mu,
		out:        h.out,
		leveler:    h.leveler,
		withSource: h.withSource,
		pairs:      slices.Clone(h.pairs),
		group:      h.group,
	}
}

// splitComponent pulls the first component attribute out of pairs so the
// header can print it as a message prefix instead of a trailing key=value.
func splitComponent(pairs []pair) (string, []pair) {
	comp := ""
	kept := pairs[:0]
	for _, p := range pairs {
		if p.key == FieldComponent {
			if comp == "" {
				comp = plainString(p.val)
			}
			continue
		}
		kept = append(kept, p)
	}
	return comp, kept
}

// flatten resolves the attribute and appends it to dst under the dotted
// prefix, recursing through groups. Empty attrs and empty keys are dropped.
func flatten(dst []pair, prefix string, a slog.Attr) []pair {
	if a.Equal(slog.Attr{}) {
		return dst
	}
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		for _, nested := range a.Value.Group() {
			dst = flatten(dst, joinKey(prefix, a.Key), nested)
		}
		return dst
	}
	key := joinKey(prefix, a.Key)
	if key == "" {
		return dst
	}
	return append(dst, pair{key: key, val: a.Value})
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// plainString renders v without the quoting applied to key=value output.
func plainString(v slog.Value) string {
	v = v.Resolve()
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return formatValue(v)
}

func formatValue(v slog.Value) string {
	v = v.Resolve()
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
			return quote(err.Error())
		}
		return quote(fmt.Sprint(v.Any()))
	default:
		return quote(v.String())
	}
}

// quote wraps s in Go quoting when it would break key=value parsing.
func quote(s string) string {
	if s == "" {
		return `""`
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return strconv.Quote(s)
		}
	}
	return s
}

func levelLabel(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
