package logging

import (
	"context"
	"log/slog"
	"slices"
	"time"
)

// Attr aliases slog.Attr so callers build fields without importing slog
// alongside this package.
type Attr = slog.Attr

func String(key, v string) Attr { return slog.String(key, v) }

func Int(key string, v int) Attr { return slog.Int(key, v) }

func Int64(key string, v int64) Attr { return slog.Int64(key, v) }

func Bool(key string, v bool) Attr { return slog.Bool(key, v) }

func Duration(key string, v time.Duration) Attr { return slog.Duration(key, v) }

// Alert marks a record for operator attention; the console handler renders
// it prominently.
func Alert(msg string) Attr { return slog.String(FieldAlert, msg) }

// Error renders err under the "error" key, tolerating nil.
func Error(err error) Attr {
	if err != nil {
		return slog.Any("error", err)
	}
	return slog.String("error", "<nil>")
}

func hasAttrKey(attrs []Attr, key string) bool {
	return slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == key })
}

// WarnWithContext logs a warning carrying event_type, error_hint, and
// impact fields, injecting defaults for any the caller left out, so WARN
// records always name the cause, the impact, and a next step.
func WarnWithContext(l *slog.Logger, msg, eventType string, attrs ...Attr) {
	if l == nil {
		return
	}
	for _, fallback := range []Attr{
		String(FieldEventType, eventType),
		String(FieldErrorHint, "check logs for details"),
		String(FieldImpact, "operation completed with warnings"),
	} {
		if !hasAttrKey(attrs, fallback.Key) {
			attrs = append(attrs, fallback)
		}
	}
	l.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(discardHandler{})
}

// discardHandler mirrors slog.DiscardHandler, which requires Go 1.24:
// it is never enabled and drops every record.
type discardHandler struct{}

func (dh discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (dh discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (dh discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return dh }
func (dh discardHandler) WithGroup(string) slog.Handler             { return dh }

// NewComponentLogger attaches the component field to a child logger; a nil
// base falls back to the no-op logger.
func NewComponentLogger(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = NewNop()
	}
	return base.With(String(FieldComponent, component))
}
