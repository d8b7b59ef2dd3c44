package logging

import (
	"context"
	"log/slog"
)

// minLevelHandler raises the minimum level for one logger while the wrapped
// handler keeps whatever verbosity the process was configured with.
type minLevelHandler struct {
	inner slog.Handler
	min   slog.Level
}

func (h minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.inner.Enabled(ctx, level)
}

func (h minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.inner.Handle(ctx, record)
}

func (h minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return minLevelHandler{inner: h.inner.WithAttrs(attrs), min: h.min}
}

func (h minLevelHandler) WithGroup(name string) slog.Handler {
	return minLevelHandler{inner: h.inner.WithGroup(name), min: h.min}
}

func (h minLevelHandler) CloneWithLevel(level slog.Level) slog.Handler {
	return minLevelHandler{inner: h.inner, min: level}
}

// WithLevelOverride returns a logger enforcing level as the minimum while
// keeping existing attributes and handler wiring. Overriding an already
// overridden logger swaps the level instead of stacking handlers.
func WithLevelOverride(base *slog.Logger, level slog.Level) *slog.Logger {
	if base == nil {
		return NewNop()
	}
	type levelCloner interface {
		CloneWithLevel(slog.Level) slog.Handler
	}
	if c, ok := base.Handler().(levelCloner); ok {
		return slog.New(c.CloneWithLevel(level))
	}
	return slog.New(minLevelHandler{inner: base.Handler(), min: level})
}
