package logging

import (
	"context"
	"log/slog"

	"stagehand/internal/services"
)

// Standardized structured logging keys. Every component logs under the same
// names so records can be filtered by job, run, or stage across the tree.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldStage         = "stage"
	FieldRunID         = "run_id"
	FieldCorrelationID = "correlation_id"

	// FieldEventType carries a machine-searchable event name.
	FieldEventType = "event_type"
	// FieldErrorHint carries an operator remediation hint.
	FieldErrorHint = "error_hint"
	// FieldImpact states the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags records that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields collects the standard attributes recorded on ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	out := make([]slog.Attr, 0, 4)
	if id, ok := services.JobIDFromContext(ctx); ok {
		out = append(out, slog.Int64(FieldJobID, id))
	}
	for _, source := range []struct {
		key  string
		read func(context.Context) (string, bool)
	}{
		{FieldStage, services.StageFromContext},
		{FieldRunID, services.RunIDFromContext},
		{FieldCorrelationID, services.RequestIDFromContext},
	} {
		if v, ok := source.read(ctx); ok {
			out = append(out, slog.String(source.key, v))
		}
	}
	return out
}

// WithContext returns a logger carrying whatever job, stage, run, and
// correlation IDs are present in ctx.
func WithContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = NewNop()
	}
	attrs := ContextFields(ctx)
	if len(attrs) == 0 {
		return base
	}
	args := make([]any, 0, len(attrs))
	for _, a := range attrs {
		args = append(args, a)
	}
	return base.With(args...)
}
