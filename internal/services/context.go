package services

import "context"

type ctxKey string

const (
	jobIDKey     ctxKey = "job_id"
	stageKey     ctxKey = "stage"
	runIDKey     ctxKey = "run_id"
	requestIDKey ctxKey = "request_id"
)

func withNonEmpty(ctx context.Context, key ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key ctxKey) (string, bool) {
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithJobID records the install job identifier on the context.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext reports the install job identifier, if one was recorded.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(jobIDKey).(int64)
	return id, ok
}

// WithStage records the workflow stage name on the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return withNonEmpty(ctx, stageKey, stage)
}

// StageFromContext reports the stage name, if one was recorded.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithRunID records the install run identifier on the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return withNonEmpty(ctx, runIDKey, id)
}

// RunIDFromContext reports the install run identifier, if one was recorded.
func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, runIDKey)
}

// WithRequestID records a correlation identifier on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withNonEmpty(ctx, requestIDKey, id)
}

// RequestIDFromContext reports the correlation identifier, if one was recorded.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}
