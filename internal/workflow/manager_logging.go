package workflow

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stagehand/internal/logging"
	"stagehand/internal/registry"
	"stagehand/internal/services"
)

func loggerOrNop(l *slog.Logger) *slog.Logger {
	if l == nil {
		return logging.NewNop()
	}
	return l
}

func (m *Manager) runnerLogger() *slog.Logger {
	return loggerOrNop(m.logger).With(logging.String(logging.FieldComponent, "workflow-runner"))
}

// stageLogger derives a logger carrying the job context, honoring any
// per-stage level override from the configuration.
func (m *Manager) stageLogger(ctx context.Context) *slog.Logger {
	lg := logging.WithContext(ctx, loggerOrNop(m.logger))
	if m.cfg == nil {
		return lg
	}
	stage, ok := services.StageFromContext(ctx)
	if !ok {
		return lg
	}
	if level, ok := stageLevelOverride(m.cfg.Logging.StageOverrides, stage); ok {
		lg = logging.WithLevelOverride(lg, level)
	}
	return lg
}

// stageLevelOverride resolves the configured log level for a stage, matching
// stage names case-insensitively. Unrecognized level names mean info.
func stageLevelOverride(overrides map[string]string, stage string) (slog.Level, bool) {
	want := strings.ToLower(strings.TrimSpace(stage))
	if want == "" || len(overrides) == 0 {
		return 0, false
	}
	for name, level := range overrides {
		if strings.ToLower(strings.TrimSpace(name)) != want {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(level)) {
		case "":
			return 0, false
		case "debug":
			return slog.LevelDebug, true
		case "warn":
			return slog.LevelWarn, true
		case "error":
			return slog.LevelError, true
		default:
			return slog.LevelInfo, true
		}
	}
	return 0, false
}

func withStageContext(ctx context.Context, stage string, job *registry.Job, reqID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if job != nil {
		ctx = services.WithJobID(ctx, job.ID)
		if job.RunID != "" {
			ctx = services.WithRunID(ctx, job.RunID)
		}
	}
	if stage != "" {
		ctx = services.WithStage(ctx, stage)
	}
	if reqID != "" {
		ctx = services.WithRequestID(ctx, reqID)
	}
	return ctx
}

// deriveStageLabel turns a status like needs_review into Needs Review for
// progress display. Casers are stateful, so each call builds its own.
func deriveStageLabel(status registry.Status) string {
	words := strings.ReplaceAll(string(status), "_", " ")
	if words == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.ToLower(words))
}
