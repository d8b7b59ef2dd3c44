package workflow

import (
	"context"
	"errors"
	"strings"

	"stagehand/internal/logging"
	"stagehand/internal/registry"
	"stagehand/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, job *registry.Job, stageErr error) {
	logger := m.stageLogger(ctx).With(logging.String(logging.FieldComponent, "workflow-manager"))

	msg := m.describeStageFailure(stageName, stageErr)
	resolved := services.FailureStatus(stageErr)
	if resolved == registry.StatusReview {
		job.SetReview(msg)
	} else {
		job.SetFailed(msg)
	}

	logger.Error("stage failed",
		logging.String("resolved_status", string(resolved)),
		logging.String("error_message", strings.TrimSpace(msg)),
		logging.Alert("stage_failed"),
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failed"),
	)

	err := m.store.Update(ctx, job)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Debug("daemon shutting down, could not update stage failure")
	default:
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	m.recordJob(job)
	m.notifyStageFailure(ctx, stageName, job, resolved, stageErr)
	m.onJobSettled(ctx)
}

// describeStageFailure derives the operator-facing failure message from the
// stage error, falling back to a generic line when the error carries none.
func (m *Manager) describeStageFailure(stageName string, cause error) string {
	subject := "workflow"
	if stageName != "" {
		subject = stageName
	}
	if cause == nil {
		return subject + " failed without error detail"
	}
	if msg := strings.TrimSpace(cause.Error()); msg != "" {
		return msg
	}
	return subject + " failed"
}
