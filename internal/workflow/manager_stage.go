package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stagehand/internal/logging"
	"stagehand/internal/registry"
	"stagehand/internal/stage"
)

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *registry.Job) error {
	stg, ok := m.stageForStatus(job.Status)
	if !ok {
		logger.Warn("no stage configured for status", logging.String("status", string(job.Status)))
		m.waitForJobOrShutdown(ctx)
		return nil
	}

	stageCtx := withStageContext(ctx, stg.name, job, uuid.NewString())
	stageLogger := m.stageLogger(stageCtx)
	if aware, ok := stg.handler.(loggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	if err := m.transitionToProcessing(stageCtx, stg, job); err != nil {
		stageLogger.Error("failed to transition job to processing", logging.Error(err))
		m.recordError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, job)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, job *registry.Job) error {
	start := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.activeStatus)),
		logging.String("plan", strings.TrimSpace(job.PlanName)),
		logging.String("build_tree", strings.TrimSpace(job.DropPath)))

	h := stg.handler
	if h == nil {
		stageLogger.Warn("missing stage handler", logging.String(logging.FieldStage, stg.name))
		job.SetFailed(fmt.Sprintf("stage %s missing handler", stg.name))
		if err := m.store.Update(ctx, job); err != nil {
			stageLogger.Error("failed to record handler-missing failure", logging.Error(err))
		}
		err := errors.New("stage handler unavailable")
		m.recordError(err)
		return err
	}

	if err := h.Prepare(ctx, job); err != nil {
		return m.failStage(ctx, stg.name, job, err)
	}
	if err := m.persistJob(ctx, stageLogger, job, "persist stage preparation"); err != nil {
		return err
	}

	runErr := m.executeWithHeartbeat(ctx, h, job)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			stageLogger.Debug("stage cut short by shutdown")
			return runErr
		}
		return m.failStage(ctx, stg.name, job, runErr)
	}

	if job.Status == stg.activeStatus || job.Status == "" {
		job.Status = stg.doneStatus
	}
	job.LastHeartbeat = nil
	if job.Status == registry.StatusCompleted {
		if job.ProgressPercent < 100 {
			job.ProgressPercent = 100
		}
		if strings.TrimSpace(job.ProgressMessage) == "" {
			job.ProgressMessage = deriveStageLabel(registry.StatusCompleted)
		}
	}
	if err := m.persistJob(ctx, stageLogger, job, "persist stage result"); err != nil {
		return err
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(job.Status)),
		logging.String("progress_stage", strings.TrimSpace(job.ProgressStage)),
		logging.String("progress_message", strings.TrimSpace(job.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(start)))
	m.recordJob(job)
	if job.Status == registry.StatusCompleted {
		m.notifyJobCompleted(ctx, job)
	}
	m.onJobSettled(ctx)
	return nil
}

// failStage records a stage failure and reports err back to the run loop.
func (m *Manager) failStage(ctx context.Context, stageName string, job *registry.Job, err error) error {
	m.handleStageFailure(ctx, stageName, job, err)
	m.recordError(err)
	return err
}

// persistJob updates the job row, logging and recording the wrapped error on
// failure so callers only have to propagate it.
func (m *Manager) persistJob(ctx context.Context, logger *slog.Logger, job *registry.Job, what string) error {
	err := m.store.Update(ctx, job)
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("%s: %w", what, err)
	logger.Error("failed to "+what, logging.Error(wrapped))
	m.recordError(wrapped)
	return wrapped
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *registry.Job) error {
	beatCtx, stopBeats := context.WithCancel(ctx)
	var beats sync.WaitGroup
	beats.Add(1)
	go m.heartbeat.StartLoop(beatCtx, &beats, job.ID)

	err := handler.Execute(ctx, job)
	stopBeats()
	beats.Wait()
	return err
}

func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, job *registry.Job) error {
	if stg.activeStatus == "" {
		return errors.New("stage is missing a processing status")
	}

	m.setJobProcessingState(job, stg.activeStatus)
	if err := m.store.Update(ctx, job); err != nil {
		return fmt.Errorf("record processing transition: %w", err)
	}
	m.recordJob(job)
	m.onJobStarted(ctx)
	return nil
}

func (m *Manager) setJobProcessingState(job *registry.Job, processing registry.Status) {
	ts := time.Now().UTC()
	job.Status = processing
	if job.ProgressStage == "" {
		job.ProgressStage = deriveStageLabel(processing)
	}
	if job.ProgressMessage == "" {
		job.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(processing))
	}
	job.ProgressPercent = 0
	job.ErrorMessage = ""
	job.LastHeartbeat = &ts
}
