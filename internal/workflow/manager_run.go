package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"stagehand/internal/logging"
	"stagehand/internal/registry"
)

// Start launches the job processing loop in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.started:
		return errors.New("workflow manager already started")
	case len(m.statusOrder) == 0:
		return errors.New("no workflow stages configured")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true
	m.wg.Add(1)
	go m.run(loopCtx)
	return nil
}

// Stop cancels the processing loop and waits for it to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.started = false
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()
	logger := m.runnerLogger()

	for ctx.Err() == nil {
		m.reclaimStale(ctx, logger)

		job, err := m.nextJob(ctx)
		switch {
		case err != nil:
			m.handleNextJobError(ctx, logger, err)
		case job == nil:
			m.waitForJobOrShutdown(ctx)
		default:
			if err := m.processJob(ctx, logger, job); errors.Is(err, context.Canceled) {
				return
			}
		}
	}
}

func (m *Manager) reclaimStale(ctx context.Context, logger *slog.Logger) {
	err := m.heartbeat.ReclaimStaleJobs(ctx, logger, m.processingStatuses)
	if err == nil {
		return
	}
	logger.Warn("reclaim stale processing failed; stuck jobs may remain", logging.Error(err),
		logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
		logging.String(logging.FieldErrorHint, "check registry database access"),
	)
}

func (m *Manager) nextJob(ctx context.Context) (*registry.Job, error) {
	m.mu.RLock()
	order := m.statusOrder
	m.mu.RUnlock()

	if len(order) == 0 {
		return nil, nil
	}
	return m.store.NextForStatuses(ctx, order...)
}

func (m *Manager) handleNextJobError(ctx context.Context, logger *slog.Logger, err error) {
	m.recordError(err)
	logger.Error("failed to fetch next job", logging.Error(err),
		logging.String(logging.FieldEventType, "job_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check registry database access"),
	)
	sleepOrShutdown(ctx, time.Duration(m.cfg.Daemon.RetryInterval)*time.Second)
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	sleepOrShutdown(ctx, m.pollEvery)
}

// sleepOrShutdown pauses the run loop without ignoring cancellation.
func sleepOrShutdown(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
