package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"stagehand/internal/logging"
	"stagehand/internal/notifications"
	"stagehand/internal/registry"
)

func (m *Manager) notifyJobCompleted(ctx context.Context, job *registry.Job) {
	if m.notifier == nil {
		return
	}
	m.publishQuietly(ctx, logging.WithContext(ctx, m.runnerLogger()), notifications.EventInstallCompleted, notifications.Payload{
		"plan":          job.PlanName,
		"version":       job.PlanVersion,
		"configuration": job.Configuration,
		"prefix":        m.cfg.Install.Prefix,
	}, "completion notification")
}

func (m *Manager) notifyStageFailure(ctx context.Context, stageName string, job *registry.Job, resolved registry.Status, cause error) {
	if m.notifier == nil || cause == nil {
		return
	}

	event := notifications.EventInstallFailed
	payload := notifications.Payload{
		"plan":    job.PlanName,
		"version": job.PlanVersion,
		"job":     job.ID,
		"error":   cause,
	}
	if resolved == registry.StatusReview {
		event = notifications.EventReviewRequired
		payload = notifications.Payload{
			"job":    job.ID,
			"reason": job.ReviewReason,
		}
	}
	m.publishQuietly(ctx, logging.WithContext(ctx, m.runnerLogger()), event, payload, stageName+" failure notification")
}

func (m *Manager) onJobStarted(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	counts, ok := m.statsForNotification(ctx,
		"daemon shutting down, could not get queue stats for start notification",
		"queue stats unavailable for start notification; notification skipped")
	if !ok || !m.markQueueActive() {
		return
	}

	m.publishQuietly(ctx, m.runnerLogger(), notifications.EventQueueStarted,
		notifications.Payload{"count": countWorkJobs(counts)}, "queue start notification")
}

func (m *Manager) onJobSettled(ctx context.Context) {
	if m.notifier == nil {
		return
	}
	counts, ok := m.statsForNotification(ctx,
		"daemon shutting down, could not check queue completion",
		"queue stats unavailable for completion notification; notification skipped")
	if !ok || countWorkJobs(counts) > 0 {
		return
	}

	elapsed, wasActive := m.finishQueueRun()
	if !wasActive {
		return
	}
	m.publishQuietly(ctx, m.runnerLogger(), notifications.EventQueueCompleted, notifications.Payload{
		"processed": counts[registry.StatusCompleted],
		"failed":    counts[registry.StatusFailed],
		"duration":  elapsed,
	}, "queue completion notification")
}

// publishQuietly sends a notification and logs delivery problems at debug
// level, since notifications never block the pipeline.
func (m *Manager) publishQuietly(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload, label string) {
	err := m.notifier.Publish(ctx, event, payload)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Debug("daemon shutting down, could not send " + label)
	default:
		logger.Debug(label+" failed", logging.Error(err))
	}
}

// statsForNotification fetches queue counters for the start and completion
// notifications, reporting false when they are unavailable.
func (m *Manager) statsForNotification(ctx context.Context, cancelMsg, unavailableMsg string) (map[registry.Status]int, bool) {
	counts, err := m.store.Stats(ctx)
	if err == nil {
		return counts, true
	}
	if errors.Is(err, context.Canceled) {
		m.runnerLogger().Debug(cancelMsg)
		return nil, false
	}
	m.runnerLogger().Warn(unavailableMsg,
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_stats_failed"),
		logging.String(logging.FieldErrorHint, "check registry database access"),
	)
	return nil, false
}

// markQueueActive records the start of a queue run. It reports false when a
// run was already in flight.
func (m *Manager) markQueueActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runActive {
		return false
	}
	m.runActive = true
	m.runStart = time.Now()
	return true
}

// finishQueueRun clears the queue-active flag and reports how long the run
// took. The second return is false when no run was active.
func (m *Manager) finishQueueRun() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.runActive {
		return 0, false
	}
	start := m.runStart
	m.runActive = false
	m.runStart = time.Time{}
	if start.IsZero() {
		return 0, true
	}
	return time.Since(start), true
}

// countWorkJobs counts jobs still moving through the pipeline. Completed,
// failed, and review jobs all sit still until an operator acts.
func countWorkJobs(counts map[registry.Status]int) int {
	var live int
	for status, n := range counts {
		if registry.IsTerminal(status) {
			continue
		}
		live += n
	}
	return live
}
