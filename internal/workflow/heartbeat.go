package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"stagehand/internal/logging"
	"stagehand/internal/registry"
)

// HeartbeatMonitor stamps liveness for processing jobs and reclaims jobs
// whose worker died without recording an outcome.
type HeartbeatMonitor struct {
	store    *registry.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor wires the monitor to the registry store.
func NewHeartbeatMonitor(store *registry.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{store: store, logger: logger, interval: interval, timeout: timeout}
}

// ReclaimStaleJobs rolls jobs whose heartbeat predates the timeout back to
// the start of their stage.
func (h *HeartbeatMonitor) ReclaimStaleJobs(ctx context.Context, logger *slog.Logger, statuses []registry.Status) error {
	if h.timeout <= 0 || len(statuses) == 0 {
		return nil
	}
	n, err := h.store.ReclaimStaleProcessing(ctx, time.Now().Add(-h.timeout), statuses...)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Info("reclaimed stale jobs", logging.Int64("count", n))
	}
	return nil
}

// StartLoop stamps heartbeats for one job until ctx is canceled. Run it on
// its own goroutine; wg is released on exit.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()
	if h.interval <= 0 {
		return
	}
	tick := time.NewTicker(h.interval)
	defer tick.Stop()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			h.beat(ctx, logger, jobID)
		}
	}
}

func (h *HeartbeatMonitor) beat(ctx context.Context, logger *slog.Logger, jobID int64) {
	err := h.store.UpdateHeartbeat(ctx, jobID)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		logger.Info("daemon shutting down, heartbeat update cancelled")
	default:
		logger.Warn("heartbeat update failed", logging.Error(err))
	}
}
