package workflow

import (
	"context"
	"slices"

	"stagehand/internal/logging"
	"stagehand/internal/registry"
	"stagehand/internal/stage"
)

// StatusSummary is a point-in-time view of the install pipeline.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *registry.Job
	QueueStats  map[registry.Status]int
	StageHealth map[string]stage.Health
}

// Status reports the manager state along with queue counts and per-stage
// health.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	snap, stages := m.snapshot()

	counts, err := m.store.Stats(ctx)
	if err != nil {
		m.runnerLogger().Warn("failed to read queue stats", logging.Error(err))
	}
	snap.QueueStats = counts
	snap.StageHealth = collectHealth(ctx, stages)
	return snap
}

// snapshot copies the mutable manager state under the read lock so health
// checks can run without holding it.
func (m *Manager) snapshot() (StatusSummary, []pipelineStage) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := StatusSummary{Running: m.started}
	if m.lastFail != nil {
		snap.LastError = m.lastFail.Error()
	}
	if m.lastJob != nil {
		job := *m.lastJob
		snap.LastJob = &job
	}
	return snap, slices.Clone(m.stages)
}

func collectHealth(ctx context.Context, stages []pipelineStage) map[string]stage.Health {
	out := make(map[string]stage.Health, len(stages))
	for _, stg := range stages {
		if stg.handler != nil {
			out[stg.name] = stg.handler.HealthCheck(ctx)
		}
	}
	return out
}

func (m *Manager) recordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFail = err
}

func (m *Manager) recordJob(job *registry.Job) {
	var copied *registry.Job
	if job != nil {
		clone := *job
		copied = &clone
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastJob = copied
}
