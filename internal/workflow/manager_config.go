package workflow

import "stagehand/internal/registry"

// ConfigureStages registers the concrete stage handlers the workflow will
// run. Missing handlers drop out of the chain; the final configured stage
// always finishes jobs at completed.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage
	start := registry.StatusPending

	if set.Validator != nil {
		stages = append(stages, pipelineStage{
			name:         "validator",
			handler:      set.Validator,
			readyStatus:  start,
			activeStatus: registry.StatusValidating,
			doneStatus:   registry.StatusValidated,
		})
		start = registry.StatusValidated
	}
	if set.Stager != nil {
		stages = append(stages, pipelineStage{
			name:         "stager",
			handler:      set.Stager,
			readyStatus:  start,
			activeStatus: registry.StatusStaging,
			doneStatus:   registry.StatusStaged,
		})
		start = registry.StatusStaged
	}
	if set.Installer != nil {
		stages = append(stages, pipelineStage{
			name:         "installer",
			handler:      set.Installer,
			readyStatus:  start,
			activeStatus: registry.StatusInstalling,
			doneStatus:   registry.StatusInstalled,
		})
		start = registry.StatusInstalled
	}
	if set.Verifier != nil {
		stages = append(stages, pipelineStage{
			name:         "verifier",
			handler:      set.Verifier,
			readyStatus:  start,
			activeStatus: registry.StatusVerifying,
			doneStatus:   registry.StatusCompleted,
		})
	}
	if len(stages) > 0 {
		stages[len(stages)-1].doneStatus = registry.StatusCompleted
	}

	stageByStart := make(map[registry.Status]pipelineStage, len(stages))
	statusOrder := make([]registry.Status, 0, len(stages))
	var processing []registry.Status
	seenProcessing := make(map[registry.Status]struct{})
	for _, stg := range stages {
		stageByStart[stg.readyStatus] = stg
		statusOrder = append(statusOrder, stg.readyStatus)
		if stg.activeStatus != "" {
			if _, ok := seenProcessing[stg.activeStatus]; !ok {
				processing = append(processing, stg.activeStatus)
				seenProcessing[stg.activeStatus] = struct{}{}
			}
		}
	}

	m.mu.Lock()
	m.stages = stages
	m.stageByStart = stageByStart
	m.statusOrder = statusOrder
	m.processingStatuses = processing
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status registry.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}
