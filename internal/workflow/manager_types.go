package workflow

import (
	"log/slog"

	"stagehand/internal/registry"
	"stagehand/internal/stage"
)

// StageSet names the concrete handler for each install stage.
type StageSet struct {
	Validator stage.Handler
	Stager    stage.Handler
	Installer stage.Handler
	Verifier  stage.Handler
}

type pipelineStage struct {
	name         string
	handler      stage.Handler
	readyStatus  registry.Status
	activeStatus registry.Status
	doneStatus   registry.Status
}

// loggerAware stages accept the per-job logger the manager builds, so
// stage output carries job and correlation fields.
type loggerAware interface {
	SetLogger(*slog.Logger)
}
