package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"stagehand/internal/config"
	"stagehand/internal/install"
	"stagehand/internal/logging"
	"stagehand/internal/registry"
	"stagehand/internal/services"
	"stagehand/internal/stage"
)

const progressStageStage = "Stage"

// Stager rehearses the install into a per-job scratch root under the
// staging directory. A build tree that cannot produce a complete staged
// tree never touches the live prefix.
type Stager struct {
	cfg    *config.Config
	store  *registry.Store
	engine *install.Engine
	logger *slog.Logger
}

// NewStager constructs the staging stage.
func NewStager(cfg *config.Config, store *registry.Store, logger *slog.Logger) *Stager {
	return &Stager{
		cfg:    cfg,
		store:  store,
		engine: install.New(cfg, logger),
		logger: logging.NewComponentLogger(logger, "stager"),
	}
}

// SetLogger allows the workflow manager to route stage logs.
func (s *Stager) SetLogger(logger *slog.Logger) {
	if s == nil {
		return
	}
	s.logger = logging.NewComponentLogger(logger, "stager")
	s.engine = install.New(s.cfg, logger)
}

// Prepare primes job progress fields before executing the stage.
func (s *Stager) Prepare(ctx context.Context, job *registry.Job) error {
	if s == nil || s.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "stage", "prepare", "Stager is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "stage", "prepare", "Job is nil", nil)
	}
	job.InitProgress(progressStageStage, "Staging install tree")
	job.ProgressBytesCopied = 0
	return nil
}

// Execute runs the engine against a scratch destdir and records the staged
// root on the job.
func (s *Stager) Execute(ctx context.Context, job *registry.Job) error {
	if s == nil || s.cfg == nil || s.engine == nil {
		return services.Wrap(services.ErrConfiguration, "stage", "execute", "Stager is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "stage", "execute", "Job is nil", nil)
	}
	logger := logging.WithContext(ctx, s.logger)

	p, _, err := stage.LoadPlan(job.DropPath)
	if err != nil {
		return err
	}

	scratch := filepath.Join(s.cfg.Paths.StagingDir, fmt.Sprintf("job-%d", job.ID))
	// A reclaimed job may leave a partial tree from the previous attempt.
	if err := os.RemoveAll(scratch); err != nil {
		return services.Wrap(services.ErrTransient, "stage", "clear scratch root", fmt.Sprintf("Cannot clear %s", scratch), err)
	}

	result, err := s.engine.Run(ctx, install.Request{
		Plan:          p,
		BuildTree:     job.DropPath,
		Prefix:        s.cfg.Install.Prefix,
		DestDir:       scratch,
		Configuration: job.Configuration,
		Component:     job.Component,
		SkipManifest:  false,
		OnProgress:    reportProgress(ctx, s.store, logger, job, progressStageStage),
	})
	if err != nil {
		return err
	}

	job.StagedPath = result.Root
	job.SetProgressComplete(progressStageStage, fmt.Sprintf("Staged %d files", len(result.Files)))

	logger.Info(
		"install staged",
		logging.String("staged_root", result.Root),
		logging.Int("files", len(result.Files)),
		logging.Int64("bytes", result.TotalBytes),
	)
	return nil
}

// HealthCheck reports whether the staging directory is usable.
func (s *Stager) HealthCheck(ctx context.Context) stage.Health {
	const name = "stager"
	if s == nil || s.cfg == nil {
		return stage.Unhealthy(name, "not configured")
	}
	if err := os.MkdirAll(s.cfg.Paths.StagingDir, 0o755); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("staging directory unavailable: %v", err))
	}
	return stage.Healthy(name)
}
