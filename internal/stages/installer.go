package stages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"stagehand/internal/config"
	"stagehand/internal/install"
	"stagehand/internal/logging"
	"stagehand/internal/registry"
	"stagehand/internal/services"
	"stagehand/internal/stage"
)

const progressStageInstall = "Install"

// Installer performs the real install into the configured prefix and
// records the run and its file set in the registry for verify, uninstall,
// and history.
type Installer struct {
	cfg    *config.Config
	store  *registry.Store
	engine *install.Engine
	logger *slog.Logger
}

// NewInstaller constructs the install stage.
func NewInstaller(cfg *config.Config, store *registry.Store, logger *slog.Logger) *Installer {
	return &Installer{
		cfg:    cfg,
		store:  store,
		engine: install.New(cfg, logger),
		logger: logging.NewComponentLogger(logger, "installer"),
	}
}

// SetLogger allows the workflow manager to route stage logs.
func (i *Installer) SetLogger(logger *slog.Logger) {
	if i == nil {
		return
	}
	i.logger = logging.NewComponentLogger(logger, "installer")
	i.engine = install.New(i.cfg, logger)
}

// Prepare primes job progress fields before executing the stage.
func (i *Installer) Prepare(ctx context.Context, job *registry.Job) error {
	if i == nil || i.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "install", "prepare", "Installer is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "install", "prepare", "Job is nil", nil)
	}
	job.InitProgress(progressStageInstall, "Installing into prefix")
	job.ProgressBytesCopied = 0
	return nil
}

// Execute installs the build tree into the prefix and persists the run.
func (i *Installer) Execute(ctx context.Context, job *registry.Job) error {
	if i == nil || i.cfg == nil || i.engine == nil {
		return services.Wrap(services.ErrConfiguration, "install", "execute", "Installer is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "install", "execute", "Job is nil", nil)
	}
	if i.store == nil {
		return services.Wrap(services.ErrConfiguration, "install", "execute", "Registry store unavailable", nil)
	}
	logger := logging.WithContext(ctx, i.logger)

	p, _, err := stage.LoadPlan(job.DropPath)
	if err != nil {
		return err
	}

	result, err := i.engine.Run(ctx, install.Request{
		Plan:          p,
		BuildTree:     job.DropPath,
		Prefix:        i.cfg.Install.Prefix,
		DestDir:       i.cfg.Install.DestDir,
		Configuration: job.Configuration,
		Component:     job.Component,
		OnProgress:    reportProgress(ctx, i.store, logger, job, progressStageInstall),
	})
	if err != nil {
		return err
	}

	run, files := install.RunRecord(result, job.ID)
	if err := i.store.RecordRun(ctx, run, files); err != nil {
		return services.Wrap(services.ErrTransient, "install", "record run", "Cannot record install run", err)
	}
	job.RunID = result.RunID
	job.SetProgressComplete(progressStageInstall, fmt.Sprintf("%d installed, %d up-to-date", result.InstalledCount, result.UpToDateCount))

	logger.Info(
		"install recorded",
		logging.String(logging.FieldRunID, result.RunID),
		logging.String("prefix", result.Prefix),
		logging.Int("installed", result.InstalledCount),
		logging.Int("up_to_date", result.UpToDateCount),
		logging.Int64("bytes", result.TotalBytes),
	)
	return nil
}

// HealthCheck reports whether the install destination looks reachable.
func (i *Installer) HealthCheck(ctx context.Context) stage.Health {
	const name = "installer"
	if i == nil || i.cfg == nil {
		return stage.Unhealthy(name, "not configured")
	}
	prefix := strings.TrimSpace(i.cfg.Install.Prefix)
	if prefix == "" {
		return stage.Unhealthy(name, "install prefix not configured")
	}
	if destDir := strings.TrimSpace(i.cfg.Install.DestDir); destDir != "" {
		// Staged installs create the whole tree under destdir themselves.
		return stage.Healthy(name)
	}
	if _, err := os.Stat(filepath.Dir(filepath.Clean(prefix))); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("prefix parent unavailable: %v", err))
	}
	return stage.Healthy(name)
}
