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

const progressStageVerify = "Verify"

// Verifier replays the recorded run against the installed tree. Any drift
// between the registry record and the filesystem parks the job for review,
// because a mismatched install needs an operator, not a retry.
type Verifier struct {
	cfg    *config.Config
	store  *registry.Store
	logger *slog.Logger
}

// NewVerifier constructs the verification stage.
func NewVerifier(cfg *config.Config, store *registry.Store, logger *slog.Logger) *Verifier {
	return &Verifier{cfg: cfg, store: store, logger: logging.NewComponentLogger(logger, "verifier")}
}

// SetLogger allows the workflow manager to route stage logs.
func (v *Verifier) SetLogger(logger *slog.Logger) {
	if v == nil {
		return
	}
	v.logger = logging.NewComponentLogger(logger, "verifier")
}

// Prepare primes job progress fields before executing the stage.
func (v *Verifier) Prepare(ctx context.Context, job *registry.Job) error {
	if v == nil || v.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "verify", "prepare", "Verifier is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "verify", "prepare", "Job is nil", nil)
	}
	job.InitProgress(progressStageVerify, "Verifying installed files")
	return nil
}

// Execute checks every recorded file and releases the staged scratch tree
// once the install is confirmed good.
func (v *Verifier) Execute(ctx context.Context, job *registry.Job) error {
	if v == nil || v.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "verify", "execute", "Verifier is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "verify", "execute", "Job is nil", nil)
	}
	logger := logging.WithContext(ctx, v.logger)

	if !v.cfg.Install.VerifyAfter {
		v.releaseStaged(job, logger)
		job.SetProgressComplete(progressStageVerify, "Verification disabled")
		logger.Debug("verification disabled, skipping")
		return nil
	}

	if v.store == nil {
		return services.Wrap(services.ErrConfiguration, "verify", "execute", "Registry store unavailable", nil)
	}
	if strings.TrimSpace(job.RunID) == "" {
		return services.Wrap(services.ErrValidation, "verify", "load run", "Job has no recorded install run", nil)
	}
	run, err := v.store.GetRun(ctx, job.RunID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "verify", "load run", "Cannot load install run", err)
	}
	if run == nil {
		return services.Wrap(services.ErrValidation, "verify", "load run", fmt.Sprintf("Install run %s missing from registry", job.RunID), nil)
	}
	files, err := v.store.RunFiles(ctx, job.RunID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "verify", "load run files", "Cannot load recorded files", err)
	}

	report := install.VerifyRun(run, files)
	if !report.Clean() {
		first := report.Issues[0]
		return services.Wrap(
			services.ErrValidation, "verify", "compare files",
			fmt.Sprintf("%d of %d files failed verification; first: %s (%s)", len(report.Issues), report.Total, first.Path, first.Problem),
			nil,
		)
	}

	v.releaseStaged(job, logger)
	job.SetProgressComplete(progressStageVerify, fmt.Sprintf("%d files verified", report.OK))
	logger.Info("install verified", logging.Int("files", report.OK))
	return nil
}

// releaseStaged removes the per-job scratch tree. Only paths under the
// configured staging directory are touched.
func (v *Verifier) releaseStaged(job *registry.Job, logger *slog.Logger) {
	staged := strings.TrimSpace(job.StagedPath)
	if staged == "" {
		return
	}
	rel, err := filepath.Rel(v.cfg.Paths.StagingDir, staged)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		logger.Warn("staged path outside staging directory, leaving it", logging.String("staged_root", staged))
		return
	}
	// The scratch root is staging/job-<id>; StagedPath points at the prefix
	// subtree inside it.
	scratch := filepath.Join(v.cfg.Paths.StagingDir, strings.Split(rel, string(filepath.Separator))[0])
	if err := os.RemoveAll(scratch); err != nil {
		logger.Warn("failed to remove staged tree", logging.String("staged_root", scratch), logging.Error(err))
		return
	}
	job.StagedPath = ""
}

// HealthCheck reports whether the registry is reachable.
func (v *Verifier) HealthCheck(ctx context.Context) stage.Health {
	const name = "verifier"
	if v == nil || v.cfg == nil {
		return stage.Unhealthy(name, "not configured")
	}
	if v.store == nil {
		return stage.Unhealthy(name, "registry store unavailable")
	}
	if _, err := v.store.Health(ctx); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("registry unavailable: %v", err))
	}
	return stage.Healthy(name)
}
