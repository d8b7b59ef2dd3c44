package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"stagehand/internal/config"
	"stagehand/internal/install"
	"stagehand/internal/logging"
	"stagehand/internal/plan"
	"stagehand/internal/registry"
	"stagehand/internal/services"
	"stagehand/internal/stage"
)

const progressStageValidate = "Validate"

// Validator loads and checks the install plan for a queued build tree
// before any filesystem work happens. It pins the plan identity and the
// resolved build configuration on the job so later stages and the run
// history agree.
type Validator struct {
	cfg    *config.Config
	store  *registry.Store
	logger *slog.Logger
}

// NewValidator constructs the plan validation stage.
func NewValidator(cfg *config.Config, store *registry.Store, logger *slog.Logger) *Validator {
	return &Validator{cfg: cfg, store: store, logger: logging.NewComponentLogger(logger, "validator")}
}

// SetLogger allows the workflow manager to route stage logs.
func (v *Validator) SetLogger(logger *slog.Logger) {
	if v == nil {
		return
	}
	v.logger = logging.NewComponentLogger(logger, "validator")
}

// Prepare primes job progress fields before executing the stage.
func (v *Validator) Prepare(ctx context.Context, job *registry.Job) error {
	if v == nil || v.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "validate", "prepare", "Validator is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "validate", "prepare", "Job is nil", nil)
	}
	job.InitProgress(progressStageValidate, "Checking install plan")
	return nil
}

// Execute parses the plan, resolves every artifact against the build tree,
// and fails before anything is copied when a required source is missing.
func (v *Validator) Execute(ctx context.Context, job *registry.Job) error {
	if v == nil || v.cfg == nil {
		return services.Wrap(services.ErrConfiguration, "validate", "execute", "Validator is not configured", nil)
	}
	if job == nil {
		return services.Wrap(services.ErrValidation, "validate", "execute", "Job is nil", nil)
	}
	logger := logging.WithContext(ctx, v.logger)

	p, planPath, err := stage.LoadPlan(job.DropPath)
	if err != nil {
		return err
	}
	job.PlanPath = planPath
	job.PlanName = p.Project.Name
	job.PlanVersion = p.Project.Version

	planDefault := strings.TrimSpace(p.DefaultConfig)
	if planDefault == "" {
		planDefault = v.cfg.Install.DefaultConfig
	}
	configuration, err := plan.SelectConfiguration(job.Configuration, planDefault)
	if err != nil {
		return services.Wrap(services.ErrValidation, "validate", "select configuration", "Build configuration not usable", err)
	}

	actions, skipped, err := install.Resolve(p, job.DropPath, v.cfg.Install.Prefix, configuration, job.Component)
	if err != nil {
		return err
	}

	var total int64
	for _, action := range actions {
		total += action.Size
	}
	job.Configuration = configuration.String()
	job.ProgressTotalBytes = total
	job.SetProgressComplete(progressStageValidate, fmt.Sprintf("%d artifacts ready", len(actions)))

	logger.Info(
		"plan validated",
		logging.String("plan", p.Project.Name),
		logging.String("version", p.Project.Version),
		logging.String("configuration", configuration.String()),
		logging.Int("artifacts", len(actions)),
		logging.Int("skipped", len(skipped)),
		logging.Int64("total_bytes", total),
	)
	return nil
}

// HealthCheck reports whether validation prerequisites are satisfied.
func (v *Validator) HealthCheck(ctx context.Context) stage.Health {
	const name = "validator"
	if v == nil || v.cfg == nil {
		return stage.Unhealthy(name, "not configured")
	}
	if strings.TrimSpace(v.cfg.Install.Prefix) == "" {
		return stage.Unhealthy(name, "install prefix not configured")
	}
	return stage.Healthy(name)
}
