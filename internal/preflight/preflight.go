package preflight

import (
	"context"
	"strings"

	"stagehand/internal/config"
)

// Result is the outcome of one environment check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to the configuration. The daemon
// runs these once at startup; the status command renders them on demand.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	checks := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckInstallPrefix(cfg),
	}

	if strings.TrimSpace(cfg.Paths.DropDir) != "" {
		checks = append(checks,
			CheckDirectoryAccess("Drop directory", cfg.Paths.DropDir),
			CheckDropPlans(cfg.Paths.DropDir),
		)
	}

	checks = append(checks, CheckRegistry(ctx, cfg))
	return checks
}
