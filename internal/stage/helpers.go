package stage

import (
	"stagehand/internal/plan"
	"stagehand/internal/services"
)

// LoadPlan locates and parses the install plan inside a job's build tree.
// On failure it returns a services.ErrValidation suitable for stage Execute
// methods, so the job parks for review instead of retrying forever.
func LoadPlan(buildTree string) (*plan.Plan, string, error) {
	planPath, err := plan.Locate(buildTree)
	if err != nil {
		return nil, "", services.Wrap(
			services.ErrValidation, "stage", "locate plan",
			"Install plan missing from build tree; add an install.toml", err)
	}
	p, err := plan.Load(planPath)
	if err != nil {
		return nil, "", services.Wrap(
			services.ErrValidation, "stage", "parse plan",
			"Install plan invalid; fix it and retry the job", err)
	}
	return p, planPath, nil
}
