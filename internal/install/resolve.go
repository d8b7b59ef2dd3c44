package install

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"stagehand/internal/plan"
	"stagehand/internal/services"
)

// Action is one resolved install step. Actions keep plan order, so executing
// them front to back reproduces the plan's install sequence.
type Action struct {
	Source    string      // absolute path inside the build tree
	Target    string      // absolute destination under the logical prefix
	RelTarget string      // slash path of Target relative to the prefix
	Mode      fs.FileMode // permission bits applied to the installed file
	Kind      plan.Kind
	Component string
	Size      int64
	Optional  bool
}

// Skipped records a plan entry that resolution left out and why.
type Skipped struct {
	Source string
	Kind   plan.Kind
	Reason string
}

// Resolve maps plan entries onto the build tree and prefix, filtering by
// configuration and component. A non-optional entry whose source is absent
// aborts resolution; optional entries are reported as skipped. The returned
// actions reference the logical prefix; destdir handling is the engine's.
func Resolve(p *plan.Plan, buildTree, prefix string, cfg plan.Configuration, component string) ([]Action, []Skipped, error) {
	if p == nil {
		return nil, nil, services.Wrap(services.ErrValidation, "resolve", "validate inputs", "Install plan is required", nil)
	}
	if strings.TrimSpace(buildTree) == "" {
		return nil, nil, services.Wrap(services.ErrValidation, "resolve", "validate inputs", "Build tree path is required", nil)
	}
	if strings.TrimSpace(prefix) == "" {
		return nil, nil, services.Wrap(services.ErrValidation, "resolve", "validate inputs", "Install prefix is required", nil)
	}
	component = strings.ToLower(strings.TrimSpace(component))
	if component != "" && !p.HasComponent(component) {
		return nil, nil, services.Wrap(
			services.ErrValidation,
			"resolve",
			"select component",
			fmt.Sprintf("Unknown component %q; plan defines: %s", component, strings.Join(p.Components(), ", ")),
			nil,
		)
	}

	actions := make([]Action, 0, len(p.Artifacts))
	var skipped []Skipped
	targets := make(map[string]string, len(p.Artifacts))

	for _, artifact := range p.Artifacts {
		if component != "" && artifact.Component != component {
			skipped = append(skipped, Skipped{
				Source: artifact.Source,
				Kind:   artifact.Kind,
				Reason: fmt.Sprintf("component %q not selected", artifact.Component),
			})
			continue
		}
		if !artifact.AppliesTo(cfg) {
			skipped = append(skipped, Skipped{
				Source: artifact.Source,
				Kind:   artifact.Kind,
				Reason: fmt.Sprintf("not built for configuration %s", cfg),
			})
			continue
		}

		sourceRel := artifact.Source
		if strings.Contains(sourceRel, plan.ConfigPlaceholder) {
			if cfg == "" {
				return nil, nil, services.Wrap(
					services.ErrValidation,
					"resolve",
					"expand source",
					fmt.Sprintf("Source %q uses %s but no configuration is selected", sourceRel, plan.ConfigPlaceholder),
					nil,
				)
			}
			sourceRel = plan.ExpandPlaceholders(sourceRel, cfg)
		}
		sourceAbs := filepath.Join(buildTree, filepath.FromSlash(sourceRel))

		info, err := os.Stat(sourceAbs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if artifact.Optional {
					skipped = append(skipped, Skipped{
						Source: artifact.Source,
						Kind:   artifact.Kind,
						Reason: "optional source missing",
					})
					continue
				}
				return nil, nil, services.Wrap(
					services.ErrValidation,
					"resolve",
					"locate source",
					fmt.Sprintf("Source artifact missing: %s", sourceAbs),
					nil,
				)
			}
			return nil, nil, services.Wrap(services.ErrTransient, "resolve", "stat source", fmt.Sprintf("Cannot read source %s", sourceAbs), err)
		}
		if info.IsDir() {
			return nil, nil, services.Wrap(
				services.ErrValidation,
				"resolve",
				"locate source",
				fmt.Sprintf("Source %s is a directory, expected a file", sourceAbs),
				nil,
			)
		}

		name := plan.ExpandPlaceholders(artifact.TargetName(), cfg)
		relTarget := path.Join(p.DestinationDir(artifact), name)
		if prior, exists := targets[relTarget]; exists {
			return nil, nil, services.Wrap(
				services.ErrValidation,
				"resolve",
				"check targets",
				fmt.Sprintf("Entries %q and %q both install to %s", prior, artifact.Source, relTarget),
				nil,
			)
		}
		targets[relTarget] = artifact.Source

		actions = append(actions, Action{
			Source:    sourceAbs,
			Target:    filepath.Join(prefix, filepath.FromSlash(relTarget)),
			RelTarget: relTarget,
			Mode:      artifact.FileMode(),
			Kind:      artifact.Kind,
			Component: artifact.Component,
			Size:      info.Size(),
			Optional:  artifact.Optional,
		})
	}

	return actions, skipped, nil
}
