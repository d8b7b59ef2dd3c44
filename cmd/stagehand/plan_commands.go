package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"stagehand/internal/plan"
)

type planArtifactView struct {
	Source    string   `json:"source"`
	Kind      string   `json:"kind"`
	Dest      string   `json:"dest"`
	Rename    string   `json:"rename,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	Component string   `json:"component"`
	Configs   []string `json:"configs,omitempty"`
	Optional  bool     `json:"optional"`
}

type planView struct {
	Path          string             `json:"path"`
	Name          string             `json:"name"`
	DisplayName   string             `json:"display_name"`
	Version       string             `json:"version,omitempty"`
	Description   string             `json:"description,omitempty"`
	DefaultConfig string             `json:"default_config,omitempty"`
	Components    []string           `json:"components"`
	Artifacts     []planArtifactView `json:"artifacts"`
}

func newPlanCommand(ctx *cliContext) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect and scaffold install plans",
	}

	planCmd.AddCommand(newPlanInitCommand())
	planCmd.AddCommand(newPlanShowCommand())
	planCmd.AddCommand(newPlanValidateCommand())

	return planCmd
}

func newPlanInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init [path]",
		Short:       "Write a sample install plan",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := plan.DefaultFileName
			if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
				target = args[0]
			}

			if !force {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("plan already exists at %s (use --force to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check plan path: %w", err)
				}
			}

			if err := plan.CreateSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample install plan to %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing plan file")
	return cmd
}

func newPlanShowCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:         "show [build-tree|plan-file]",
		Short:       "Show a parsed install plan",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, planPath, err := loadPlanArg(args)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, buildPlanView(p, planPath))
			}

			out := cmd.OutOrStdout()
			title := p.Project.Name
			if p.Project.Version != "" {
				title = fmt.Sprintf("%s %s", p.Project.Name, p.Project.Version)
			}
			for _, line := range renderSectionHeader(fmt.Sprintf("Plan %s", title), shouldColorize(out)) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "Path:           %s\n", planPath)
			fmt.Fprintf(out, "Display name:   %s\n", p.Project.DisplayName)
			if p.Project.Description != "" {
				fmt.Fprintf(out, "Description:    %s\n", p.Project.Description)
			}
			if p.DefaultConfig != "" {
				fmt.Fprintf(out, "Default config: %s\n", p.DefaultConfig)
			}
			if components := p.Components(); len(components) > 0 {
				fmt.Fprintf(out, "Components:     %s\n", strings.Join(components, ", "))
			}
			fmt.Fprintln(out)

			rows := make([][]string, 0, len(p.Artifacts))
			for _, artifact := range p.Artifacts {
				configs := strings.Join(artifact.Configs, ",")
				if configs == "" {
					configs = "all"
				}
				rows = append(rows, []string{
					artifact.Source,
					string(artifact.Kind),
					p.DestinationDir(artifact),
					artifact.Component,
					configs,
					yesNo(artifact.Optional),
				})
			}
			table := renderTable(
				[]string{"Source", "Kind", "Dest", "Component", "Configs", "Optional"},
				rows,
				[]colAlign{colLeft, colLeft, colLeft, colLeft, colLeft, colLeft},
			)
			fmt.Fprint(out, table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the plan as JSON")
	return cmd
}

func newPlanValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate [build-tree|plan-file]",
		Short:       "Check an install plan for errors",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, planPath, err := loadPlanArg(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Plan path: %s\n", planPath)
			fmt.Fprintf(out, "Plan %s valid: %d artifacts", p.Project.Name, len(p.Artifacts))
			if components := p.Components(); len(components) > 0 {
				fmt.Fprintf(out, ", components %s", strings.Join(components, ", "))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

// loadPlanArg resolves the optional positional argument of plan subcommands:
// missing means the current directory, a directory locates its default plan
// file, and a file path loads directly.
func loadPlanArg(args []string) (*plan.Plan, string, error) {
	target := "."
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		target = args[0]
	}
	planPath, err := plan.Locate(target)
	if err != nil {
		return nil, "", err
	}
	p, err := plan.Load(planPath)
	if err != nil {
		return nil, "", err
	}
	return p, planPath, nil
}

func buildPlanView(p *plan.Plan, planPath string) planView {
	view := planView{
		Path:          planPath,
		Name:          p.Project.Name,
		DisplayName:   p.Project.DisplayName,
		Version:       p.Project.Version,
		Description:   p.Project.Description,
		DefaultConfig: p.DefaultConfig,
		Components:    p.Components(),
		Artifacts:     make([]planArtifactView, 0, len(p.Artifacts)),
	}
	for _, artifact := range p.Artifacts {
		view.Artifacts = append(view.Artifacts, planArtifactView{
			Source:    artifact.Source,
			Kind:      string(artifact.Kind),
			Dest:      p.DestinationDir(artifact),
			Rename:    artifact.Rename,
			Mode:      artifact.Mode,
			Component: artifact.Component,
			Configs:   artifact.Configs,
			Optional:  artifact.Optional,
		})
	}
	return view
}
