package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stagehand/internal/install"
	"stagehand/internal/manifest"
	"stagehand/internal/registry"
)

type verifyIssueView struct {
	Path    string `json:"path"`
	Problem string `json:"problem"`
}

type verifyReportView struct {
	Prefix    string            `json:"prefix"`
	RunID     string            `json:"run_id,omitempty"`
	CheckedAt string            `json:"checked_at"`
	Total     int               `json:"total"`
	OK        int               `json:"ok"`
	Clean     bool              `json:"clean"`
	Issues    []verifyIssueView `json:"issues,omitempty"`
}

func buildVerifyReportView(report *install.Report) verifyReportView {
	view := verifyReportView{
		Prefix:    report.Prefix,
		RunID:     report.RunID,
		CheckedAt: report.CheckedAt.Format("2006-01-02T15:04:05Z"),
		Total:     report.Total,
		OK:        report.OK,
		Clean:     report.Clean(),
	}
	for _, issue := range report.Issues {
		view.Issues = append(view.Issues, verifyIssueView{Path: issue.Path, Problem: issue.Problem})
	}
	return view
}

func newVerifyCommand(ctx *cliContext) *cobra.Command {
	var prefix string
	var component string
	var useManifest bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "verify [run-id]",
		Short: "Check installed files against the recorded run or manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolveConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if strings.TrimSpace(prefix) == "" {
				prefix = cfg.Install.Prefix
			}

			var report *install.Report
			if useManifest {
				if len(args) > 0 {
					return fmt.Errorf("--manifest checks the manifest file; run id %q does not apply", args[0])
				}
				manifestPath := manifest.Path(prefix, strings.ToLower(strings.TrimSpace(component)))
				paths, err := manifest.Read(manifestPath)
				if err != nil {
					return fmt.Errorf("no manifest at %s: %w", manifestPath, err)
				}
				report = install.VerifyManifest(prefix, paths)
			} else {
				store, err := registry.Open(cfg)
				if err != nil {
					return fmt.Errorf("open registry: %w", err)
				}
				defer store.Close()

				var run *registry.Run
				if len(args) > 0 {
					run, err = store.GetRun(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					if run == nil {
						return fmt.Errorf("run %s not found", args[0])
					}
				} else {
					run, err = store.LatestRunForPrefix(cmd.Context(), prefix)
					if err != nil {
						return err
					}
					if run == nil {
						return fmt.Errorf("no completed run recorded for %s; try --manifest to check the manifest file", prefix)
					}
				}

				files, err := store.RunFiles(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				report = install.VerifyRun(run, files)
			}

			if jsonOut {
				if err := printJSON(cmd, buildVerifyReportView(report)); err != nil {
					return err
				}
			} else {
				renderVerifyReport(cmd, report)
			}

			if !report.Clean() {
				return fmt.Errorf("%d of %d files failed verification", len(report.Issues), report.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Install prefix (default: configured install prefix)")
	cmd.Flags().StringVar(&component, "component", "", "Component manifest to check with --manifest")
	cmd.Flags().BoolVar(&useManifest, "manifest", false, "Check manifest paths for existence instead of a recorded run")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the report as JSON")
	return cmd
}

func renderVerifyReport(cmd *cobra.Command, report *install.Report) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	scope := report.Prefix
	if report.RunID != "" {
		scope = fmt.Sprintf("%s (run %s)", report.Prefix, shortID(report.RunID))
	}
	for _, line := range renderSectionHeader(fmt.Sprintf("Verify %s", scope), colorize) {
		fmt.Fprintln(out, line)
	}

	if report.Clean() {
		fmt.Fprintln(out, renderStatusLine("Files", statusOK, fmt.Sprintf("%d/%d verified", report.OK, report.Total), colorize))
		return
	}

	fmt.Fprintln(out, renderStatusLine("Files", statusError, fmt.Sprintf("%d/%d verified", report.OK, report.Total), colorize))
	for _, issue := range report.Issues {
		fmt.Fprintf(out, "  %s: %s\n", issue.Path, issue.Problem)
	}
}
