package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stagehand/internal/install"
	"stagehand/internal/ipc"
	"stagehand/internal/logging"
	"stagehand/internal/plan"
	"stagehand/internal/registry"
	"stagehand/internal/stage"
)

type installFileView struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Component string `json:"component,omitempty"`
	Outcome   string `json:"outcome"`
	Size      int64  `json:"size"`
	SHA256    string `json:"sha256,omitempty"`
}

type installSkippedView struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

type installResultView struct {
	RunID         string               `json:"run_id,omitempty"`
	Plan          string               `json:"plan"`
	Version       string               `json:"version,omitempty"`
	Configuration string               `json:"configuration"`
	Component     string               `json:"component,omitempty"`
	Prefix        string               `json:"prefix"`
	DestDir       string               `json:"destdir,omitempty"`
	Root          string               `json:"root"`
	DryRun        bool                 `json:"dry_run"`
	Installed     int                  `json:"installed"`
	UpToDate      int                  `json:"up_to_date"`
	SkippedCount  int                  `json:"skipped"`
	TotalBytes    int64                `json:"total_bytes"`
	Manifest      string               `json:"manifest,omitempty"`
	DurationMS    int64                `json:"duration_ms"`
	Files         []installFileView    `json:"files"`
	Skipped       []installSkippedView `json:"skipped_files,omitempty"`
}

func buildInstallResultView(result *install.Result) installResultView {
	view := installResultView{
		RunID:         result.RunID,
		Plan:          result.PlanName,
		Version:       result.PlanVersion,
		Configuration: result.Configuration.String(),
		Component:     result.Component,
		Prefix:        result.Prefix,
		DestDir:       result.DestDir,
		Root:          result.Root,
		DryRun:        result.DryRun,
		Installed:     result.InstalledCount,
		UpToDate:      result.UpToDateCount,
		SkippedCount:  result.SkippedCount,
		TotalBytes:    result.TotalBytes,
		Manifest:      result.ManifestPath,
		DurationMS:    result.Duration.Milliseconds(),
		Files:         make([]installFileView, 0, len(result.Files)),
	}
	for _, file := range result.Files {
		view.Files = append(view.Files, installFileView{
			Path:      file.Path,
			Kind:      string(file.Action.Kind),
			Component: file.Action.Component,
			Outcome:   file.Outcome,
			Size:      file.Size,
			SHA256:    file.SHA256,
		})
	}
	for _, skip := range result.Skipped {
		view.Skipped = append(view.Skipped, installSkippedView{
			Source: skip.Source,
			Kind:   string(skip.Kind),
			Reason: skip.Reason,
		})
	}
	return view
}

func newInstallCommand(ctx *cliContext) *cobra.Command {
	var planPath string
	var configuration string
	var component string
	var prefix string
	var destDir string
	var dryRun bool
	var noManifest bool
	var queueJob bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "install [build-tree]",
		Short: "Install plan artifacts from a build tree into the prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree := "."
			if len(args) > 0 {
				tree = args[0]
			}
			tree, err := filepath.Abs(tree)
			if err != nil {
				return fmt.Errorf("resolve build tree: %w", err)
			}

			if queueJob {
				if planPath != "" || prefix != "" || destDir != "" || dryRun || noManifest {
					return errors.New("--queue submits to the daemon; only --config and --component apply")
				}
				return ctx.withDaemon(func(client *ipc.Client) error {
					resp, err := client.Submit(ipc.SubmitRequest{
						BuildTree:     tree,
						Configuration: configuration,
						Component:     component,
					})
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued install job #%d (%s)\n", resp.Job.ID, filepath.Base(tree))
					return nil
				})
			}

			cfg, err := ctx.resolveConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			var p *plan.Plan
			if strings.TrimSpace(planPath) != "" {
				p, err = plan.Load(planPath)
				if err != nil {
					return err
				}
			} else {
				p, _, err = stage.LoadPlan(tree)
				if err != nil {
					return err
				}
			}

			logger, err := logging.New(logging.Options{
				Level:            cfg.Logging.Level,
				Format:           cfg.Logging.Format,
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}

			out := cmd.OutOrStdout()
			var onProgress func(install.Progress)
			if !jsonOut {
				onProgress = func(prog install.Progress) {
					if prog.Outcome == "" {
						return
					}
					line := fmt.Sprintf("[%d/%d] %-10s %s", prog.Index, prog.Total, prog.Outcome, prog.Path)
					if prog.Outcome == install.OutcomeInstalled {
						line += fmt.Sprintf(" (%s)", formatBytes(prog.Bytes))
					}
					fmt.Fprintln(out, line)
				}
			}

			engine := install.New(cfg, logger)
			result, err := engine.Run(cmd.Context(), install.Request{
				Plan:          p,
				BuildTree:     tree,
				Prefix:        prefix,
				DestDir:       destDir,
				Configuration: configuration,
				Component:     component,
				DryRun:        dryRun,
				SkipManifest:  noManifest,
				OnProgress:    onProgress,
			})
			if err != nil {
				return err
			}

			if !result.DryRun {
				store, err := registry.Open(cfg)
				if err != nil {
					return fmt.Errorf("open registry: %w", err)
				}
				defer store.Close()
				run, files := install.RunRecord(result, 0)
				if err := store.RecordRun(cmd.Context(), run, files); err != nil {
					return fmt.Errorf("record run history: %w", err)
				}
			}

			if jsonOut {
				return printJSON(cmd, buildInstallResultView(result))
			}
			printInstallSummary(out, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "Install plan path (default: install.toml in the build tree)")
	cmd.Flags().StringVarP(&configuration, "config", "c", "", "Build configuration (Debug, Release, MinSizeRel, RelWithDebInfo)")
	cmd.Flags().StringVar(&component, "component", "", "Install only the named component")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Install prefix (default: configured install prefix)")
	cmd.Flags().StringVar(&destDir, "destdir", "", "Staging root prepended to the prefix")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Resolve and report actions without writing anything")
	cmd.Flags().BoolVar(&noManifest, "no-manifest", false, "Skip writing the install manifest")
	cmd.Flags().BoolVar(&queueJob, "queue", false, "Submit the build tree to the daemon instead of installing directly")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the run result as JSON")
	return cmd
}

func printInstallSummary(out io.Writer, result *install.Result) {
	verb := "Installed"
	if result.DryRun {
		verb = "Would install"
	}
	title := result.PlanName
	if result.PlanVersion != "" {
		title = fmt.Sprintf("%s %s", result.PlanName, result.PlanVersion)
	}
	fmt.Fprintf(out, "%s %s [%s] into %s\n", verb, title, result.Configuration, result.Root)
	fmt.Fprintf(out, "  %d installed, %d up-to-date, %d skipped, %s copied in %s\n",
		result.InstalledCount,
		result.UpToDateCount,
		result.SkippedCount,
		formatBytes(result.TotalBytes),
		result.Duration.Round(time.Millisecond),
	)
	for _, skip := range result.Skipped {
		fmt.Fprintf(out, "  skipped %s: %s\n", skip.Source, skip.Reason)
	}
	if result.ManifestPath != "" {
		fmt.Fprintf(out, "  manifest: %s\n", result.ManifestPath)
	}
}
