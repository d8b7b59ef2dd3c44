package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stagehand/internal/registry"
)

type runView struct {
	ID            string `json:"id"`
	JobID         int64  `json:"job_id,omitempty"`
	Plan          string `json:"plan"`
	Version       string `json:"version,omitempty"`
	Configuration string `json:"configuration"`
	Component     string `json:"component,omitempty"`
	Prefix        string `json:"prefix"`
	DestDir       string `json:"destdir,omitempty"`
	Installed     int    `json:"installed"`
	UpToDate      int    `json:"up_to_date"`
	Skipped       int    `json:"skipped"`
	TotalBytes    int64  `json:"total_bytes"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at,omitempty"`
}

type runFileView struct {
	Path      string `json:"path"`
	Action    string `json:"action"`
	Kind      string `json:"kind,omitempty"`
	Component string `json:"component,omitempty"`
	Size      int64  `json:"size"`
	SHA256    string `json:"sha256,omitempty"`
}

type runDetailView struct {
	runView
	Files []runFileView `json:"files"`
}

func buildRunView(run *registry.Run) runView {
	view := runView{
		ID:            run.ID,
		JobID:         run.JobID,
		Plan:          run.PlanName,
		Version:       run.PlanVersion,
		Configuration: run.Configuration,
		Component:     run.Component,
		Prefix:        run.Prefix,
		DestDir:       run.DestDir,
		Installed:     run.InstalledCount,
		UpToDate:      run.UpToDateCount,
		Skipped:       run.SkippedCount,
		TotalBytes:    run.TotalBytes,
		Status:        run.Status,
		Error:         run.ErrorMessage,
		StartedAt:     run.StartedAt.UTC().Format(time.RFC3339),
	}
	if run.FinishedAt != nil {
		view.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func newHistoryCommand(ctx *cliContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded install runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolveConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			store, err := registry.Open(cfg)
			if err != nil {
				return fmt.Errorf("open registry: %w", err)
			}
			defer store.Close()

			if len(args) > 0 {
				return describeRun(cmd, store, args[0], jsonOut)
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				views := make([]runView, 0, len(runs))
				for _, run := range runs {
					views = append(views, buildRunView(run))
				}
				return printJSON(cmd, views)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No install runs recorded")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				title := run.PlanName
				if run.PlanVersion != "" {
					title = fmt.Sprintf("%s %s", run.PlanName, run.PlanVersion)
				}
				rows = append(rows, []string{
					shortID(run.ID),
					title,
					run.Configuration,
					run.Prefix,
					fmt.Sprintf("%d", run.InstalledCount),
					fmt.Sprintf("%d", run.UpToDateCount),
					formatBytes(run.TotalBytes),
					formatStatusLabel(run.Status),
					run.StartedAt.UTC().Format("2006-01-02 15:04"),
				})
			}
			table := renderTable(
				[]string{"Run", "Plan", "Config", "Prefix", "Installed", "Up-To-Date", "Bytes", "Status", "Started"},
				rows,
				[]colAlign{colLeft, colLeft, colLeft, colLeft, colRight, colRight, colRight, colLeft, colLeft},
			)
			fmt.Fprint(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit runs as JSON")
	return cmd
}

func describeRun(cmd *cobra.Command, store *registry.Store, id string, jsonOut bool) error {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	files, err := store.RunFiles(cmd.Context(), run.ID)
	if err != nil {
		return err
	}

	if jsonOut {
		detail := runDetailView{runView: buildRunView(run)}
		for _, file := range files {
			detail.Files = append(detail.Files, runFileView{
				Path:      file.Path,
				Action:    file.Action,
				Kind:      file.Kind,
				Component: file.Component,
				Size:      file.Size,
				SHA256:    file.SHA256,
			})
		}
		return printJSON(cmd, detail)
	}

	out := cmd.OutOrStdout()
	title := run.PlanName
	if run.PlanVersion != "" {
		title = fmt.Sprintf("%s %s", run.PlanName, run.PlanVersion)
	}
	for _, line := range renderSectionHeader(fmt.Sprintf("Run %s", shortID(run.ID)), shouldColorize(out)) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Plan:          %s\n", title)
	fmt.Fprintf(out, "Configuration: %s\n", run.Configuration)
	if run.Component != "" {
		fmt.Fprintf(out, "Component:     %s\n", run.Component)
	}
	fmt.Fprintf(out, "Prefix:        %s\n", run.Prefix)
	if run.DestDir != "" {
		fmt.Fprintf(out, "DestDir:       %s\n", run.DestDir)
	}
	fmt.Fprintf(out, "Status:        %s\n", formatStatusLabel(run.Status))
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:         %s\n", run.ErrorMessage)
	}
	fmt.Fprintf(out, "Counts:        %d installed, %d up-to-date, %d skipped, %s\n",
		run.InstalledCount, run.UpToDateCount, run.SkippedCount, formatBytes(run.TotalBytes))
	fmt.Fprintf(out, "Started:       %s\n", run.StartedAt.UTC().Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, "Finished:      %s\n", run.FinishedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	if run.JobID != 0 {
		fmt.Fprintf(out, "Job:           #%d\n", run.JobID)
	}
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(files))
	for _, file := range files {
		rows = append(rows, []string{
			file.Path,
			file.Action,
			file.Kind,
			file.Component,
			formatBytes(file.Size),
		})
	}
	table := renderTable(
		[]string{"Path", "Action", "Kind", "Component", "Size"},
		rows,
		[]colAlign{colLeft, colLeft, colLeft, colLeft, colRight},
	)
	fmt.Fprint(out, table)
	return nil
}
