package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stagehand/internal/daemonctl"
)

func newStatusCommand(ctx *cliContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show system, preflight, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configOrNil()
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.controlSocket(), cfg)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, snapshot)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range snapshot.System {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}
			summary := daemonctl.BuildPreflightSummary(snapshot.Preflight)
			fmt.Fprintln(stdout, renderStatusLine(summary.Label, statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
			fmt.Fprintln(stdout)

			if len(snapshot.Preflight) > 0 {
				for _, line := range renderSectionHeader("Preflight Checks", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, check := range snapshot.Preflight {
					kind := statusOK
					detail := check.Detail
					if detail == "" {
						detail = "Passed"
					}
					if !check.Passed {
						kind = statusError
					}
					fmt.Fprintln(stdout, renderStatusLine(check.Name, kind, detail, colorize))
				}
				fmt.Fprintln(stdout)
			}

			if snapshot.LastJob != nil {
				job := *snapshot.LastJob
				fmt.Fprintf(stdout, "Last job: #%d %s (%s)\n\n", job.ID, jobTitle(job), formatStatusLabel(job.Status))
			}

			for _, line := range renderSectionHeader("Job Queue", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildQueueStatusRows(snapshot.QueueStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "No jobs queued")
				return nil
			}
			table := renderTable([]string{"Status", "Count"}, rows, []colAlign{colLeft, colRight})
			fmt.Fprint(stdout, table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the status snapshot as JSON")
	return cmd
}
