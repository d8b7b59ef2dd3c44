package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stagehand/internal/ipc"
	"stagehand/internal/registry"
)

func newJobsCommand(ctx *cliContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage queued install jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsDescribeCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *cliContext) *cobra.Command {
	var listStatuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued install jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(client *ipc.Client, store *registry.Store) error {
				var jobs []ipc.JobSummary

				if client != nil {
					resp, err := client.JobsList(listStatuses)
					if err != nil {
						return err
					}
					jobs = resp.Jobs
				} else {
					statuses := make([]registry.Status, 0, len(listStatuses))
					for _, raw := range listStatuses {
						status, ok := registry.ParseStatus(raw)
						if !ok {
							return fmt.Errorf("unknown status %q", raw)
						}
						statuses = append(statuses, status)
					}
					items, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					jobs = make([]ipc.JobSummary, 0, len(items))
					for _, item := range items {
						jobs = append(jobs, ipc.FromJob(item))
					}
				}

				if jsonOut {
					return printJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs queued")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Plan", "Config", "Component", "Status", "Progress", "Created"},
					buildJobListRows(jobs),
					[]colAlign{colRight, colLeft, colLeft, colLeft, colLeft, colLeft, colLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit jobs as JSON")
	return cmd
}

func newJobsDescribeCommand(ctx *cliContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "describe <job-id>",
		Short: "Show details for one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			return ctx.withStore(func(client *ipc.Client, store *registry.Store) error {
				var job ipc.JobSummary

				if client != nil {
					resp, err := client.JobsDescribe(id)
					if err != nil {
						return err
					}
					job = resp.Job
				} else {
					item, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if item == nil {
						return fmt.Errorf("job %d not found", id)
					}
					job = ipc.FromJob(item)
				}

				if jsonOut {
					return printJSON(cmd, job)
				}
				renderJobDetail(cmd, job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the job as JSON")
	return cmd
}

func renderJobDetail(cmd *cobra.Command, job ipc.JobSummary) {
	out := cmd.OutOrStdout()
	for _, line := range renderSectionHeader(fmt.Sprintf("Job #%d", job.ID), shouldColorize(out)) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Title:         %s\n", jobTitle(job))
	fmt.Fprintf(out, "Status:        %s\n", formatStatusLabel(job.Status))
	if job.Configuration != "" {
		fmt.Fprintf(out, "Configuration: %s\n", job.Configuration)
	}
	if job.Component != "" {
		fmt.Fprintf(out, "Component:     %s\n", job.Component)
	}
	fmt.Fprintf(out, "Build tree:    %s\n", job.DropPath)
	if job.StagedPath != "" {
		fmt.Fprintf(out, "Staged at:     %s\n", job.StagedPath)
	}
	if job.RunID != "" {
		fmt.Fprintf(out, "Run:           %s\n", shortID(job.RunID))
	}
	if progress := jobProgress(job); progress != "" {
		fmt.Fprintf(out, "Progress:      %s\n", progress)
	}
	if job.ProgressMessage != "" {
		fmt.Fprintf(out, "Message:       %s\n", job.ProgressMessage)
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:         %s\n", job.ErrorMessage)
	}
	if job.NeedsReview {
		fmt.Fprintf(out, "Review:        %s\n", job.ReviewReason)
	}
	if job.CreatedAt != "" {
		fmt.Fprintf(out, "Created:       %s\n", formatDisplayTime(job.CreatedAt))
	}
	if job.UpdatedAt != "" {
		fmt.Fprintf(out, "Updated:       %s\n", formatDisplayTime(job.UpdatedAt))
	}
}

func newJobsRetryCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Retry failed or review jobs",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid job id %q", arg)
				}
				ids = append(ids, id)
			}

			return ctx.withStore(func(client *ipc.Client, store *registry.Store) error {
				out := cmd.OutOrStdout()
				var updated int64

				if client != nil {
					resp, err := client.JobsRetry(ids)
					if err != nil {
						return err
					}
					updated = resp.Updated
				} else {
					var err error
					updated, err = store.RetryFailed(cmd.Context(), ids...)
					if err != nil {
						return err
					}
				}

				if len(ids) == 0 {
					fmt.Fprintf(out, "Retried %d failed jobs\n", updated)
					return nil
				}
				if updated == 0 {
					fmt.Fprintln(out, "No matching jobs were in a retryable state")
					return nil
				}
				fmt.Fprintf(out, "Reset %d of %d jobs for retry\n", updated, len(ids))
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *cliContext) *cobra.Command {
	var clearCompleted bool
	var clearFailed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearCompleted && clearFailed {
				return errors.New("specify only one of --completed or --failed")
			}
			scope := ""
			switch {
			case clearCompleted:
				scope = "completed"
			case clearFailed:
				scope = "failed"
			}

			return ctx.withStore(func(client *ipc.Client, store *registry.Store) error {
				var removed int64

				if client != nil {
					resp, err := client.JobsClear(scope)
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					var err error
					switch scope {
					case "completed":
						removed, err = store.ClearCompleted(cmd.Context())
					case "failed":
						removed, err = store.ClearFailed(cmd.Context())
					default:
						removed, err = store.Clear(cmd.Context())
					}
					if err != nil {
						return err
					}
				}

				label := "jobs"
				if scope != "" {
					label = scope + " jobs"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearCompleted, "completed", false, "Remove only completed jobs")
	cmd.Flags().BoolVar(&clearFailed, "failed", false, "Remove only failed jobs")
	return cmd
}
