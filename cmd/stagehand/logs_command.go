package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"stagehand/internal/ipc"
	"stagehand/internal/logs"
)

func newLogsCommand(ctx *cliContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			initialLimit := lines
			if initialLimit < 0 {
				initialLimit = 0
			}
			initialOffset := int64(-1)
			if initialLimit == 0 {
				initialOffset = 0
			}

			client, dialErr := ipc.Dial(ctx.controlSocket())
			if dialErr != nil {
				if daemonUnreachable(dialErr) {
					return tailLogFile(cmd, ctx, initialOffset, initialLimit, follow)
				}
				return describeDialFailure(dialErr, ctx.controlSocket())
			}
			defer client.Close()

			cmdCtx := cmd.Context()
			offset := initialOffset
			limit := initialLimit
			printed := false

			for {
				resp, err := client.LogTail(ipc.LogTailRequest{
					Offset:     offset,
					Limit:      limit,
					Follow:     follow,
					WaitMillis: 1000,
				})
				if err != nil {
					return fmt.Errorf("tail logs: %w", err)
				}
				if resp == nil {
					return errors.New("log tail response missing")
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(cmd.OutOrStdout(), line)
					printed = true
				}
				offset = resp.Offset
				limit = 0
				if !follow {
					if !printed {
						fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
					}
					return nil
				}
				select {
				case <-cmdCtx.Done():
					return nil
				default:
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	return cmd
}

// tailLogFile reads the current daemon log directly when no daemon is
// listening on the socket.
func tailLogFile(cmd *cobra.Command, ctx *cliContext, offset int64, limit int, follow bool) error {
	cfg, err := ctx.resolveConfig()
	if err != nil {
		return err
	}
	logPath := filepath.Join(cfg.Paths.LogDir, "stagehand.log")

	cmdCtx := cmd.Context()
	printed := false
	for {
		result, err := logs.Tail(cmdCtx, logPath, logs.TailOptions{
			Offset: offset,
			Limit:  limit,
			Follow: follow,
			Wait:   time.Second,
		})
		if err != nil {
			return fmt.Errorf("tail %s: %w", logPath, err)
		}
		for _, line := range result.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		offset = result.Offset
		limit = 0
		if !follow {
			if !printed {
				fmt.Fprintf(cmd.OutOrStdout(), "No log entries at %s\n", logPath)
			}
			return nil
		}
		select {
		case <-cmdCtx.Done():
			return nil
		default:
		}
	}
}
