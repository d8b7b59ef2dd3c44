package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stagehand/internal/daemonctl"
	"stagehand/internal/daemonrun"
	"stagehand/internal/ipc"
)

const (
	daemonStopTimeout  = 5 * time.Second
	daemonStartTimeout = 10 * time.Second
)

func newDaemonCommand(ctx *cliContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the background install daemon",
	}

	daemonCmd.AddCommand(
		newDaemonRunCommand(ctx),
		newDaemonStartCommand(ctx),
		newDaemonStopCommand(ctx),
		newDaemonRestartCommand(ctx),
		newDaemonStatusCommand(ctx),
	)
	return daemonCmd
}

func newDaemonRunCommand(ctx *cliContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolveConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			level := strings.TrimSpace(logLevel)
			if level == "" {
				level = cfg.Logging.Level
			}

			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    level,
				SocketPath:  flagValue(ctx.socketArg),
				Development: ctx.logDevelopment(cfg),
			})
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	return cmd
}

func newDaemonStartCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			bin, err := daemonExecutable()
			if err != nil {
				return err
			}

			res, err := daemonctl.EnsureStarted(ctx.controlSocket(), bin, daemonLaunchOptions(ctx), daemonStartTimeout)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Launched {
				fmt.Fprintln(out, "No daemon running, launching one...")
			}
			printStartOutcome(out, res, false)
			return nil
		},
	}
}

func newDaemonStopCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon process",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			res, err := daemonctl.StopAndTerminate(ctx.controlSocket(), ctx.configOrNil(), daemonStopTimeout)
			switch {
			case errors.Is(err, daemonctl.ErrDaemonNotRunning):
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			case err != nil:
				return err
			}

			if res.Acked {
				fmt.Fprintln(out, "Asking the daemon to stop...")
			} else {
				fmt.Fprintln(out, "Stop requested")
			}
			printStopTail(out, res)
			return nil
		},
	}
}

func newDaemonRestartCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			bin, err := daemonExecutable()
			if err != nil {
				return err
			}

			res, err := daemonctl.Restart(
				ctx.controlSocket(),
				ctx.configOrNil(),
				bin,
				daemonLaunchOptions(ctx),
				daemonStopTimeout,
				daemonStartTimeout,
			)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.WasRunning {
				printStopTail(out, res.Stop)
			}
			printStartOutcome(out, res.Start, true)
			return nil
		},
	}
}

func newDaemonStatusCommand(ctx *cliContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show live daemon state",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			client, err := ctx.dialDaemon()
			if err != nil {
				if jsonOut {
					return err
				}
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			defer client.Close()

			status, err := client.Status()
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, status)
			}

			for _, row := range daemonStatusLines(status, shouldColorize(out)) {
				fmt.Fprintln(out, row)
			}
			fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusColWidth, "Socket:", ctx.controlSocket())
			fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusColWidth, "Registry:", status.RegistryPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the status as JSON")
	return cmd
}

// printStartOutcome echoes the daemon start res. After a restart both the
// started and already-running states collapse into one confirmation line.
func printStartOutcome(out io.Writer, start daemonctl.StartResult, restarted bool) {
	switch start.State {
	case daemonctl.StartStateStarted:
		if restarted {
			fmt.Fprintln(out, "Daemon restarted")
			return
		}
		fmt.Fprintln(out, "Daemon started")
	case daemonctl.StartStateAlreadyRunning:
		if restarted {
			fmt.Fprintln(out, "Daemon restarted")
			return
		}
		fmt.Fprintln(out, "Daemon already running")
	case daemonctl.StartStateRequested:
		if msg := strings.TrimSpace(start.Message); msg != "" {
			fmt.Fprintln(out, msg)
			return
		}
		fmt.Fprintln(out, "Start request sent")
	}
}

func printStopTail(out io.Writer, stop daemonctl.StopResult) {
	if stop.Forced && stop.PID > 0 {
		fmt.Fprintf(out, "Stopping daemon process (pid %d)...\n", stop.PID)
	}
	fmt.Fprintln(out, "Daemon stopped")
}

// daemonStatusLines renders the live status sections reported by the daemon
// itself. Socket and registry paths are appended by the caller since the
// socket path comes from the CLI flags rather than the response.
func daemonStatusLines(status *ipc.StatusResponse, colorize bool) []string {
	rows := renderSectionHeader("Daemon", colorize)

	if status.Running {
		rows = append(rows, renderStatusLine("Workflow", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		rows = append(rows, renderStatusLine("Workflow", statusWarn, "Stopped", colorize))
	}

	monitorKind, monitorDetail := statusInfo, "Inactive"
	if status.DropMonitoring {
		monitorKind, monitorDetail = statusOK, "Watching"
	}
	rows = append(rows, renderStatusLine("Drop monitor", monitorKind, monitorDetail, colorize))

	for _, stage := range status.StageHealth {
		label := formatStatusLabel(stage.Name)
		if stage.Ready {
			rows = append(rows, renderStatusLine(label, statusOK, "Ready", colorize))
			continue
		}
		detail := stage.Detail
		if detail == "" {
			detail = "Not ready"
		}
		rows = append(rows, renderStatusLine(label, statusWarn, detail, colorize))
	}

	if status.LastError != "" {
		rows = append(rows, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}
	return rows
}

func daemonExecutable() (string, error) {
	bin, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate own executable: %w", err)
	}
	return bin, nil
}

// flagValue reads an optional persistent flag, tolerating commands built
// without the flag registered.
func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func daemonLaunchOptions(ctx *cliContext) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		SocketPath: flagValue(ctx.socketArg),
		ConfigPath: flagValue(ctx.configArg),
	}
}
