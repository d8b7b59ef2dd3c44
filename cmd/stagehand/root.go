package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		socketFlag string
		configFlag string
	)
	ctx := newCLIContext(&socketFlag, &configFlag)

	root := &cobra.Command{
		Use:           "stagehand",
		Short:         "Install pre-built artifacts into a prefix according to an install plan",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsConfigLoad(cmd) {
				return nil
			}
			_, err := ctx.resolveConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to the stagehand daemon socket")
	root.PersistentFlags().StringVar(&configFlag, "config-file", "", "Configuration file path")

	root.AddCommand(
		newInstallCommand(ctx),
		newUninstallCommand(ctx),
		newVerifyCommand(ctx),
		newPlanCommand(ctx),
		newManifestCommand(ctx),
		newBundleCommand(ctx),
		newHistoryCommand(ctx),
		newJobsCommand(ctx),
		newDaemonCommand(ctx),
		newConfigCommand(ctx),
		newStatusCommand(ctx),
		newLogsCommand(ctx),
		newVersionCommand(),
	)
	return root
}
