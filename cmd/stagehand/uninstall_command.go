package main

import (
	"fmt"
	"strings"

	"github.com/Songmu/prompter"
	"github.com/spf13/cobra"

	"stagehand/internal/install"
	"stagehand/internal/logging"
	"stagehand/internal/manifest"
)

type uninstallResultView struct {
	Prefix  string   `json:"prefix"`
	DryRun  bool     `json:"dry_run"`
	Removed []string `json:"removed"`
	Missing []string `json:"missing,omitempty"`
	Pruned  []string `json:"pruned,omitempty"`
}

func newUninstallCommand(ctx *cliContext) *cobra.Command {
	var prefix string
	var component string
	var manifestPath string
	var dryRun bool
	var assumeYes bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove files recorded in the install manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolveConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			if strings.TrimSpace(prefix) == "" {
				prefix = cfg.Install.Prefix
			}
			if strings.TrimSpace(manifestPath) == "" {
				manifestPath = manifest.Path(prefix, strings.ToLower(strings.TrimSpace(component)))
			}

			paths, err := manifest.Read(manifestPath)
			if err != nil {
				return fmt.Errorf("no manifest at %s; nothing to uninstall: %w", manifestPath, err)
			}

			removal, err := install.PrepareRemoval(prefix, paths)
			if err != nil {
				return err
			}
			removal.ManifestPath = manifestPath

			out := cmd.OutOrStdout()
			if len(removal.Paths) == 0 {
				fmt.Fprintf(out, "Manifest %s lists no files\n", manifestPath)
				return nil
			}

			if !dryRun && !assumeYes {
				question := fmt.Sprintf("Remove %d files from %s?", len(removal.Paths), removal.Prefix)
				if !prompter.YN(question, false) {
					fmt.Fprintln(out, "Aborted")
					return nil
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

			engine := install.New(cfg, logger)
			result, err := engine.Uninstall(cmd.Context(), removal, dryRun)
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, uninstallResultView{
					Prefix:  result.Prefix,
					DryRun:  result.DryRun,
					Removed: result.Removed,
					Missing: result.Missing,
					Pruned:  result.Pruned,
				})
			}

			if result.DryRun {
				fmt.Fprintf(out, "Would remove %d files from %s (%d already absent)\n", len(result.Removed), result.Prefix, len(result.Missing))
				for _, path := range result.Removed {
					fmt.Fprintf(out, "  %s\n", path)
				}
				return nil
			}

			fmt.Fprintf(out, "Removed %d files from %s\n", len(result.Removed), result.Prefix)
			if len(result.Missing) > 0 {
				fmt.Fprintf(out, "  %d recorded files were already absent\n", len(result.Missing))
			}
			if len(result.Pruned) > 0 {
				fmt.Fprintf(out, "  pruned %d empty directories\n", len(result.Pruned))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Install prefix (default: configured install prefix)")
	cmd.Flags().StringVar(&component, "component", "", "Uninstall the named component's manifest")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Explicit manifest path (default: derived from prefix and component)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Report what would be removed without deleting anything")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the removal result as JSON")
	return cmd
}
