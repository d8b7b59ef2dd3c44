package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"stagehand/internal/bundle"
	"stagehand/internal/registry"
)

type bundleResultView struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

func newBundleCommand(ctx *cliContext) *cobra.Command {
	var name string
	var version string
	var configuration string
	var outDir string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "bundle [tree]",
		Short: "Package an installed tree into a tarball",
		Long: "Package an installed tree into a <name>-<version>-<config>.tar.gz bundle. " +
			"The tree defaults to the configured install prefix; when no --name is given " +
			"the identity comes from the latest recorded run for that prefix.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolveConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			tree := cfg.Install.Prefix
			if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
				tree = args[0]
			}
			tree, err = filepath.Abs(tree)
			if err != nil {
				return fmt.Errorf("resolve tree: %w", err)
			}

			if strings.TrimSpace(name) == "" {
				store, err := registry.Open(cfg)
				if err != nil {
					return fmt.Errorf("open registry: %w", err)
				}
				run, err := store.LatestRunForPrefix(cmd.Context(), tree)
				store.Close()
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("no recorded run for %s; name the bundle with --name", tree)
				}
				name = run.PlanName
				if strings.TrimSpace(version) == "" {
					version = run.PlanVersion
				}
				if strings.TrimSpace(configuration) == "" {
					configuration = run.Configuration
				}
			}

			if strings.TrimSpace(outDir) == "" {
				outDir = cfg.Paths.BundleDir
			}

			result, err := bundle.Create(bundle.Options{
				Root:    tree,
				OutDir:  outDir,
				Name:    name,
				Version: version,
				Config:  configuration,
			})
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(cmd, bundleResultView{Path: result.Path, Bytes: result.Bytes})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", result.Path, formatBytes(result.Bytes))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Bundle name (default: plan name from the latest run)")
	cmd.Flags().StringVar(&version, "version", "", "Bundle version")
	cmd.Flags().StringVarP(&configuration, "config", "c", "", "Build configuration recorded in the bundle name")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: configured bundle directory)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the bundle result as JSON")
	return cmd
}
