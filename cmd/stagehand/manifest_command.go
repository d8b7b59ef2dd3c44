package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stagehand/internal/manifest"
)

type manifestView struct {
	Path  string   `json:"path"`
	Count int      `json:"count"`
	Files []string `json:"files"`
}

func newManifestCommand(ctx *cliContext) *cobra.Command {
	var prefix string
	var component string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Show the install manifest for a prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.resolveConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if strings.TrimSpace(prefix) == "" {
				prefix = cfg.Install.Prefix
			}

			manifestPath := manifest.Path(prefix, strings.ToLower(strings.TrimSpace(component)))
			paths, err := manifest.Read(manifestPath)
			if err != nil {
				return fmt.Errorf("no manifest at %s: %w", manifestPath, err)
			}

			if jsonOut {
				return printJSON(cmd, manifestView{Path: manifestPath, Count: len(paths), Files: paths})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Manifest %s (%d files)\n", manifestPath, len(paths))
			for _, path := range paths {
				fmt.Fprintln(out, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Install prefix (default: configured install prefix)")
	cmd.Flags().StringVar(&component, "component", "", "Component manifest to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the manifest as JSON")
	return cmd
}
