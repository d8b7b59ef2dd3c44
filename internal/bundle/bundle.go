// Package bundle packages an installed or staged tree into a distributable
// tarball, named after the plan identity and build configuration.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhoonb/archivex"

	"stagehand/internal/textutil"
)

// Options describe what to package and where to put it.
type Options struct {
	// Root is the tree to package; entries are stored relative to it.
	Root string
	// OutDir receives the bundle file.
	OutDir string

	Name    string
	Version string
	Config  string
}

// Result reports the written bundle.
type Result struct {
	Path  string
	Bytes int64
}

// FileName renders the bundle file name for a plan identity.
func FileName(name, version, config string) string {
	parts := []string{textutil.SanitizeFileName(name)}
	if v := textutil.SanitizeFileName(version); v != "" {
		parts = append(parts, v)
	}
	if c := textutil.SanitizeFileName(config); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, "-") + ".tar.gz"
}

// Create writes <name>-<version>-<config>.tar.gz under OutDir from the tree
// at Root. An existing bundle with the same name is replaced.
func Create(opts Options) (Result, error) {
	root := strings.TrimSpace(opts.Root)
	if root == "" {
		return Result{}, fmt.Errorf("bundle: tree to package is required")
	}
	if strings.TrimSpace(opts.Name) == "" {
		return Result{}, fmt.Errorf("bundle: plan name is required")
	}

	info, err := os.Stat(root)
	if err != nil {
		return Result{}, fmt.Errorf("bundle: stat tree: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("bundle: %s is not a directory", root)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return Result{}, fmt.Errorf("bundle: read tree: %w", err)
	}
	if len(entries) == 0 {
		return Result{}, fmt.Errorf("bundle: %s is empty, nothing to package", root)
	}

	outDir := strings.TrimSpace(opts.OutDir)
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("bundle: create output directory: %w", err)
	}

	outPath := filepath.Join(outDir, FileName(opts.Name, opts.Version, opts.Config))

	tarball := new(archivex.TarFile)
	if err := tarball.Create(outPath); err != nil {
		return Result{}, fmt.Errorf("bundle: create archive: %w", err)
	}
	if err := tarball.AddAll(root, false); err != nil {
		tarball.Close()
		os.Remove(outPath)
		return Result{}, fmt.Errorf("bundle: add tree: %w", err)
	}
	if err := tarball.Close(); err != nil {
		os.Remove(outPath)
		return Result{}, fmt.Errorf("bundle: finalize archive: %w", err)
	}

	written, err := os.Stat(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("bundle: stat archive: %w", err)
	}
	return Result{Path: outPath, Bytes: written.Size()}, nil
}
