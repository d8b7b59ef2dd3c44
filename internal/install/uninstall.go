package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stagehand/internal/logging"
	"stagehand/internal/services"
)

// Removal is a validated set of installed files to take out of a prefix.
type Removal struct {
	Prefix       string
	Paths        []string // absolute, each verified to sit under Prefix
	ManifestPath string   // optional manifest file removed after the set
}

// PrepareRemoval validates recorded paths before anything is deleted. A
// single path outside the prefix refuses the whole removal.
func PrepareRemoval(prefix string, paths []string) (*Removal, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, services.Wrap(services.ErrValidation, "uninstall", "validate prefix", "Install prefix is required", nil)
	}
	prefix, err := filepath.Abs(prefix)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "uninstall", "validate prefix", fmt.Sprintf("Cannot resolve prefix %q", prefix), err)
	}

	removal := &Removal{Prefix: prefix, Paths: make([]string, 0, len(paths))}
	seen := make(map[string]struct{}, len(paths))
	for _, raw := range paths {
		cleaned := filepath.Clean(strings.TrimSpace(raw))
		if cleaned == "" || cleaned == "." {
			continue
		}
		if !filepath.IsAbs(cleaned) || !underPrefix(prefix, cleaned) {
			return nil, services.Wrap(
				services.ErrValidation,
				"uninstall",
				"safety check",
				fmt.Sprintf("Recorded path %s is outside prefix %s", raw, prefix),
				nil,
			)
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		removal.Paths = append(removal.Paths, cleaned)
	}
	return removal, nil
}

// UninstallResult summarizes a removal.
type UninstallResult struct {
	Prefix  string
	Removed []string
	Missing []string
	Pruned  []string
	DryRun  bool
}

// Uninstall removes exactly the files in the removal set, then prunes
// directories under the prefix that the removal emptied, deepest first.
// Files already absent are reported, not treated as errors, so repeating
// an uninstall is harmless.
func (e *Engine) Uninstall(ctx context.Context, removal *Removal, dryRun bool) (*UninstallResult, error) {
	logger := logging.WithContext(ctx, e.logger)
	if removal == nil {
		return nil, services.Wrap(services.ErrValidation, "uninstall", "validate request", "Removal set is required", nil)
	}

	result := &UninstallResult{Prefix: removal.Prefix, DryRun: dryRun}
	if dryRun {
		for _, path := range removal.Paths {
			if _, err := os.Stat(path); err != nil {
				result.Missing = append(result.Missing, path)
				continue
			}
			result.Removed = append(result.Removed, path)
		}
		return result, nil
	}

	lock, err := e.acquireLock(ctx, removal.Prefix)
	if err != nil {
		return nil, err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("failed to release prefix lock", logging.Error(unlockErr))
		}
	}()

	for _, path := range removal.Paths {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrTransient, "uninstall", "remove files", "Uninstall interrupted", err)
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				result.Missing = append(result.Missing, path)
				continue
			}
			return nil, services.Wrap(services.ErrTransient, "uninstall", "remove files", fmt.Sprintf("Cannot remove %s", path), err)
		}
		result.Removed = append(result.Removed, path)
	}

	if removal.ManifestPath != "" {
		if err := os.Remove(removal.ManifestPath); err == nil {
			result.Removed = append(result.Removed, removal.ManifestPath)
		} else if !os.IsNotExist(err) {
			logger.Warn("failed to remove manifest", logging.String("path", removal.ManifestPath), logging.Error(err))
		}
	}

	result.Pruned = pruneEmptyDirs(removal.Prefix, result.Removed)
	logger.Info(
		"uninstall completed",
		logging.String("prefix", removal.Prefix),
		logging.Int("removed", len(result.Removed)),
		logging.Int("missing", len(result.Missing)),
		logging.Int("pruned_dirs", len(result.Pruned)),
	)
	return result, nil
}

// pruneEmptyDirs removes now-empty ancestor directories of the removed
// files, stopping at the prefix root. Non-empty directories are left alone;
// os.Remove refuses them.
func pruneEmptyDirs(prefix string, removed []string) []string {
	seen := make(map[string]struct{})
	var candidates []string
	for _, file := range removed {
		dir := filepath.Dir(file)
		for dir != prefix && underPrefix(prefix, dir) {
			if _, ok := seen[dir]; !ok {
				seen[dir] = struct{}{}
				candidates = append(candidates, dir)
			}
			dir = filepath.Dir(dir)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return strings.Count(candidates[i], string(filepath.Separator)) > strings.Count(candidates[j], string(filepath.Separator))
	})

	var pruned []string
	for _, dir := range candidates {
		if err := os.Remove(dir); err == nil {
			pruned = append(pruned, dir)
		}
	}
	return pruned
}

func underPrefix(prefix, path string) bool {
	rel, err := filepath.Rel(prefix, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
