package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"stagehand/internal/config"
	"stagehand/internal/plan"
	"stagehand/internal/registry"
)

// CheckDirectoryAccess verifies that the directory exists and is readable,
// writable, and traversable.
func CheckDirectoryAccess(name, path string) Result {
	const rwx = unix.R_OK | unix.W_OK | unix.X_OK

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no such directory)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat failed: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a directory)", path)}
	}
	if err := unix.Access(path, rwx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: access denied: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (accessible)", path)}
}

// CheckInstallPrefix verifies that the install target is writable, or that
// it can be created under its nearest existing ancestor. With a destdir
// configured the staged root is what gets written, so that is what is
// checked.
func CheckInstallPrefix(cfg *config.Config) Result {
	const name = "Install prefix"

	prefix := strings.TrimSpace(cfg.Install.Prefix)
	if prefix == "" {
		return Result{Name: name, Detail: "not configured"}
	}

	target := filepath.Clean(prefix)
	if destDir := strings.TrimSpace(cfg.Install.DestDir); destDir != "" {
		target = filepath.Join(destDir, prefix)
	}

	info, err := os.Stat(target)
	switch {
	case err == nil:
		if !info.IsDir() {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a directory)", target)}
		}
		if err := unix.Access(target, unix.W_OK|unix.X_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: not writable: %v)", target, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (writable)", target)}
	case os.IsNotExist(err):
		ancestor := nearestExisting(target)
		if ancestor == "" {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: no existing ancestor)", target)}
		}
		if err := unix.Access(ancestor, unix.W_OK|unix.X_OK); err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", target, ancestor, err)}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created under %s)", target, ancestor)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", target, err)}
	}
}

// nearestExisting walks up from path until a directory that exists is found.
func nearestExisting(path string) string {
	current := filepath.Clean(path)
	for {
		info, err := os.Stat(current)
		if err == nil && info.IsDir() {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return ""
		}
		current = parent
	}
}

// CheckDropPlans scans the drop directory and parses every plan it finds.
// Directories without a plan file are not build trees and do not count.
func CheckDropPlans(dropDir string) Result {
	const name = "Drop plans"

	entries, err := os.ReadDir(dropDir)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", dropDir, err)}
	}

	valid, invalid := 0, 0
	firstBroken := ""
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tree := filepath.Join(dropDir, entry.Name())
		planPath, err := plan.Locate(tree)
		if err != nil {
			continue
		}
		if _, err := plan.Load(planPath); err != nil {
			invalid++
			if firstBroken == "" {
				firstBroken = entry.Name()
			}
			continue
		}
		valid++
	}

	if invalid > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%d valid, %d invalid (first: %s)", valid, invalid, firstBroken)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d build trees ready", valid)}
}

// CheckRegistry opens the registry database and runs its health probe.
func CheckRegistry(ctx context.Context, cfg *config.Config) Result {
	const name = "Registry"

	store, err := registry.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open failed: %v", err)}
	}
	defer store.Close()

	health, err := store.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", health.DBPath, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (ok)", health.DBPath)}
}
