package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory and filename glob to prune, plus paths
// that must survive regardless of age.
type RetentionTarget struct {
	Dir  string
	Glob string
	Keep []string
}

// CleanupOldLogs removes files matching the targets that are older than the
// retention window in days. Zero or negative retention disables pruning.
// Removal failures are logged and skipped; the sweep never fails the caller.
func CleanupOldLogs(logger *slog.Logger, days int, targets ...RetentionTarget) {
	if days <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	keep := make(map[string]struct{})
	for _, t := range targets {
		for _, p := range t.Keep {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if abs, err := filepath.Abs(p); err == nil {
				keep[abs] = struct{}{}
			}
		}
	}

	for _, t := range targets {
		pruneTarget(logger, t, cutoff, keep)
	}
}

func pruneTarget(logger *slog.Logger, t RetentionTarget, cutoff time.Time, keep map[string]struct{}) {
	dir := strings.TrimSpace(t.Dir)
	if dir == "" {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	pattern := strings.TrimSpace(t.Glob)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if pattern != "" {
			if matched, err := filepath.Match(pattern, entry.Name()); err != nil || !matched {
				continue
			}
		}
		path := filepath.Join(dir, entry.Name())
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if _, skip := keep[path]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"),
			)
			continue
		}
		if logger != nil {
			logger.Info("log pruned",
				String("path", path),
				String(FieldEventType, "log_pruned"),
			)
		}
	}
}
