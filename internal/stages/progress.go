package stages

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"stagehand/internal/install"
	"stagehand/internal/logging"
	"stagehand/internal/registry"
)

// reportProgress bridges engine callbacks onto the job's progress columns.
// Failures to persist progress are logged and swallowed; they must never
// abort a running install.
func reportProgress(ctx context.Context, store *registry.Store, logger *slog.Logger, job *registry.Job, label string) func(install.Progress) {
	return func(p install.Progress) {
		job.ProgressStage = label
		job.ProgressPercent = p.Percent
		if p.Outcome == "" {
			job.ProgressMessage = fmt.Sprintf("Copying %s (%d/%d)", filepath.Base(p.Path), p.Index, p.Total)
		}
		if p.Bytes > 0 {
			job.ProgressBytesCopied += p.Bytes
		}
		if store == nil {
			return
		}
		if err := store.UpdateProgress(ctx, job); err != nil {
			logger.Debug("progress update failed", logging.Error(err))
		}
	}
}
