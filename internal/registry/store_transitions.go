package registry

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// stageRollbackCase builds the CASE expression that rewinds a processing
// status to the status preceding its stage, leaving every other status
// untouched. Callers must bind stageRollbackArgs before any further
// placeholders.
func stageRollbackCase() string {
	var b strings.Builder
	b.WriteString("CASE status")
	for range stageRollbackTransitions {
		b.WriteString(" WHEN ? THEN ?")
	}
	b.WriteString(" ELSE status END")
	return b.String()
}

func stageRollbackArgs() []any {
	args := make([]any, 0, len(stageRollbackTransitions)*2)
	for _, tr := range stageRollbackTransitions {
		args = append(args, tr.active, tr.fallback)
	}
	return args
}

// processingStatusList returns the statuses subject to rollback, in stage
// order.
func processingStatusList() []Status {
	list := make([]Status, 0, len(stageRollbackTransitions))
	for _, tr := range stageRollbackTransitions {
		list = append(list, tr.active)
	}
	return list
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// ResetStuckProcessing resets jobs in processing states back to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	processing := processingStatusList()
	query := `UPDATE jobs
            SET status = ` + stageRollbackCase() + `,
            progress_stage = 'Reset from stuck processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
            WHERE status IN (` + makePlaceholders(len(processing)) + `)`

	args := append(stageRollbackArgs(), nowStamp())
	for _, status := range processing {
		args = append(args, status)
	}
	res, err := s.execResult(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	stamp := nowStamp()
	err := s.exec(ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		stamp, stamp, id)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns jobs whose heartbeat expired before cutoff
// back to the start of their current stage. When statuses are given only
// those processing statuses are considered; otherwise all of them are.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time, statuses ...Status) (int64, error) {
	targets := statuses
	if len(targets) == 0 {
		targets = processingStatusList()
	}
	query := `UPDATE jobs
            SET status = ` + stageRollbackCase() + `,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL, updated_at = ?
            WHERE status IN (` + makePlaceholders(len(targets)) + `) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`

	args := append(stageRollbackArgs(), nowStamp())
	for _, status := range targets {
		args = append(args, status)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	res, err := s.execResult(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// retrySet rewinds a job to pending and clears the failure bookkeeping.
const retrySet = `SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL,
            needs_review = 0, review_reason = NULL, updated_at = ?`

// RetryFailed moves failed or review jobs back to pending for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	if len(ids) == 0 {
		query := `UPDATE jobs ` + retrySet + ` WHERE status IN (?, ?)`
		res, err := s.execResult(ctx, query, StatusPending, nowStamp(), StatusFailed, StatusReview)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	query := `UPDATE jobs ` + retrySet + ` WHERE id IN (` + makePlaceholders(len(ids)) + `) AND status IN (?, ?)`
	args := make([]any, 0, len(ids)+4)
	args = append(args, StatusPending, nowStamp())
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusFailed, StatusReview)

	res, err := s.execResult(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}
