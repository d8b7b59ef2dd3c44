package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RecordRun persists a run and its file records in one transaction.
func (s *Store) RecordRun(ctx context.Context, run *Run, files []*RunFile) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if run.ID == "" {
		return errors.New("run id is empty")
	}
	ctx = orBackground(ctx)

	return s.withTx(ctx, "run", func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		for _, file := range files {
			if err := insertRunFile(ctx, tx, run.ID, file); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertRun(ctx context.Context, tx *sql.Tx, run *Run) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO runs (
            id, job_id, plan_name, plan_version, configuration, component,
            prefix, destdir, installed_count, up_to_date_count, skipped_count,
            total_bytes, status, error_message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		nullableInt64(run.JobID),
		run.PlanName,
		nullableString(run.PlanVersion),
		run.Configuration,
		nullableString(run.Component),
		run.Prefix,
		nullableString(run.DestDir),
		run.InstalledCount,
		run.UpToDateCount,
		run.SkippedCount,
		run.TotalBytes,
		run.Status,
		nullableString(run.ErrorMessage),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertRunFile(ctx context.Context, tx *sql.Tx, runID string, file *RunFile) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO run_files (run_id, path, size, sha256, mode, action, kind, component)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		file.Path,
		file.Size,
		file.SHA256,
		int64(file.Mode),
		file.Action,
		nullableString(file.Kind),
		nullableString(file.Component),
	)
	if err != nil {
		return fmt.Errorf("insert run file %s: %w", file.Path, err)
	}
	return nil
}

// GetRun fetches a run by identifier.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// LatestRunForPrefix returns the most recent completed run recorded against
// a prefix.
func (s *Store) LatestRunForPrefix(ctx context.Context, prefix string) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+runColumns+` FROM runs WHERE prefix = ? AND status = ? ORDER BY started_at DESC LIMIT 1`,
		prefix,
		RunStatusCompleted,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest run for prefix: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, up to limit (no limit when <= 0).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunFiles returns the file records of a run in install order.
func (s *Store) RunFiles(ctx context.Context, runID string) ([]*RunFile, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+runFileColumns+` FROM run_files WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("run files: %w", err)
	}
	defer rows.Close()

	var files []*RunFile
	for rows.Next() {
		file, err := scanRunFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}
