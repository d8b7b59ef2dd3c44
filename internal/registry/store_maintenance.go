package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	counts, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	var health HealthSummary
	for status, n := range counts {
		health.tally(status, n)
	}
	return health, nil
}

func (h *HealthSummary) tally(status Status, count int) {
	h.Total += count
	switch status {
	case StatusPending:
		h.Pending += count
	case StatusFailed:
		h.Failed += count
	case StatusReview:
		h.Review += count
	case StatusCompleted:
		h.Completed += count
	default:
		if _, ok := processingStatuses[status]; ok {
			h.Processing += count
		}
	}
}

// CheckHealth returns diagnostic information about the registry database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path, SchemaVersion: "current"}
	if s.path == "" {
		return health, errors.New("registry database path is unknown")
	}

	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return health, nil
	case err != nil:
		return health, fmt.Errorf("stat registry database: %w", err)
	case info.IsDir():
		return health, fmt.Errorf("registry database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("registry database connection unavailable")
	}

	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(checkCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping registry database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.inspectJobsTable(checkCtx, &health); err != nil {
		return health, err
	}

	var integrity string
	if err := s.db.QueryRowContext(checkCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("run integrity_check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")

	return health, nil
}

// inspectJobsTable records whether the jobs table exists and, when it does,
// its column layout and row count. Errors are mirrored into health.Error.
func (s *Store) inspectJobsTable(ctx context.Context, health *DatabaseHealth) error {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'jobs'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		health.Error = err.Error()
		return fmt.Errorf("query table info: %w", err)
	}
	health.TableExists = true

	columns, err := s.jobTableColumns(ctx)
	if err != nil {
		health.Error = err.Error()
		return err
	}
	health.ColumnsPresent = append(health.ColumnsPresent, columns...)
	health.MissingColumns = diffColumns(strings.Split(jobColumns, ", "), columns)

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&health.TotalJobs); err != nil {
		health.Error = err.Error()
		return fmt.Errorf("count jobs: %w", err)
	}
	return nil
}

func (s *Store) jobTableColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info(jobs)")
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}
	return columns, nil
}

func diffColumns(expected, present []string) []string {
	want := make(map[string]struct{}, len(expected))
	for _, col := range expected {
		want[col] = struct{}{}
	}
	for _, col := range present {
		delete(want, col)
	}
	var missing []string
	for col := range want {
		missing = append(missing, col)
	}
	return missing
}
