package registry

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, drop_path, plan_path, plan_name, plan_version, configuration, component, fingerprint, status, staged_path, run_id, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, progress_bytes_copied, progress_total_bytes, last_heartbeat, needs_review, review_reason"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		jobID         int64
		dropPath      sql.NullString
		planPath      sql.NullString
		planName      sql.NullString
		planVersion   sql.NullString
		configuration sql.NullString
		component     sql.NullString
		fp            sql.NullString
		rawStatus     string
		stagedPath    sql.NullString
		runID         sql.NullString
		errMsg        sql.NullString
		createdAt     sql.NullString
		updatedAt     sql.NullString
		progStage     sql.NullString
		progPct       sql.NullFloat64
		progMsg       sql.NullString
		progCopied    sql.NullInt64
		progTotal     sql.NullInt64
		heartbeatAt   sql.NullString
		review        sql.NullInt64
		reason        sql.NullString
	)

	if err := scanner.Scan(
		&jobID,
		&dropPath,
		&planPath,
		&planName,
		&planVersion,
		&configuration,
		&component,
		&fp,
		&rawStatus,
		&stagedPath,
		&runID,
		&errMsg,
		&createdAt,
		&updatedAt,
		&progStage,
		&progPct,
		&progMsg,
		&progCopied,
		&progTotal,
		&heartbeatAt,
		&review,
		&reason,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                  jobID,
		DropPath:            dropPath.String,
		PlanPath:            planPath.String,
		PlanName:            planName.String,
		PlanVersion:         planVersion.String,
		Configuration:       configuration.String,
		Component:           component.String,
		Fingerprint:         fp.String,
		Status:              Status(rawStatus),
		StagedPath:          stagedPath.String,
		RunID:               runID.String,
		ErrorMessage:        errMsg.String,
		ProgressStage:       progStage.String,
		ProgressPercent:     progPct.Float64,
		ProgressMessage:     progMsg.String,
		ProgressBytesCopied: progCopied.Int64,
		ProgressTotalBytes:  progTotal.Int64,
	}
	if review.Valid {
		job.NeedsReview = review.Int64 != 0
	}
	job.ReviewReason = reason.String

	if created, err := parseTimeString(createdAt.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedAt.String); err == nil {
		job.UpdatedAt = updated
	}
	if heartbeatAt.Valid {
		if beat, err := parseTimeString(heartbeatAt.String); err == nil {
			job.LastHeartbeat = &beat
		}
	}
	return job, nil
}

const runColumns = "id, job_id, plan_name, plan_version, configuration, component, prefix, destdir, installed_count, up_to_date_count, skipped_count, total_bytes, status, error_message, started_at, finished_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		runID         string
		jobID         sql.NullInt64
		planName      string
		planVersion   sql.NullString
		configuration string
		component     sql.NullString
		prefix        string
		destDir       sql.NullString
		installed     int
		upToDate      int
		skipped       int
		totalBytes    int64
		runStatus     string
		errMsg        sql.NullString
		startedAt     sql.NullString
		finishedAt    sql.NullString
	)

	if err := scanner.Scan(
		&runID,
		&jobID,
		&planName,
		&planVersion,
		&configuration,
		&component,
		&prefix,
		&destDir,
		&installed,
		&upToDate,
		&skipped,
		&totalBytes,
		&runStatus,
		&errMsg,
		&startedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}

	run := &Run{
		ID:             runID,
		JobID:          jobID.Int64,
		PlanName:       planName,
		PlanVersion:    planVersion.String,
		Configuration:  configuration,
		Component:      component.String,
		Prefix:         prefix,
		DestDir:        destDir.String,
		InstalledCount: installed,
		UpToDateCount:  upToDate,
		SkippedCount:   skipped,
		TotalBytes:     totalBytes,
		Status:         runStatus,
		ErrorMessage:   errMsg.String,
	}
	if started, err := parseTimeString(startedAt.String); err == nil {
		run.StartedAt = started
	}
	if finishedAt.Valid {
		if finished, err := parseTimeString(finishedAt.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return run, nil
}

const runFileColumns = "id, run_id, path, size, sha256, mode, action, kind, component"

func scanRunFile(scanner interface{ Scan(dest ...any) error }) (*RunFile, error) {
	var (
		rowID     int64
		runID     string
		path      string
		size      int64
		digest    string
		mode      int64
		action    string
		kind      sql.NullString
		component sql.NullString
	)

	if err := scanner.Scan(
		&rowID,
		&runID,
		&path,
		&size,
		&digest,
		&mode,
		&action,
		&kind,
		&component,
	); err != nil {
		return nil, err
	}

	return &RunFile{
		ID:        rowID,
		RunID:     runID,
		Path:      path,
		Size:      size,
		SHA256:    digest,
		Mode:      uint32(mode),
		Action:    action,
		Kind:      kind.String,
		Component: component.String,
	}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTimeString accepts both RFC3339Nano stamps written by this process
// and the bare DATETIME format SQLite produces for CURRENT_TIMESTAMP.
func parseTimeString(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", raw)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	var b []byte
	for i := 0; i < count; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
