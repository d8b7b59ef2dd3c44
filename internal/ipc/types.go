package ipc

import (
	"time"

	"stagehand/internal/registry"
)

// StartRequest asks the daemon to begin background processing.
type StartRequest struct{}

// StartResponse reports whether this call had to start processing.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest asks the daemon to halt background processing.
type StopRequest struct{}

// StopResponse reports the outcome of a stop request.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest asks for a runtime snapshot.
type StatusRequest struct{}

// JobSummary is the wire representation of a registry job.
type JobSummary struct {
	ID              int64   `json:"id"`
	Status          string  `json:"status"`
	PlanName        string  `json:"plan_name,omitempty"`
	PlanVersion     string  `json:"plan_version,omitempty"`
	Configuration   string  `json:"configuration,omitempty"`
	Component       string  `json:"component,omitempty"`
	DropPath        string  `json:"drop_path"`
	StagedPath      string  `json:"staged_path,omitempty"`
	RunID           string  `json:"run_id,omitempty"`
	ProgressStage   string  `json:"progress_stage,omitempty"`
	ProgressPercent float64 `json:"progress_percent"`
	ProgressMessage string  `json:"progress_message,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	NeedsReview     bool    `json:"needs_review"`
	ReviewReason    string  `json:"review_reason,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// FromJob converts a registry job into its wire representation.
func FromJob(job *registry.Job) JobSummary {
	if job == nil {
		return JobSummary{}
	}
	dto := JobSummary{
		ID:              job.ID,
		Status:          string(job.Status),
		PlanName:        job.PlanName,
		PlanVersion:     job.PlanVersion,
		Configuration:   job.Configuration,
		Component:       job.Component,
		DropPath:        job.DropPath,
		StagedPath:      job.StagedPath,
		RunID:           job.RunID,
		ProgressStage:   job.ProgressStage,
		ProgressPercent: job.ProgressPercent,
		ProgressMessage: job.ProgressMessage,
		ErrorMessage:    job.ErrorMessage,
		NeedsReview:     job.NeedsReview,
		ReviewReason:    job.ReviewReason,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

// StageHealth is the wire form of one stage's readiness probe.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// PreflightCheck reports one startup environment check.
type PreflightCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// StatusResponse carries the snapshot rendered by the status command.
type StatusResponse struct {
	Running        bool             `json:"running"`
	PID            int              `json:"pid"`
	QueueStats     map[string]int   `json:"queue_stats"`
	LastError      string           `json:"last_error,omitempty"`
	LastJob        *JobSummary      `json:"last_job,omitempty"`
	LockPath       string           `json:"lock_path"`
	RegistryPath   string           `json:"registry_path"`
	DropMonitoring bool             `json:"drop_monitoring"`
	StageHealth    []StageHealth    `json:"stage_health,omitempty"`
	Preflight      []PreflightCheck `json:"preflight,omitempty"`
}

// SubmitRequest enqueues an install request for a build tree.
type SubmitRequest struct {
	BuildTree     string `json:"build_tree"`
	Configuration string `json:"configuration,omitempty"`
	Component     string `json:"component,omitempty"`
}

// SubmitResponse returns the queued job.
type SubmitResponse struct {
	Job JobSummary `json:"job"`
}

// JobsListRequest filters job listing by status.
type JobsListRequest struct {
	Statuses []string `json:"statuses"`
}

// JobsListResponse contains registry jobs.
type JobsListResponse struct {
	Jobs []JobSummary `json:"jobs"`
}

// JobsDescribeRequest fetches a single job by id.
type JobsDescribeRequest struct {
	ID int64 `json:"id"`
}

// JobsDescribeResponse contains a single job.
type JobsDescribeResponse struct {
	Job JobSummary `json:"job"`
}

// JobsClearRequest removes jobs in the given scope: all, completed, or failed.
// An empty scope clears everything.
type JobsClearRequest struct {
	Scope string `json:"scope"`
}

// JobsClearResponse reports number of removed jobs.
type JobsClearResponse struct {
	Removed int64 `json:"removed"`
}

// JobsRetryRequest retries failed or review jobs. Empty list means all of them.
type JobsRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// JobsRetryResponse reports number of retried jobs.
type JobsRetryResponse struct {
	Updated int64 `json:"updated"`
}

// LogTailRequest reads log lines starting at Offset. With Follow set the
// call waits up to WaitMillis for new lines before returning.
type LogTailRequest struct {
	Offset int64 `json:"offset"`
	Limit  int   `json:"limit"`

	Follow     bool `json:"follow"`
	WaitMillis int  `json:"wait_millis"`
}

// LogTailResponse carries log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// RegistryHealthRequest fetches aggregate diagnostics.
type RegistryHealthRequest struct{}

// RegistryHealthResponse reports job counts per lifecycle bucket.
type RegistryHealthResponse struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Review     int `json:"review"`
	Completed  int `json:"completed"`

	Total int `json:"total"`
}

// DatabaseHealthRequest asks for registry schema diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse mirrors registry.DatabaseHealth over the wire.
type DatabaseHealthResponse struct {
	DBPath string `json:"db_path"`

	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    string `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`

	ColumnsPresent []string `json:"columns_present"`
	MissingColumns []string `json:"missing_columns"`

	IntegrityCheck bool   `json:"integrity_check"`
	TotalJobs      int    `json:"total_jobs"`
	Error          string `json:"error,omitempty"`
}
