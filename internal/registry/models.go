package registry

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queued install job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusValidating Status = "validating"
	StatusValidated  Status = "validated"
	StatusStaging    Status = "staging"
	StatusStaged     Status = "staged"
	StatusInstalling Status = "installing"
	StatusInstalled  Status = "installed"
	StatusVerifying  Status = "verifying"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReview     Status = "review"
)

// UserStopReason is the review reason set when a user explicitly stops a job.
const UserStopReason = "Stop requested by user"

// DaemonStopReason is the error message set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var knownStatuses = []Status{
	StatusPending,
	StatusValidating,
	StatusValidated,
	StatusStaging,
	StatusStaged,
	StatusInstalling,
	StatusInstalled,
	StatusVerifying,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	m := make(map[Status]struct{}, len(knownStatuses))
	for _, st := range knownStatuses {
		m[st] = struct{}{}
	}
	return m
}()

var processingStatuses = map[Status]struct{}{
	StatusValidating: {},
	StatusStaging:    {},
	StatusInstalling: {},
	StatusVerifying:  {},
}

type statusTransition struct {
	active   Status
	fallback Status
}

// Rollback targets return an interrupted job to the start of its current
// stage, never further back.
var stageRollbackTransitions = []statusTransition{
	{active: StatusValidating, fallback: StatusPending},
	{active: StatusStaging, fallback: StatusValidated},
	{active: StatusInstalling, fallback: StatusStaged},
	{active: StatusVerifying, fallback: StatusInstalled},
}

// Run status values recorded in the runs table.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// File actions recorded per installed path.
const (
	ActionInstalled = "installed"
	ActionUpToDate  = "up-to-date"
)

// DatabaseHealth captures diagnostic information about the registry database.
type DatabaseHealth struct {
	DBPath string

	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool

	ColumnsPresent []string
	MissingColumns []string

	IntegrityCheck bool
	TotalJobs      int
	Error          string
}

// HealthSummary aggregates job counts by lifecycle bucket.
type HealthSummary struct {
	Total int

	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Job represents a queued install persisted in SQLite.
type Job struct {
	ID int64

	// Submission inputs and the plan they resolved to.
	DropPath      string
	PlanPath      string
	PlanName      string
	PlanVersion   string
	Configuration string
	Component     string
	Fingerprint   string

	Status     Status
	StagedPath string
	RunID      string

	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time

	// Progress mirrors whatever the active stage last reported.
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string

	ProgressBytesCopied int64
	ProgressTotalBytes  int64

	LastHeartbeat *time.Time
	NeedsReview   bool
	ReviewReason  string
}

// Run records one install run against a prefix.
type Run struct {
	ID             string
	JobID          int64
	PlanName       string
	PlanVersion    string
	Configuration  string
	Component      string
	Prefix         string
	DestDir        string
	InstalledCount int
	UpToDateCount  int
	SkippedCount   int
	TotalBytes     int64
	Status         string
	ErrorMessage   string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// RunFile records one path an install run put (or confirmed) under the
// prefix.
type RunFile struct {
	ID        int64
	RunID     string
	Path      string
	Size      int64
	SHA256    string
	Mode      uint32
	Action    string
	Kind      string
	Component string
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(knownStatuses))
	copy(out, knownStatuses)
	return out
}

// ParseStatus maps user input onto a known Status.
func ParseStatus(value string) (Status, bool) {
	norm := Status(strings.ToLower(strings.TrimSpace(value)))
	if norm == "" {
		return "", false
	}
	_, ok := statusSet[norm]
	return norm, ok
}

// IsProcessing reports whether the job is mid-stage right now.
func (j Job) IsProcessing() bool {
	return IsProcessingStatus(j.Status)
}

// IsProcessingStatus reports whether status marks a job as mid-stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the lifecycle.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// IsUserStopReason reports whether a review reason came from an explicit
// stop request rather than a failure.
func IsUserStopReason(reason string) bool {
	return strings.EqualFold(UserStopReason, strings.TrimSpace(reason))
}

// InitProgress resets progress fields for a new stage. If ProgressStage is
// currently empty, it is set to the provided stage value; otherwise the
// existing stage is preserved to support resume scenarios.
func (j *Job) InitProgress(stage, message string) {
	if j.ProgressStage == "" {
		j.ProgressStage = stage
	}
	j.ProgressMessage = message
	j.ProgressPercent = 0
	j.ErrorMessage = ""
}

// SetProgress updates all three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetProgressComplete records the stage as fully done.
func (j *Job) SetProgressComplete(stage, message string) {
	j.SetProgress(stage, message, 100)
}

// SetFailed marks the job as failed with the given error message. Clears
// the heartbeat and sets progress fields appropriately.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.LastHeartbeat = nil
	j.ProgressStage = "Failed"
}

// SetReview parks the job for manual intervention with the given reason.
func (j *Job) SetReview(reason string) {
	j.Status = StatusReview
	j.NeedsReview = true
	j.ReviewReason = reason
	j.ErrorMessage = reason
	j.ProgressPercent = 0
	j.ProgressMessage = reason
	j.LastHeartbeat = nil
	j.ProgressStage = "Review"
}

// IsInWorkflow returns true when a job is actively progressing (or queued
// to progress) through stages and should not be re-enqueued simply because
// its drop directory entry is still present.
func (j Job) IsInWorkflow() bool {
	if j.IsProcessing() {
		return true
	}
	switch j.Status {
	case StatusPending,
		StatusValidated,
		StatusStaged,
		StatusInstalled,
		StatusCompleted:
		return true
	default:
		return false
	}
}
