package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"stagehand/internal/config"
	"stagehand/internal/dropmon"
	"stagehand/internal/logging"
	"stagehand/internal/plan"
	"stagehand/internal/preflight"
	"stagehand/internal/registry"
	"stagehand/internal/workflow"
)

// Clear scopes accepted by ClearJobs.
const (
	ClearScopeAll       = "all"
	ClearScopeCompleted = "completed"
	ClearScopeFailed    = "failed"
)

var errStoreUnavailable = errors.New("registry store unavailable")

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *registry.Store
	wf      *workflow.Manager
	monitor *dropmon.Monitor
	logPath string

	// Single-instance enforcement.
	lockFile string
	fileLock *flock.Flock

	mu     sync.Mutex
	checks []preflight.Result

	started atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Status reports daemon runtime state over IPC and in the status command.
type Status struct {
	Running        bool
	PID            int
	Workflow       workflow.StatusSummary
	RegistryPath   string
	LockFilePath   string
	DropMonitoring bool
	Preflight      []preflight.Result
}

// New constructs a daemon with initialized dependencies. The drop monitor may
// be nil; install requests then arrive over IPC only.
func New(cfg *config.Config, store *registry.Store, logger *slog.Logger, wf *workflow.Manager, monitor *dropmon.Monitor) (*Daemon, error) {
	if store == nil || cfg == nil || wf == nil || logger == nil {
		return nil, errors.New("daemon requires a config, store, logger, and workflow manager")
	}

	d := &Daemon{cfg: cfg, logger: logger, store: store, wf: wf, monitor: monitor}
	d.logPath = filepath.Join(cfg.Paths.LogDir, "stagehand.log")
	d.lockFile = cfg.LockFilePath()
	d.fileLock = flock.New(d.lockFile)
	return d, nil
}

// Start acquires the daemon lock, recovers jobs stranded by a previous run,
// and launches background processing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.started.Load() {
		return errors.New("daemon already running")
	}

	got, err := d.fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("take daemon lock: %w", err)
	}
	if !got {
		return errors.New("another stagehand daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	d.runPreflight(d.ctx)

	// Holding the lock means no other daemon is mid-install, so any job
	// still in a processing state was stranded by the previous run.
	if reclaimed, err := d.store.ResetStuckProcessing(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "failed to reset stranded jobs", "stranded_reset_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check registry database access"),
			logging.String(logging.FieldImpact, "jobs from the previous run may stay stuck"),
		)
	} else if reclaimed > 0 {
		d.logger.Info("reset stranded jobs from previous run", logging.Int64("jobs", reclaimed))
	}

	if err := d.wf.Start(d.ctx); err != nil {
		_ = d.fileLock.Unlock()
		d.cancel()
		d.ctx, d.cancel = nil, nil
		return fmt.Errorf("launch workflow manager: %w", err)
	}

	// A broken drop directory should not take the daemon down; installs
	// can still be submitted over IPC.
	if err := d.monitor.Start(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "drop monitor failed to start", "drop_monitor_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check drop_dir permissions"),
			logging.String(logging.FieldImpact, "dropped build trees will not be picked up"),
		)
	}

	d.started.Store(true)
	d.logger.Info("stagehand daemon started", logging.String("lock", d.lockFile))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.started.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
	}
	d.ctx, d.cancel = nil, nil
	d.monitor.Stop()
	d.wf.Stop()
	if err := d.fileLock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.started.Store(false)
	d.logger.Info("stagehand daemon stopped")
}

// Close stops the daemon and closes the registry store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store == nil {
		return nil
	}
	return d.store.Close()
}

// ensureStore guards the job methods against a zero-value Daemon.
func (d *Daemon) ensureStore() error {
	if d.store == nil {
		return errStoreUnavailable
	}
	return nil
}

// ListJobs returns registry jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []registry.Status) ([]*registry.Job, error) {
	if err := d.ensureStore(); err != nil {
		return nil, err
	}
	return d.store.List(ctx, statuses...)
}

// GetJob fetches a single job by identifier.
func (d *Daemon) GetJob(ctx context.Context, id int64) (*registry.Job, error) {
	if err := d.ensureStore(); err != nil {
		return nil, err
	}
	return d.store.GetByID(ctx, id)
}

// ClearJobs removes jobs matching the given scope and reports how many went away.
func (d *Daemon) ClearJobs(ctx context.Context, scope string) (int64, error) {
	if err := d.ensureStore(); err != nil {
		return 0, err
	}
	switch scope {
	case "", ClearScopeAll:
		return d.store.Clear(ctx)
	case ClearScopeCompleted:
		return d.store.ClearCompleted(ctx)
	case ClearScopeFailed:
		return d.store.ClearFailed(ctx)
	default:
		return 0, fmt.Errorf("unknown clear scope %q", scope)
	}
}

// RetryJobs moves failed or review jobs (optionally a subset) back to pending.
func (d *Daemon) RetryJobs(ctx context.Context, ids []int64) (int64, error) {
	if err := d.ensureStore(); err != nil {
		return 0, err
	}
	return d.store.RetryFailed(ctx, ids...)
}

// SubmitInstall enqueues a direct install request for a build tree.
func (d *Daemon) SubmitInstall(ctx context.Context, buildTree, configuration, component string) (*registry.Job, error) {
	if err := d.ensureStore(); err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(buildTree)
	if raw == "" {
		return nil, errors.New("build tree is required")
	}
	tree, err := filepath.Abs(raw)
	if err != nil {
		return nil, fmt.Errorf("resolve build tree: %w", err)
	}
	info, err := os.Stat(tree)
	if err != nil {
		return nil, fmt.Errorf("stat build tree: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build tree %q is not a directory", tree)
	}
	if _, err := plan.Locate(tree); err != nil {
		return nil, err
	}
	configuration = strings.TrimSpace(configuration)
	if configuration != "" {
		parsed, known := plan.ParseConfiguration(configuration)
		if !known {
			return nil, fmt.Errorf("unknown configuration %q (expected one of %s)", configuration, strings.Join(plan.ConfigurationNames(), ", "))
		}
		configuration = parsed.String()
	}
	job, err := d.store.NewRequest(ctx, tree, configuration, strings.TrimSpace(component))
	if err != nil {
		return nil, fmt.Errorf("enqueue install request: %w", err)
	}
	d.logger.Info("install request queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("build_tree", tree),
	)
	return job, nil
}

// RegistryHealth returns aggregate registry diagnostics.
func (d *Daemon) RegistryHealth(ctx context.Context) (registry.HealthSummary, error) {
	if err := d.ensureStore(); err != nil {
		return registry.HealthSummary{}, err
	}
	return d.store.Health(ctx)
}

// DatabaseHealth reports schema and integrity diagnostics for the registry.
func (d *Daemon) DatabaseHealth(ctx context.Context) (registry.DatabaseHealth, error) {
	if err := d.ensureStore(); err != nil {
		return registry.DatabaseHealth{}, err
	}
	return d.store.CheckHealth(ctx)
}

// LogPath reports where the daemon writes its log.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status snapshots the daemon's current runtime state.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.wf.Status(ctx)
	d.mu.Lock()
	checks := make([]preflight.Result, len(d.checks))
	copy(checks, d.checks)
	d.mu.Unlock()
	return Status{
		Running:        d.started.Load(),
		PID:            os.Getpid(),
		Workflow:       summary,
		RegistryPath:   d.cfg.RegistryPath(),
		LockFilePath:   d.lockFile,
		DropMonitoring: d.monitor.Running(),
		Preflight:      checks,
	}
}

func (d *Daemon) runPreflight(ctx context.Context) {
	results := preflight.RunAll(ctx, d.cfg)
	d.mu.Lock()
	d.checks = results
	d.mu.Unlock()
	for _, res := range results {
		if res.Passed {
			continue
		}
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", res.Name),
			logging.String("detail", res.Detail),
			logging.String(logging.FieldErrorHint, "resolve the reported condition and restart"),
			logging.String(logging.FieldImpact, "installs may fail until resolved"),
		)
	}
}
