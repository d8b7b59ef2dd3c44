package install

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"stagehand/internal/config"
	"stagehand/internal/fileutil"
	"stagehand/internal/logging"
	"stagehand/internal/manifest"
	"stagehand/internal/plan"
	"stagehand/internal/services"
)

// Outcome labels for executed actions.
const (
	OutcomeInstalled = "installed"
	OutcomeUpToDate  = "up-to-date"
	OutcomePlanned   = "planned"
)

// Progress reports per-file engine activity. Outcome is empty while a file
// is being processed and set once it completes.
type Progress struct {
	Index   int
	Total   int
	Path    string
	Outcome string
	Bytes   int64
	Percent float64
}

// Request describes one install run.
type Request struct {
	Plan          *plan.Plan
	BuildTree     string
	Prefix        string // defaults to the configured install prefix
	DestDir       string // optional staging root joined in front of the prefix
	Configuration string // requested name; empty falls back to plan default then Release
	Component     string
	DryRun        bool
	SkipManifest  bool
	OnProgress    func(Progress)
}

// FileResult is the outcome of a single action.
type FileResult struct {
	Action  Action
	Path    string // physical path written (destdir applied)
	Outcome string
	Bytes   int64 // bytes copied; zero for up-to-date files
	Size    int64 // size of the installed file on disk
	SHA256  string
}

// Result summarizes an install run.
type Result struct {
	RunID          string
	PlanName       string
	PlanVersion    string
	Configuration  plan.Configuration
	Component      string
	Prefix         string
	DestDir        string
	Root           string // physical install root (destdir + prefix)
	Files          []FileResult
	Skipped        []Skipped
	InstalledCount int
	UpToDateCount  int
	SkippedCount   int
	TotalBytes     int64
	ManifestPath   string
	DryRun         bool
	StartedAt      time.Time
	Duration       time.Duration
}

// Engine executes install runs.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs an install engine.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	if logger != nil {
		logger = logger.With(logging.String("component", "install"))
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Run resolves the request against the build tree and installs every
// applicable artifact. Concurrent runs against the same physical root
// serialize on a prefix lock.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	logger := logging.WithContext(ctx, e.logger)

	if e.cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "install", "validate request", "Configuration unavailable", nil)
	}
	if req.Plan == nil {
		return nil, services.Wrap(services.ErrValidation, "install", "validate request", "Install plan is required", nil)
	}

	buildTree := strings.TrimSpace(req.BuildTree)
	if buildTree == "" {
		return nil, services.Wrap(services.ErrValidation, "install", "validate request", "Build tree path is required", nil)
	}
	buildTree, err := filepath.Abs(buildTree)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "install", "validate request", fmt.Sprintf("Cannot resolve build tree %q", req.BuildTree), err)
	}

	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		prefix = e.cfg.Install.Prefix
	}
	prefix, err = filepath.Abs(prefix)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "install", "validate request", fmt.Sprintf("Cannot resolve prefix %q", req.Prefix), err)
	}

	destDir := strings.TrimSpace(req.DestDir)
	if destDir == "" {
		destDir = e.cfg.Install.DestDir
	}
	root := prefix
	if destDir != "" {
		if destDir, err = filepath.Abs(destDir); err != nil {
			return nil, services.Wrap(services.ErrValidation, "install", "validate request", fmt.Sprintf("Cannot resolve destdir %q", req.DestDir), err)
		}
		root = filepath.Join(destDir, prefix)
	}

	planDefault := strings.TrimSpace(req.Plan.DefaultConfig)
	if planDefault == "" {
		planDefault = e.cfg.Install.DefaultConfig
	}
	selected, err := plan.SelectConfiguration(req.Configuration, planDefault)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "install", "select configuration", err.Error(), nil)
	}

	actions, skipped, err := Resolve(req.Plan, buildTree, prefix, selected, req.Component)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:         uuid.NewString(),
		PlanName:      req.Plan.Project.Name,
		PlanVersion:   req.Plan.Project.Version,
		Configuration: selected,
		Component:     strings.ToLower(strings.TrimSpace(req.Component)),
		Prefix:        prefix,
		DestDir:       destDir,
		Root:          root,
		Skipped:       skipped,
		SkippedCount:  len(skipped),
		DryRun:        req.DryRun,
		StartedAt:     started.UTC(),
	}

	logger.Info(
		"starting install",
		logging.String("plan", result.PlanName),
		logging.String("configuration", selected.String()),
		logging.String("root", root),
		logging.Int("actions", len(actions)),
		logging.Bool("dry_run", req.DryRun),
	)

	if req.DryRun {
		for _, action := range actions {
			result.Files = append(result.Files, FileResult{
				Action:  action,
				Path:    filepath.Join(root, filepath.FromSlash(action.RelTarget)),
				Outcome: OutcomePlanned,
				Size:    action.Size,
			})
		}
		result.Duration = time.Since(started)
		return result, nil
	}

	lock, err := e.acquireLock(ctx, root)
	if err != nil {
		return nil, err
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("failed to release prefix lock", logging.Error(unlockErr))
		}
	}()

	installedPaths := make([]string, 0, len(actions))
	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrTransient, "install", "copy artifacts", "Install interrupted", err)
		}
		physTarget := filepath.Join(root, filepath.FromSlash(action.RelTarget))
		e.report(req.OnProgress, Progress{
			Index:   i + 1,
			Total:   len(actions),
			Path:    physTarget,
			Percent: float64(i) / float64(len(actions)) * 100,
		})

		if err := os.MkdirAll(filepath.Dir(physTarget), 0o755); err != nil {
			return nil, services.Wrap(services.ErrTransient, "install", "create directories", fmt.Sprintf("Cannot create %s", filepath.Dir(physTarget)), err)
		}

		outcome, written, size, sum, err := e.installFile(action, physTarget, prefix, logger)
		if err != nil {
			return nil, err
		}

		result.Files = append(result.Files, FileResult{
			Action:  action,
			Path:    physTarget,
			Outcome: outcome,
			Bytes:   written,
			Size:    size,
			SHA256:  sum,
		})
		installedPaths = append(installedPaths, physTarget)
		if outcome == OutcomeUpToDate {
			result.UpToDateCount++
		} else {
			result.InstalledCount++
		}
		result.TotalBytes += written

		e.report(req.OnProgress, Progress{
			Index:   i + 1,
			Total:   len(actions),
			Path:    physTarget,
			Outcome: outcome,
			Bytes:   written,
			Percent: float64(i+1) / float64(len(actions)) * 100,
		})
		logger.Debug(
			"artifact processed",
			logging.String("path", physTarget),
			logging.String("outcome", outcome),
			logging.Int64("bytes", written),
		)
	}

	if e.cfg.Install.Manifest && !req.SkipManifest {
		manifestPath := manifest.Path(root, result.Component)
		if err := manifest.Write(manifestPath, installedPaths); err != nil {
			return nil, services.Wrap(services.ErrTransient, "install", "write manifest", fmt.Sprintf("Cannot write %s", manifestPath), err)
		}
		result.ManifestPath = manifestPath
	}

	result.Duration = time.Since(started)
	logger.Info(
		"install completed",
		logging.String("plan", result.PlanName),
		logging.String("configuration", selected.String()),
		logging.Int("installed", result.InstalledCount),
		logging.Int("up_to_date", result.UpToDateCount),
		logging.Int("skipped", result.SkippedCount),
		logging.Int64("bytes", result.TotalBytes),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

func (e *Engine) report(fn func(Progress), update Progress) {
	if fn != nil {
		fn(update)
	}
}

// installFile places one artifact, skipping the copy when the destination
// already carries identical content. The logical prefix feeds pkg-config
// rewriting so staged installs still reference their final location.
// Returns outcome, bytes copied, installed size, and content hash.
func (e *Engine) installFile(action Action, physTarget, prefix string, logger *slog.Logger) (string, int64, int64, string, error) {
	info, statErr := os.Stat(physTarget)
	exists := statErr == nil
	if statErr != nil && !os.IsNotExist(statErr) {
		return "", 0, 0, "", services.Wrap(services.ErrTransient, "install", "inspect destination", fmt.Sprintf("Cannot stat %s", physTarget), statErr)
	}
	if exists && info.IsDir() {
		return "", 0, 0, "", services.Wrap(
			services.ErrValidation,
			"install",
			"inspect destination",
			fmt.Sprintf("Destination %s is a directory, expected a file", physTarget),
			nil,
		)
	}

	if action.Kind == plan.KindPkgConfig {
		return e.installPkgConfig(action, physTarget, prefix, exists, info, logger)
	}

	if exists {
		srcSum, srcSize, err := fileutil.HashFile(action.Source)
		if err != nil {
			return "", 0, 0, "", services.Wrap(services.ErrTransient, "install", "hash source", fmt.Sprintf("Cannot hash %s", action.Source), err)
		}
		dstSum, dstSize, err := fileutil.HashFile(physTarget)
		if err != nil {
			return "", 0, 0, "", services.Wrap(services.ErrTransient, "install", "hash destination", fmt.Sprintf("Cannot hash %s", physTarget), err)
		}
		if srcSum == dstSum && srcSize == dstSize {
			if err := e.ensureMode(physTarget, info, action.Mode, logger); err != nil {
				return "", 0, 0, "", err
			}
			return OutcomeUpToDate, 0, dstSize, dstSum, nil
		}
		if action.Kind == plan.KindCMakeExport {
			removed, err := sweepStaleExports(physTarget)
			if err != nil {
				return "", 0, 0, "", services.Wrap(services.ErrTransient, "install", "clear stale exports", fmt.Sprintf("Cannot clear stale exports beside %s", physTarget), err)
			}
			for _, stale := range removed {
				logger.Info("removed stale export file", logging.String("path", stale))
			}
		}
	}

	written, sum, err := fileutil.CopyFileVerified(action.Source, physTarget, action.Mode)
	if err != nil {
		return "", 0, 0, "", services.Wrap(services.ErrTransient, "install", "copy artifact", fmt.Sprintf("Cannot install %s", physTarget), err)
	}
	return OutcomeInstalled, written, written, sum, nil
}

func (e *Engine) installPkgConfig(action Action, physTarget, prefix string, exists bool, info os.FileInfo, logger *slog.Logger) (string, int64, int64, string, error) {
	data, err := os.ReadFile(action.Source)
	if err != nil {
		return "", 0, 0, "", services.Wrap(services.ErrTransient, "install", "read pkg-config", fmt.Sprintf("Cannot read %s", action.Source), err)
	}
	rendered, found := renderPkgConfig(data, prefix)
	if !found {
		logger.Warn(
			"pkg-config file has no prefix line, installing unchanged",
			logging.String("source", action.Source),
		)
	}
	renderedSum := fmt.Sprintf("%x", sha256.Sum256(rendered))

	if exists {
		dstSum, dstSize, err := fileutil.HashFile(physTarget)
		if err != nil {
			return "", 0, 0, "", services.Wrap(services.ErrTransient, "install", "hash destination", fmt.Sprintf("Cannot hash %s", physTarget), err)
		}
		if dstSum == renderedSum && dstSize == int64(len(rendered)) {
			if err := e.ensureMode(physTarget, info, action.Mode, logger); err != nil {
				return "", 0, 0, "", err
			}
			return OutcomeUpToDate, 0, dstSize, dstSum, nil
		}
	}

	if err := os.WriteFile(physTarget, rendered, action.Mode); err != nil {
		return "", 0, 0, "", services.Wrap(services.ErrTransient, "install", "write pkg-config", fmt.Sprintf("Cannot install %s", physTarget), err)
	}
	// WriteFile only applies the mode on create; force it for overwrites.
	if err := os.Chmod(physTarget, action.Mode); err != nil {
		return "", 0, 0, "", services.Wrap(services.ErrTransient, "install", "write pkg-config", fmt.Sprintf("Cannot set mode on %s", physTarget), err)
	}
	return OutcomeInstalled, int64(len(rendered)), int64(len(rendered)), renderedSum, nil
}

func (e *Engine) ensureMode(physTarget string, info os.FileInfo, mode os.FileMode, logger *slog.Logger) error {
	if info == nil || info.Mode().Perm() == mode.Perm() {
		return nil
	}
	if err := os.Chmod(physTarget, mode); err != nil {
		return services.Wrap(services.ErrTransient, "install", "apply mode", fmt.Sprintf("Cannot set mode on %s", physTarget), err)
	}
	logger.Debug(
		"corrected mode on up-to-date file",
		logging.String("path", physTarget),
		logging.String("mode", mode.Perm().String()),
	)
	return nil
}

func (e *Engine) acquireLock(ctx context.Context, root string) (*flock.Flock, error) {
	locksDir := filepath.Join(e.cfg.Paths.StateDir, "locks")
	if err := os.MkdirAll(locksDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "install", "prepare lock", fmt.Sprintf("Cannot create %s", locksDir), err)
	}
	sum := sha256.Sum256([]byte(root))
	lock := flock.New(filepath.Join(locksDir, fmt.Sprintf("prefix-%x.lock", sum[:8])))
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "install", "acquire prefix lock", fmt.Sprintf("Cannot lock prefix %s", root), err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrTransient, "install", "acquire prefix lock", fmt.Sprintf("Prefix %s is locked by another install", root), nil)
	}
	return lock, nil
}
