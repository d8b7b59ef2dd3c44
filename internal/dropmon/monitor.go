package dropmon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stagehand/internal/config"
	"stagehand/internal/logging"
	"stagehand/internal/plan"
	"stagehand/internal/registry"
)

// Monitor polls the drop directory for build trees carrying an install plan
// and enqueues a job for each tree it has not seen before.
type Monitor struct {
	cfg      *config.Config
	store    *registry.Store
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	quit    chan struct{}
	wg      sync.WaitGroup
	running bool
	noted   map[string]string
}

// NewMonitor creates a drop directory monitor. Returns nil when the
// configuration or store is missing.
func NewMonitor(cfg *config.Config, store *registry.Store, logger *slog.Logger) *Monitor {
	if cfg == nil || store == nil {
		return nil
	}

	interval := time.Duration(cfg.Daemon.DropPollInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}

	return &Monitor{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "drop-monitor"),
		interval: interval,
		noted:    make(map[string]string),
	}
}

// Start begins polling the drop directory.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	dropDir := strings.TrimSpace(m.cfg.Paths.DropDir)
	if dropDir == "" {
		m.logger.Info("drop directory not configured; jobs arrive over IPC only",
			logging.String(logging.FieldEventType, "drop_monitor_disabled"),
		)
		return nil
	}

	m.quit = make(chan struct{})
	m.running = true
	m.wg.Add(1)

	quit := m.quit
	go m.pollLoop(ctx, quit)

	m.logger.Info("drop monitor started",
		logging.String(logging.FieldEventType, "drop_monitor_started"),
		logging.String("drop_dir", dropDir),
		logging.Duration("interval", m.interval),
	)
	return nil
}

// Stop shuts down the monitor and waits for the poll loop to exit.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.quit)
	m.quit = nil
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()

	m.logger.Info("drop monitor stopped",
		logging.String(logging.FieldEventType, "drop_monitor_stopped"),
	)
}

// Running reports whether the monitor poll loop is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) pollLoop(ctx context.Context, quit <-chan struct{}) {
	defer m.wg.Done()

	// Sweep once right away, then on the ticker.
	m.sweep(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	dropDir := m.cfg.Paths.DropDir
	entries, err := os.ReadDir(dropDir)
	if err != nil {
		if os.IsNotExist(err) {
			m.noteSkip(dropDir, "drop directory missing", slog.LevelDebug)
			return
		}
		m.logger.Warn("failed to read drop directory",
			logging.Error(err),
			logging.String("drop_dir", dropDir),
			logging.String(logging.FieldEventType, "drop_scan_failed"),
			logging.String(logging.FieldErrorHint, "check drop directory permissions"),
		)
		return
	}

	m.clearNote(dropDir)

	current := make(map[string]struct{}, len(entries)+1)
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !entry.IsDir() {
			continue
		}
		tree := filepath.Join(dropDir, entry.Name())
		current[tree] = struct{}{}
		m.inspect(ctx, tree)
	}

	m.pruneNotes(current)
}

func (m *Monitor) inspect(ctx context.Context, tree string) {
	planPath, err := plan.Locate(tree)
	if err != nil {
		m.noteSkip(tree, "no install plan", slog.LevelDebug)
		return
	}

	p, err := plan.Load(planPath)
	if err != nil {
		m.noteSkip(tree, "invalid install plan: "+err.Error(), slog.LevelWarn)
		return
	}

	fingerprint, err := Fingerprint(tree, p)
	if err != nil {
		m.noteSkip(tree, "fingerprint failed: "+err.Error(), slog.LevelWarn)
		return
	}

	m.process(ctx, tree, p, fingerprint)
}

func (m *Monitor) process(ctx context.Context, tree string, p *plan.Plan, fingerprint string) {
	existing, err := m.store.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		m.logger.Warn("failed to look up dropped tree",
			logging.Error(err),
			logging.String("build_tree", tree),
			logging.String(logging.FieldEventType, "drop_lookup_failed"),
			logging.String(logging.FieldErrorHint, "check registry database access"),
		)
		return
	}

	if existing != nil {
		m.noteExisting(tree, existing)
		return
	}

	job, err := m.store.NewJob(ctx, tree, fingerprint)
	if err != nil {
		m.logger.Warn("failed to enqueue dropped tree",
			logging.Error(err),
			logging.String("build_tree", tree),
			logging.String(logging.FieldEventType, "drop_enqueue_failed"),
			logging.String(logging.FieldErrorHint, "check registry database access"),
		)
		return
	}

	m.clearNote(tree)
	m.logger.Info("queued dropped build tree",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("plan", p.Project.Name),
		logging.String("version", p.Project.Version),
		logging.String("build_tree", tree),
		logging.String(logging.FieldEventType, "drop_enqueued"),
	)
}

// noteExisting records why a fingerprinted tree was not enqueued. Failed and
// review jobs are left alone; `jobs retry` or a rebuild that changes the
// fingerprint puts them back in play.
func (m *Monitor) noteExisting(tree string, existing *registry.Job) {
	switch {
	case existing.Status == registry.StatusCompleted:
		m.noteSkip(tree, "already installed", slog.LevelDebug)
	case existing.IsInWorkflow():
		m.noteSkip(tree, "already queued", slog.LevelDebug)
	default:
		m.noteSkip(tree, "previous attempt needs attention; use jobs retry or rebuild", slog.LevelDebug)
	}
}

// noteSkip logs a skip reason once per tree until the reason changes.
func (m *Monitor) noteSkip(tree, reason string, level slog.Level) {
	m.mu.Lock()
	prev, seen := m.noted[tree]
	m.noted[tree] = reason
	m.mu.Unlock()

	if seen && prev == reason {
		return
	}
	m.logger.Log(context.Background(), level, "skipping drop entry",
		logging.String("path", tree),
		logging.String("reason", reason),
	)
}

func (m *Monitor) clearNote(tree string) {
	m.mu.Lock()
	delete(m.noted, tree)
	m.mu.Unlock()
}

// pruneNotes drops tracking for entries no longer present, so a tree that
// is deleted and re-dropped gets noted again.
func (m *Monitor) pruneNotes(current map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tree := range m.noted {
		if tree == m.cfg.Paths.DropDir {
			continue
		}
		if _, ok := current[tree]; !ok {
			delete(m.noted, tree)
		}
	}
}
