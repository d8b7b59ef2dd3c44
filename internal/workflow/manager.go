package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stagehand/internal/config"
	"stagehand/internal/notifications"
	"stagehand/internal/registry"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg       *config.Config
	store     *registry.Store
	logger    *slog.Logger
	pollEvery time.Duration
	notifier  notifications.Service

	heartbeat *HeartbeatMonitor

	stages             []pipelineStage
	statusOrder        []registry.Status
	stageByStart       map[registry.Status]pipelineStage
	processingStatuses []registry.Status

	mu       sync.RWMutex
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	lastFail error
	lastJob  *registry.Job

	runActive bool
	runStart  time.Time
}

// NewManager builds a manager with the default ntfy-backed notifier.
func NewManager(cfg *config.Config, store *registry.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom
// notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *registry.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	beatEvery := time.Duration(cfg.Daemon.HeartbeatInterval) * time.Second
	beatTimeout := time.Duration(cfg.Daemon.HeartbeatTimeout) * time.Second
	return &Manager{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		notifier:  notifier,
		pollEvery: time.Duration(cfg.Daemon.JobPollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(store, logger, beatEvery, beatTimeout),
	}
}
