package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"stagehand/internal/config"
	"stagehand/internal/daemon"
	"stagehand/internal/dropmon"
	"stagehand/internal/ipc"
	"stagehand/internal/logging"
	"stagehand/internal/notifications"
	"stagehand/internal/registry"
	"stagehand/internal/stages"
	"stagehand/internal/workflow"
)

// Options adjusts how the daemon process runs.
type Options struct {
	// LogLevel overrides the configured level when non-empty.
	LogLevel string
	// SocketPath overrides the IPC socket location; empty uses the
	// config-derived default.
	SocketPath string
	// Development switches the logger to its human-readable format.
	Development bool
}

// Run starts the stagehand daemon runtime loop and blocks until the context
// is cancelled or a termination signal arrives.
func Run(parent context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("daemon run requires a config")
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := openRunLogger(cfg, opts)
	if err != nil {
		return err
	}

	pidFile := cfg.PIDFilePath()
	if err := writePIDFile(pidFile); err != nil {
		return fmt.Errorf("write pid file %s: %w", pidFile, err)
	}
	defer os.Remove(pidFile)

	store, err := registry.Open(cfg)
	if err != nil {
		logger.Error("open registry store", logging.Error(err))
		return err
	}
	defer store.Close()

	d, err := assembleDaemon(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("assemble daemon: %w", err)
	}
	defer d.Close()

	socket := strings.TrimSpace(opts.SocketPath)
	if socket == "" {
		socket = cfg.SocketPath()
	}
	ctl, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		return fmt.Errorf("start control server: %w", err)
	}
	defer ctl.Close()
	ctl.Serve()

	if err := d.Start(ctx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed", logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and registry database access"),
			logging.String(logging.FieldImpact, "daemon may not process install jobs"),
		)
	}

	<-ctx.Done()
	logger.Info("stagehand daemon shutting down")
	return nil
}

// openRunLogger builds the per-run logger writing to stdout plus a
// timestamped file, logs the environment snapshot, refreshes the
// stagehand.log pointer, and prunes files past retention.
func openRunLogger(cfg *config.Config, opts Options) (*slog.Logger, error) {
	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	runLog := filepath.Join(cfg.Paths.LogDir, "stagehand-"+stamp+".log")

	logger, err := logging.New(logging.Options{
		Level:  opts.LogLevel,
		Format: cfg.Logging.Format,
		// Every run writes stdout and stderr records to the same file.
		OutputPaths:      []string{"stdout", runLog},
		ErrorOutputPaths: []string{"stderr", runLog},
		Development:      opts.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	logEnvironmentSnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, runLog); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update stagehand.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:  cfg.Paths.LogDir,
		Glob: "stagehand-*.log",
		Keep: []string{runLog},
	})
	return logger, nil
}

// assembleDaemon wires the workflow manager, its pipeline stages, and the
// drop monitor into a daemon instance.
func assembleDaemon(cfg *config.Config, store *registry.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	notify := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notify)
	manager.ConfigureStages(workflow.StageSet{
		Validator: stages.NewValidator(cfg, store, logger),
		Stager:    stages.NewStager(cfg, store, logger),
		Installer: stages.NewInstaller(cfg, store, logger),
		Verifier:  stages.NewVerifier(cfg, store, logger),
	})
	monitor := dropmon.NewMonitor(cfg, store, logger)
	return daemon.New(cfg, store, logger, manager, monitor)
}

// ensureCurrentLogPointer points dir/stagehand.log at the active run log,
// falling back to a hard link on filesystems without symlink support.
func ensureCurrentLogPointer(dir, active string) error {
	if dir == "" || active == "" {
		return nil
	}
	pointer := filepath.Join(dir, "stagehand.log")
	if err := os.Remove(pointer); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear previous log pointer: %w", err)
	}
	if os.Symlink(active, pointer) == nil {
		return nil
	}
	if err := os.Link(active, pointer); err != nil {
		return fmt.Errorf("repoint %s: %w", pointer, err)
	}
	return nil
}

func writePIDFile(pidFile string) error {
	if pidFile == "" {
		return nil
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func logEnvironmentSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("environment snapshot",
		logging.String(logging.FieldEventType, "environment_snapshot"),
		logging.String("prefix", cfg.Install.Prefix),
		logging.String("destdir", cfg.Install.DestDir),
		logging.String("staging_dir", cfg.Paths.StagingDir),
		logging.Bool("drop_dir_configured", strings.TrimSpace(cfg.Paths.DropDir) != ""),
		logging.String("drop_dir", cfg.Paths.DropDir),
		logging.String("registry_path", cfg.RegistryPath()),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	)
}
