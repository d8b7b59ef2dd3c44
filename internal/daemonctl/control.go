// Package daemonctl orchestrates daemon lifecycle operations shared by CLI
// commands: launching the detached process, waiting for IPC availability,
// graceful stop with forced termination, and status snapshots with offline
// fallbacks when the daemon is not running.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"stagehand/internal/config"
	"stagehand/internal/ipc"
	"stagehand/internal/preflight"
	"stagehand/internal/registry"
)

const pollInterval = 200 * time.Millisecond

// LaunchOptions carries the flags forwarded to the spawned daemon process.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult reports how EnsureStarted resolved the request.
type StartResult struct {
	State   StartState
	Message string

	Launched bool
}

// StopResult reports what StopAndTerminate had to do to bring the daemon down.
type StopResult struct {
	Acked  bool
	Forced bool
	PID    int
}

// RestartResult pairs the stop and start outcomes of a restart.
type RestartResult struct {
	WasRunning bool

	Stop  StopResult
	Start StartResult
}

// ErrDaemonNotRunning reports that no daemon answered on the control socket.
var ErrDaemonNotRunning = errors.New("daemon is not running")

// Launch spawns a detached daemon process running `stagehand daemon run`.
func Launch(binPath string, opts LaunchOptions) error {
	if strings.TrimSpace(binPath) == "" {
		return errors.New("executable path is empty")
	}

	args := []string{"daemon", "run"}
	for _, flag := range []struct{ name, value string }{
		{"--socket", opts.SocketPath},
		{"--config-file", opts.ConfigPath},
	} {
		if v := strings.TrimSpace(flag.value); v != "" {
			args = append(args, flag.name, v)
		}
	}

	cmd := exec.Command(binPath, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn daemon process: %w", err)
	}
	return cmd.Process.Release()
}

// poll retries step every pollInterval until it succeeds or the timeout
// elapses, returning nil on success and the last error otherwise.
func poll(timeout time.Duration, step func() error) error {
	var last error
	for stop := time.Now().Add(timeout); time.Now().Before(stop); {
		if last = step(); last == nil {
			return nil
		}
		time.Sleep(pollInterval)
	}
	if last == nil {
		last = errors.New("timed out")
	}
	return last
}

// WaitForClient polls the control socket until a connection succeeds or the
// timeout lapses, returning the connected client.
func WaitForClient(socket string, timeout time.Duration) (*ipc.Client, error) {
	var cl *ipc.Client
	err := poll(timeout, func() error {
		dialed, dialErr := ipc.Dial(socket)
		if dialErr != nil {
			return dialErr
		}
		cl = dialed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}
	return cl, nil
}

// WaitForShutdown polls until the control socket disappears or the daemon
// reports itself stopped.
func WaitForShutdown(socket string, timeout time.Duration) error {
	err := poll(timeout, func() error {
		cl, dialErr := ipc.Dial(socket)
		if dialErr != nil {
			if socketGone(dialErr) {
				return nil
			}
			return dialErr
		}
		resp, stErr := cl.Status()
		_ = cl.Close()
		if stErr != nil {
			return stErr
		}
		if resp.Running {
			return errors.New("daemon still running")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("daemon did not stop: %w", err)
	}
	return nil
}

// EnsureStarted connects to a running daemon or spawns one, then asks it to
// start the workflow, reporting which of those actually happened.
func EnsureStarted(socket, binPath string, opts LaunchOptions, wait time.Duration) (StartResult, error) {
	cl, err := ipc.Dial(socket)
	var spawned bool
	if err != nil {
		if err := Launch(binPath, opts); err != nil {
			return StartResult{}, err
		}
		cl, err = WaitForClient(socket, wait)
		if err != nil {
			return StartResult{}, err
		}
		spawned = true
	}
	defer cl.Close()

	if status, stErr := cl.Status(); stErr == nil && status != nil && status.Running {
		state := StartStateAlreadyRunning
		if spawned {
			state = StartStateStarted
		}
		return StartResult{State: state, Launched: spawned}, nil
	}

	startResp, err := cl.Start()
	if err != nil {
		return StartResult{}, err
	}
	return interpretStartResponse(startResp, spawned), nil
}

func interpretStartResponse(resp *ipc.StartResponse, spawned bool) StartResult {
	if resp == nil {
		return StartResult{State: StartStateRequested, Launched: spawned, Message: "Start request sent"}
	}
	msg := strings.TrimSpace(resp.Message)
	switch {
	case resp.Started:
		return StartResult{State: StartStateStarted, Launched: spawned, Message: msg}
	case strings.EqualFold(msg, "daemon already running"):
		if spawned {
			return StartResult{State: StartStateStarted, Launched: true, Message: msg}
		}
		return StartResult{State: StartStateAlreadyRunning, Message: msg}
	case msg != "":
		return StartResult{State: StartStateRequested, Launched: spawned, Message: msg}
	default:
		return StartResult{State: StartStateRequested, Launched: spawned, Message: "Start request sent"}
	}
}

// ProcessInfo reports whether the control socket answers and, when it does,
// the daemon PID.
func ProcessInfo(socket string) (bool, int, error) {
	cl, err := ipc.Dial(socket)
	if err != nil {
		if socketGone(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer cl.Close()

	resp, err := cl.Status()
	if err != nil {
		return true, 0, err
	}
	if resp == nil {
		return true, 0, nil
	}
	return true, resp.PID, nil
}

// DeriveStateDir picks the daemon state directory from the strongest
// available hint.
func DeriveStateDir(lockFile, dbPath string, cfg *config.Config) string {
	if lockFile != "" {
		return filepath.Dir(lockFile)
	}
	if dbPath != "" {
		return filepath.Dir(dbPath)
	}
	if cfg != nil && strings.TrimSpace(cfg.Paths.StateDir) != "" {
		return cfg.Paths.StateDir
	}
	return ""
}

// pidFromFile reads the daemon pid file, falling back to the supplied pid when
// the file is missing or unparseable.
func pidFromFile(pidFile string, fallback int) (int, error) {
	raw, err := os.ReadFile(pidFile)
	if errors.Is(err, os.ErrNotExist) {
		return fallback, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read pid file %s: %w", pidFile, err)
	}
	if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(raw))); parseErr == nil && parsed > 0 {
		return parsed, nil
	}
	return fallback, nil
}

// ForceKillProcess SIGKILLs the daemon recorded in pidFile and clears its pid
// and lock files.
func ForceKillProcess(pidFile, lockFile string, fallback int) (int, error) {
	pid, err := pidFromFile(pidFile, fallback)
	if err != nil {
		return 0, err
	}
	if pid <= 0 {
		return 0, fmt.Errorf("no usable daemon pid (pid file %s)", pidFile)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill own process (pid %d)", pid)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find daemon process %d: %w", pid, err)
	}
	if err := process.Kill(); err != nil {
		return 0, fmt.Errorf("kill pid %d: %w", pid, err)
	}
	removeErr := os.Remove(pidFile)
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidFile, removeErr)
	}
	if lockFile != "" {
		_ = os.Remove(lockFile)
	}
	return pid, nil
}

// StopAndTerminate asks the daemon to stop and falls back to SIGKILL when the
// process is still alive after grace.
func StopAndTerminate(socket string, cfg *config.Config, grace time.Duration) (StopResult, error) {
	cl, err := ipc.Dial(socket)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	var (
		lockFile     string
		dbPath string
		pid          int
	)
	if status, stErr := cl.Status(); stErr == nil && status != nil {
		lockFile = status.LockPath
		dbPath = status.RegistryPath
		pid = status.PID
	}

	stopResp, err := cl.Stop()
	_ = cl.Close()
	if err != nil {
		return StopResult{}, err
	}
	res := StopResult{
		PID:   pid,
		Acked: stopResp != nil && stopResp.Stopped,
	}

	_ = WaitForShutdown(socket, grace)
	up, livePID, upErr := ProcessInfo(socket)
	if upErr != nil {
		up = false
	}
	if !up {
		return res, nil
	}

	if livePID == 0 {
		livePID = pid
	}
	killed, err := forceTerminate(socket, cfg, lockFile, dbPath, livePID)
	if err != nil {
		return res, err
	}
	res.Forced = true
	res.PID = killed
	return res, nil
}

// forceTerminate locates the daemon state files and kills the process outright.
func forceTerminate(socket string, cfg *config.Config, lockFile, dbPath string, pid int) (int, error) {
	stateDir := DeriveStateDir(lockFile, dbPath, cfg)
	if stateDir == "" {
		return 0, fmt.Errorf("unable to determine daemon state directory")
	}
	killed, err := ForceKillProcess(
		filepath.Join(stateDir, "stagehand.pid"),
		filepath.Join(stateDir, "stagehand.lock"),
		pid,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socket)
	return killed, nil
}

// Restart stops any running daemon and brings a fresh one up.
func Restart(socket string, cfg *config.Config, binPath string, opts LaunchOptions, stopGrace, startWait time.Duration) (RestartResult, error) {
	stop, err := StopAndTerminate(socket, cfg, stopGrace)
	wasRunning := err == nil
	if err != nil && !errors.Is(err, ErrDaemonNotRunning) {
		return RestartResult{}, err
	}

	start, err := EnsureStarted(socket, binPath, opts, startWait)
	if err != nil {
		return RestartResult{}, err
	}
	return RestartResult{WasRunning: wasRunning, Stop: stop, Start: start}, nil
}

// StatusLine is one labeled line in the rendered status summary.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// StatusSnapshot combines live daemon status with offline fallbacks so the
// status command renders useful output whether or not the daemon is up.
type StatusSnapshot struct {
	ipc.StatusResponse
	System []StatusLine
}

// BuildStatusSnapshot collects daemon status and applies offline fallbacks for
// queue stats and preflight checks.
func BuildStatusSnapshot(ctx context.Context, socket string, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("no configuration loaded")
	}
	snapshot := &StatusSnapshot{}

	if cl, err := ipc.Dial(socket); err == nil {
		defer cl.Close()
		if live, liveErr := cl.Status(); liveErr == nil && live != nil {
			snapshot.StatusResponse = *live
		}
	}

	snapshot.QueueStats = copyQueueStats(snapshot.QueueStats)
	if !snapshot.Running {
		applyOfflineState(ctx, cfg, snapshot)
	}
	snapshot.System = BuildSystemChecks(cfg, snapshot.Running, snapshot.DropMonitoring)
	return snapshot, nil
}

func copyQueueStats(stats map[string]int) map[string]int {
	copied := make(map[string]int, len(stats))
	for name, count := range stats {
		copied[name] = count
	}
	return copied
}

// applyOfflineState fills snapshot fields from the registry and config when
// the daemon cannot be reached.
func applyOfflineState(ctx context.Context, cfg *config.Config, snapshot *StatusSnapshot) {
	statsCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if store, err := registry.Open(cfg); err == nil {
		stats, statsErr := store.Stats(statsCtx)
		_ = store.Close()
		if statsErr == nil {
			byName := make(map[string]int, len(stats))
			for status, n := range stats {
				byName[string(status)] = n
			}
			snapshot.QueueStats = byName
		}
	}

	if len(snapshot.Preflight) == 0 {
		snapshot.Preflight = OfflinePreflight(ctx, cfg)
	}
	snapshot.RegistryPath = cfg.RegistryPath()
	snapshot.LockPath = cfg.LockFilePath()
}

// OfflinePreflight runs environment checks directly, for status output when
// the daemon's cached results are unavailable.
func OfflinePreflight(ctx context.Context, cfg *config.Config) []ipc.PreflightCheck {
	if cfg == nil {
		return nil
	}
	results := preflight.RunAll(ctx, cfg)
	checks := make([]ipc.PreflightCheck, 0, len(results))
	for _, res := range results {
		checks = append(checks, ipc.PreflightCheck{
			Name:   res.Name,
			Passed: res.Passed,
			Detail: res.Detail,
		})
	}
	return checks
}

// BuildSystemChecks summarizes daemon, drop monitor, and notification
// readiness for status output.
func BuildSystemChecks(cfg *config.Config, daemonRunning, dropMonitoring bool) []StatusLine {
	daemonLine := StatusLine{Label: "Stagehand", Severity: "ok", Detail: "Running"}
	if !daemonRunning {
		daemonLine = StatusLine{Label: "Stagehand", Severity: "warn", Detail: "Not running (run `stagehand daemon start`)"}
	}

	dropDir := strings.TrimSpace(cfg.Paths.DropDir)
	monitorLine := StatusLine{Label: "Drop Monitor"}
	switch {
	case dropMonitoring:
		monitorLine.Severity = "ok"
		monitorLine.Detail = fmt.Sprintf("Watching %s", dropDir)
	case dropDir == "":
		monitorLine.Severity = "info"
		monitorLine.Detail = "No drop directory configured"
	case daemonRunning:
		monitorLine.Severity = "warn"
		monitorLine.Detail = "Inactive (check drop_dir access)"
	default:
		monitorLine.Severity = "info"
		monitorLine.Detail = "Inactive (daemon not running)"
	}

	notifyLine := StatusLine{Label: "Notifications", Severity: "ok", Detail: "Configured"}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		notifyLine = StatusLine{Label: "Notifications", Severity: "info", Detail: "Not configured"}
	}

	return []StatusLine{daemonLine, monitorLine, notifyLine}
}

// BuildPreflightSummary computes aggregate preflight readiness.
func BuildPreflightSummary(checks []ipc.PreflightCheck) StatusLine {
	if len(checks) == 0 {
		return StatusLine{Label: "Preflight", Severity: "info", Detail: "No checks recorded"}
	}

	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
		}
	}
	failed := len(checks) - passed
	if failed > 0 {
		return StatusLine{
			Label:    "Preflight",
			Severity: "error",
			Detail:   fmt.Sprintf("%d/%d passed (%d failing)", passed, len(checks), failed),
		}
	}
	return StatusLine{
		Label:    "Preflight",
		Severity: "ok",
		Detail:   fmt.Sprintf("%d/%d passed", passed, len(checks)),
	}
}

func socketGone(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, os.ErrNotExist)
}

func isDaemonUnavailable(err error) bool {
	return socketGone(err) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
