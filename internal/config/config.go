package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample.toml
var sampleConfig string

const (
	defaultConfigLocation = "~/.config/stagehand/config.toml"
	dirMode               = 0o755
)

// Paths contains directory configuration.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
	DropDir    string `toml:"drop_dir"`
	BundleDir  string `toml:"bundle_dir"`
}

// Install contains defaults applied to install runs.
type Install struct {
	Prefix        string `toml:"prefix"`
	DefaultConfig string `toml:"default_config"`
	DestDir       string `toml:"destdir"`
	Manifest      bool   `toml:"manifest"`
	VerifyAfter   bool   `toml:"verify_after"`
}

// Notifications configures ntfy push delivery.
type Notifications struct {
	NtfyTopic string `toml:"ntfy_topic"`

	Installs bool `toml:"installs"`
	Errors   bool `toml:"errors"`

	RequestTimeout     int `toml:"request_timeout"`
	DedupWindowSeconds int `toml:"dedup_window_seconds"`
}

// Daemon contains configuration for daemon timing and intervals.
type Daemon struct {
	// Poll cadence, in seconds.
	DropPollInterval int `toml:"drop_poll_interval"`
	JobPollInterval  int `toml:"job_poll_interval"`

	RetryInterval int `toml:"error_retry_interval"`

	// Heartbeat stamping cadence and staleness cutoff, in seconds.
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
}

// Logging controls log format, level, and retention.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`

	RetentionDays int `toml:"retention_days"`

	// Per-stage level overrides, keyed by stage name.
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config is the root of stagehand's TOML configuration.
//
// Sections:
//   - Paths: state, staging, log, drop, and bundle directories
//   - Install: default prefix, build configuration, destdir, manifest policy
//   - Notifications: ntfy topic and delivery toggles
//   - Daemon: polling cadence and heartbeat timing
//   - Logging: format, level, retention, per-stage level overrides
type Config struct {
	Paths   Paths   `toml:"paths"`
	Install Install `toml:"install"`
	Logging Logging `toml:"logging"`

	Notifications Notifications `toml:"notifications"`
	Daemon        Daemon        `toml:"daemon"`
}

// DefaultConfigPath returns where stagehand looks for its config file by default.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigLocation)
}

// Load reads the configuration file, falling back to defaults when none
// exists, then normalizes and validates the result.
func Load(path string) (*Config, string, bool, error) {
	loc, exists, err := locateConfigFile(path)
	if err != nil {
		return nil, "", false, err
	}

	c := Default()
	if exists {
		raw, readErr := os.ReadFile(loc)
		if readErr != nil {
			return nil, "", false, fmt.Errorf("read config: %w", readErr)
		}
		if unmarshalErr := toml.Unmarshal(raw, &c); unmarshalErr != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", unmarshalErr)
		}
	}

	if err := c.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}
	return &c, loc, exists, nil
}

// ResolvePath reports where configuration would be loaded from and whether a
// file exists there, without parsing it.
func ResolvePath(path string) (string, bool, error) {
	return locateConfigFile(path)
}

// locateConfigFile picks the config file location: an explicit path wins,
// then ~/.config/stagehand/config.toml, then stagehand.toml in the working
// directory. The default path is reported even when no file exists yet.
func locateConfigFile(path string) (string, bool, error) {
	if path != "" {
		expanded, expandErr := expandPath(path)
		if expandErr != nil {
			return "", false, expandErr
		}
		switch _, statErr := os.Stat(expanded); {
		case statErr == nil:
			return expanded, true, nil
		case errors.Is(statErr, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config: %w", statErr)
		}
	}

	fallback, err := expandPath(defaultConfigLocation)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("stagehand.toml")
	if err != nil {
		return "", false, err
	}

	for _, candidate := range []string{fallback, projectPath} {
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, true, nil
		}
	}
	return fallback, false, nil
}

// EnsureDirectories creates the state, staging, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, dirMode); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	// The drop directory may sit on storage that comes and goes; its absence
	// must not keep the daemon from starting.
	if drop := strings.TrimSpace(c.Paths.DropDir); drop != "" {
		_ = os.MkdirAll(drop, dirMode)
	}
	return nil
}

// RegistryPath returns the location of the SQLite registry database.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Paths.StateDir, "stagehand.db")
}

// SocketPath returns the Unix socket path used for daemon IPC.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "stagehand.sock")
}

// LockFilePath returns the daemon single-instance lock file path.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.StateDir, "stagehand.lock")
}

// PIDFilePath returns the daemon pid file path.
func (c *Config) PIDFilePath() string {
	return filepath.Join(c.Paths.StateDir, "stagehand.pid")
}

func expandPath(raw string) (string, error) {
	if raw == "" {
		return raw, nil
	}
	expanded, err := expandTilde(raw)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", expanded, err)
	}
	return abs, nil
}

func expandTilde(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, homeErr := os.UserHomeDir()
	if homeErr != nil {
		return "", fmt.Errorf("resolve home directory: %w", homeErr)
	}
	switch {
	case p == "~":
		return home, nil
	case p[1] == '/' || p[1] == '\\':
		return filepath.Join(home, p[2:]), nil
	default:
		return p, nil
	}
}

// ExpandPath applies tilde and absolute-path expansion for callers outside
// this package.
func ExpandPath(raw string) (string, error) {
	return expandPath(raw)
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config %s: %w", path, err)
	}
	return nil
}
