package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"stagehand/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("STAGEHAND_PREFIX", "")
	t.Setenv("DESTDIR", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "stagehand", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.DropDir != filepath.Join(tempHome, ".local", "share", "stagehand", "drops") {
		t.Fatalf("unexpected drop dir: %q", cfg.Paths.DropDir)
	}
	if cfg.Install.Prefix != "/usr/local" {
		t.Fatalf("unexpected install prefix: %q", cfg.Install.Prefix)
	}
	if cfg.Install.DestDir != "" {
		t.Fatalf("expected empty destdir, got %q", cfg.Install.DestDir)
	}
	if cfg.Install.DefaultConfig != "Release" {
		t.Fatalf("unexpected default configuration: %q", cfg.Install.DefaultConfig)
	}
	if !cfg.Install.Manifest {
		t.Fatal("expected manifest recording enabled by default")
	}
	if cfg.Notifications.NtfyTopic != "" {
		t.Fatalf("expected notifications disabled by default, got topic %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Daemon.HeartbeatInterval != config.Default().Daemon.HeartbeatInterval {
		t.Fatalf("unexpected heartbeat interval: %d", cfg.Daemon.HeartbeatInterval)
	}
	if cfg.Daemon.HeartbeatTimeout != config.Default().Daemon.HeartbeatTimeout {
		t.Fatalf("unexpected heartbeat timeout: %d", cfg.Daemon.HeartbeatTimeout)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.StagingDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}

	if cfg.RegistryPath() != filepath.Join(cfg.Paths.StateDir, "stagehand.db") {
		t.Fatalf("unexpected registry path: %q", cfg.RegistryPath())
	}
	if cfg.SocketPath() != filepath.Join(cfg.Paths.StateDir, "stagehand.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.SocketPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("STAGEHAND_PREFIX", "")
	t.Setenv("DESTDIR", "")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "stagehand.toml")

	type payload struct {
		Install struct {
			Prefix        string `toml:"prefix"`
			DefaultConfig string `toml:"default_config"`
		} `toml:"install"`
		Daemon struct {
			HeartbeatInterval int `toml:"heartbeat_interval"`
			HeartbeatTimeout  int `toml:"heartbeat_timeout"`
		} `toml:"daemon"`
	}
	custom := payload{}
	custom.Install.Prefix = filepath.Join(tempDir, "opt")
	custom.Install.DefaultConfig = "MinSizeRel"
	custom.Daemon.HeartbeatInterval = 20
	custom.Daemon.HeartbeatTimeout = 200
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Install.Prefix != filepath.Join(tempDir, "opt") {
		t.Fatalf("expected prefix from file, got %q", cfg.Install.Prefix)
	}
	if cfg.Install.DefaultConfig != "MinSizeRel" {
		t.Fatalf("expected MinSizeRel default, got %q", cfg.Install.DefaultConfig)
	}
	if cfg.Daemon.HeartbeatInterval != 20 {
		t.Fatalf("expected heartbeat interval 20, got %d", cfg.Daemon.HeartbeatInterval)
	}
	if cfg.Daemon.HeartbeatTimeout != 200 {
		t.Fatalf("expected heartbeat timeout 200, got %d", cfg.Daemon.HeartbeatTimeout)
	}
}

func TestEnvVarOverridesConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "stagehand.toml")

	type payload struct {
		Install struct {
			Prefix string `toml:"prefix"`
		} `toml:"install"`
		Notifications struct {
			NtfyTopic string `toml:"ntfy_topic"`
		} `toml:"notifications"`
	}
	custom := payload{}
	custom.Install.Prefix = filepath.Join(tempDir, "from-file")
	custom.Notifications.NtfyTopic = "file-topic"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("STAGEHAND_PREFIX", filepath.Join(tempDir, "from-env"))
	t.Setenv("DESTDIR", filepath.Join(tempDir, "destdir"))
	t.Setenv("STAGEHAND_NTFY_TOPIC", "env-topic")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Install.Prefix != filepath.Join(tempDir, "from-env") {
		t.Errorf("expected prefix from env, got %q", cfg.Install.Prefix)
	}
	if cfg.Install.DestDir != filepath.Join(tempDir, "destdir") {
		t.Errorf("expected destdir from env, got %q", cfg.Install.DestDir)
	}
	if cfg.Notifications.NtfyTopic != "env-topic" {
		t.Errorf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "default_config") {
		t.Fatalf("sample config missing install settings: %s", contents)
	}

	// Validate it decodes
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Install.Prefix != "/usr/local" {
		t.Fatalf("expected sample prefix /usr/local, got %q", cfg.Install.Prefix)
	}
	if cfg.Install.DefaultConfig != "Release" {
		t.Fatalf("expected sample default configuration Release, got %q", cfg.Install.DefaultConfig)
	}
	if cfg.Daemon.HeartbeatTimeout <= cfg.Daemon.HeartbeatInterval {
		t.Fatalf("expected sample heartbeat timeout above interval, got %d <= %d",
			cfg.Daemon.HeartbeatTimeout, cfg.Daemon.HeartbeatInterval)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Install.Prefix = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty prefix")
	}

	cfg = config.Default()
	cfg.Install.DefaultConfig = "Bogus"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown build configuration")
	}

	cfg = config.Default()
	cfg.Daemon.DropPollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive poll interval")
	}

	cfg = config.Default()
	cfg.Daemon.HeartbeatInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for heartbeat interval")
	}

	cfg = config.Default()
	cfg.Daemon.HeartbeatTimeout = cfg.Daemon.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when timeout <= interval")
	}

	cfg = config.Default()
	cfg.Notifications.RequestTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive request timeout")
	}
}
