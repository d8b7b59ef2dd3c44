package testsupport

import (
	"path/filepath"
	"testing"

	"stagehand/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig builds a config whose paths all live under a fresh t.TempDir,
// then applies the given options on top of the defaults.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(root, "state")
	cfg.Paths.StagingDir = filepath.Join(root, "staging")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.Paths.DropDir = filepath.Join(root, "drop")
	cfg.Paths.BundleDir = filepath.Join(root, "bundles")
	cfg.Install.Prefix = filepath.Join(root, "prefix")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithPrefix overrides the install prefix on the test config.
func WithPrefix(prefix string) ConfigOption {
	return func(cfg *config.Config) { cfg.Install.Prefix = prefix }
}

// WithDestDir sets a staging root prepended to the prefix on the test config.
func WithDestDir(destDir string) ConfigOption {
	return func(cfg *config.Config) { cfg.Install.DestDir = destDir }
}

// WithDefaultConfig overrides the default build configuration name.
func WithDefaultConfig(name string) ConfigOption {
	return func(cfg *config.Config) { cfg.Install.DefaultConfig = name }
}

// WithNtfyTopic sets the notification topic on the test config.
func WithNtfyTopic(topic string) ConfigOption {
	return func(cfg *config.Config) { cfg.Notifications.NtfyTopic = topic }
}

// BaseDir recovers the temp root a NewConfig result was seeded under.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
