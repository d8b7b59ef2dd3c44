package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeInstall(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.BundleDir) == "" {
		c.Paths.BundleDir = defaultBundleDir
	}

	dirs := []struct {
		key   string
		value *string
	}{
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.staging_dir", &c.Paths.StagingDir},
		{"paths.log_dir", &c.Paths.LogDir},
		{"paths.drop_dir", &c.Paths.DropDir},
		{"paths.bundle_dir", &c.Paths.BundleDir},
	}
	for _, dir := range dirs {
		expanded, err := expandPath(*dir.value)
		if err != nil {
			return fmt.Errorf("%s: %w", dir.key, err)
		}
		*dir.value = expanded
	}
	return nil
}

func (c *Config) normalizeInstall() error {
	var err error

	c.Install.Prefix = envOverride("STAGEHAND_PREFIX", c.Install.Prefix)
	if c.Install.Prefix == "" {
		c.Install.Prefix = defaultInstallPrefix
	}
	if c.Install.Prefix, err = expandPath(c.Install.Prefix); err != nil {
		return fmt.Errorf("install.prefix: %w", err)
	}

	c.Install.DestDir = envOverride("DESTDIR", c.Install.DestDir)
	if c.Install.DestDir != "" {
		if c.Install.DestDir, err = expandPath(c.Install.DestDir); err != nil {
			return fmt.Errorf("install.destdir: %w", err)
		}
	}

	c.Install.DefaultConfig = strings.TrimSpace(c.Install.DefaultConfig)
	if c.Install.DefaultConfig == "" {
		c.Install.DefaultConfig = defaultInstallConfig
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = envOverride("STAGEHAND_NTFY_TOPIC", c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	c.Notifications.DedupWindowSeconds = max(c.Notifications.DedupWindowSeconds, 0)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format != "json" {
		format = "console"
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level

	c.Logging.RetentionDays = max(c.Logging.RetentionDays, 0)
}

// envOverride returns the trimmed value of the environment variable when it
// is set and non-empty, else the trimmed fallback.
func envOverride(name, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(fallback)
}
