package config

import (
	"errors"
	"fmt"
	"strings"

	"stagehand/internal/plan"
)

// Validate checks the loaded configuration for values the daemon cannot
// run with.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validatePaths,
		c.validateInstall,
		c.validateDaemon,
		c.validateNotifications,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePaths() error {
	required := []struct {
		key   string
		value string
	}{
		{"paths.state_dir", c.Paths.StateDir},
		{"paths.staging_dir", c.Paths.StagingDir},
		{"paths.log_dir", c.Paths.LogDir},
	}
	for _, entry := range required {
		if strings.TrimSpace(entry.value) == "" {
			return fmt.Errorf("%s must be set", entry.key)
		}
	}
	return nil
}

func (c *Config) validateInstall() error {
	if strings.TrimSpace(c.Install.Prefix) == "" {
		return errors.New("install.prefix must be set")
	}
	if _, ok := plan.ParseConfiguration(c.Install.DefaultConfig); !ok {
		return fmt.Errorf("install.default_config %q is not one of %s",
			c.Install.DefaultConfig, strings.Join(plan.ConfigurationNames(), ", "))
	}
	return nil
}

func (c *Config) validateDaemon() error {
	intervals := map[string]int{
		"daemon.drop_poll_interval":   c.Daemon.DropPollInterval,
		"daemon.job_poll_interval":    c.Daemon.JobPollInterval,
		"daemon.error_retry_interval": c.Daemon.RetryInterval,
		"daemon.heartbeat_interval":   c.Daemon.HeartbeatInterval,
		"daemon.heartbeat_timeout":    c.Daemon.HeartbeatTimeout,
	}
	if err := ensurePositive(intervals); err != nil {
		return err
	}
	if c.Daemon.HeartbeatTimeout <= c.Daemon.HeartbeatInterval {
		return errors.New("daemon.heartbeat_timeout must be greater than daemon.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds cannot be negative")
	}
	return nil
}

func ensurePositive(values map[string]int) error {
	for name, n := range values {
		if n <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
