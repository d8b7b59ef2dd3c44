package config

const (
	defaultStateDir             = "~/.local/share/stagehand"
	defaultStagingDir           = "~/.local/share/stagehand/staging"
	defaultLogDir               = "~/.local/share/stagehand/logs"
	defaultDropDir              = "~/.local/share/stagehand/drops"
	defaultBundleDir            = "~/.local/share/stagehand/bundles"
	defaultInstallPrefix        = "/usr/local"
	defaultInstallConfig        = "Release"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetention         = 60
	defaultNotifyRequestTimeout = 10
	defaultNotifyDedupWindow    = 600
	defaultDropPollInterval     = 5
	defaultJobPollInterval      = 5
	defaultErrorRetryInterval   = 10
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			DropDir:    defaultDropDir,
			BundleDir:  defaultBundleDir,
		},
		Install: Install{
			Prefix:        defaultInstallPrefix,
			DefaultConfig: defaultInstallConfig,
			Manifest:      true,
			VerifyAfter:   true,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			Installs:           true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindow,
		},
		Daemon: Daemon{
			DropPollInterval:  defaultDropPollInterval,
			JobPollInterval:   defaultJobPollInterval,
			RetryInterval:     defaultErrorRetryInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
