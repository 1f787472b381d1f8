package config

const (
	defaultLogDir                 = "~/.local/share/monad/logs"
	defaultStateDir               = "~/.local/state/monad"
	defaultLogRetentionDays       = 30
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultMode                   = ModeLoop
	defaultPollIntervalSeconds    = 5
	defaultServerBind             = "127.0.0.1:3030"
	defaultShutdownTimeoutSeconds = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Daemon: Daemon{
			Mode:                defaultMode,
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Server: Server{
			Bind:                   defaultServerBind,
			ShutdownTimeoutSeconds: defaultShutdownTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
