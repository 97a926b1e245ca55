package config

const (
	defaultConfigPath          = "~/.config/anything/config.toml"
	defaultPluginDir           = "/usr/lib/anything/plugins"
	defaultLogDir              = "~/.local/share/anything/logs"
	defaultDataDir             = "~/.local/share/anything"
	defaultServiceName         = "com.deepin.anything"
	defaultObjectPath          = "/com/deepin/anything"
	defaultMountSourcePath     = "/proc/self/mountinfo"
	defaultMountSinkPath       = "/dev/driver_set_info"
	defaultEventBuffer         = 256
	defaultDrainTimeoutSeconds = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultJournalFile         = "journal.db"
	defaultHooksChannel        = "anything:events"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			PluginDir: defaultPluginDir,
			LogDir:    defaultLogDir,
			DataDir:   defaultDataDir,
		},
		Bus: Bus{
			ServiceName: defaultServiceName,
			ObjectPath:  defaultObjectPath,
		},
		MountRelay: MountRelay{
			SourcePath: defaultMountSourcePath,
			SinkPath:   defaultMountSinkPath,
		},
		Workers: Workers{
			EventBuffer:         defaultEventBuffer,
			DrainTimeoutSeconds: defaultDrainTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Journal: Journal{
			Enabled: true,
		},
		Hooks: Hooks{
			Channel: defaultHooksChannel,
		},
	}
}
