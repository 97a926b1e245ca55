package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	PluginDir string `toml:"plugin_dir"`
	LogDir    string `toml:"log_dir"`
	DataDir   string `toml:"data_dir"`
}

// Bus contains the service identity claimed on the system bus.
type Bus struct {
	ServiceName string `toml:"service_name"`
	ObjectPath  string `toml:"object_path"`
	// UseSessionBus switches the guard to the session bus; intended for
	// development machines where the system bus policy forbids the name.
	UseSessionBus bool `toml:"use_session_bus"`
}

// MountRelay contains the kernel mount-info bridge endpoints.
type MountRelay struct {
	SourcePath string `toml:"source_path"`
	SinkPath   string `toml:"sink_path"`
}

// Workers contains supervisor tuning for plugin workers.
type Workers struct {
	// EventBuffer is the per-worker inbound event channel capacity.
	EventBuffer int `toml:"event_buffer"`
	// DrainTimeoutSeconds bounds the wait for a worker to drain on removal.
	// Zero waits indefinitely.
	DrainTimeoutSeconds int `toml:"drain_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Journal configures the built-in sqlite event journal plugin.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Hooks configures the built-in Redis event publisher plugin.
type Hooks struct {
	Enabled       bool   `toml:"enabled"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Channel       string `toml:"channel"`
}

// Config encapsulates all configuration values for the anything backend.
//
// Configuration sections by subsystem:
//   - Paths: plugin manifest, log, and data directories
//   - Bus: claimed service name and control object path
//   - MountRelay: kernel mount-info bridge source and sink
//   - Workers: per-plugin worker channel capacity and drain policy
//   - Logging: log format, level, and retention
//   - Journal: built-in sqlite event journal plugin
//   - Hooks: built-in Redis event publisher plugin
type Config struct {
	Paths      Paths      `toml:"paths"`
	Bus        Bus        `toml:"bus"`
	MountRelay MountRelay `toml:"mount_relay"`
	Workers    Workers    `toml:"workers"`
	Logging    Logging    `toml:"logging"`
	Journal    Journal    `toml:"journal"`
	Hooks      Hooks      `toml:"hooks"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Sample returns the embedded sample configuration file contents.
func Sample() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return names
// the resolved path, the third reports whether a file existed there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// EnsureDirectories creates the configured directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.PluginDir, c.Paths.LogDir, c.Paths.DataDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("anything.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}
