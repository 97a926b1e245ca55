package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBus()
	c.normalizeMountRelay()
	c.normalizeWorkers()
	c.normalizeLogging()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.normalizeHooks()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.PluginDir, err = expandPath(c.Paths.PluginDir); err != nil {
		return fmt.Errorf("paths.plugin_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBus() {
	c.Bus.ServiceName = strings.TrimSpace(c.Bus.ServiceName)
	if c.Bus.ServiceName == "" {
		c.Bus.ServiceName = defaultServiceName
	}
	c.Bus.ObjectPath = strings.TrimSpace(c.Bus.ObjectPath)
	if c.Bus.ObjectPath == "" {
		c.Bus.ObjectPath = defaultObjectPath
	}
}

func (c *Config) normalizeMountRelay() {
	c.MountRelay.SourcePath = strings.TrimSpace(c.MountRelay.SourcePath)
	if c.MountRelay.SourcePath == "" {
		c.MountRelay.SourcePath = defaultMountSourcePath
	}
	c.MountRelay.SinkPath = strings.TrimSpace(c.MountRelay.SinkPath)
	if c.MountRelay.SinkPath == "" {
		c.MountRelay.SinkPath = defaultMountSinkPath
	}
}

func (c *Config) normalizeWorkers() {
	if c.Workers.EventBuffer <= 0 {
		c.Workers.EventBuffer = defaultEventBuffer
	}
	if c.Workers.DrainTimeoutSeconds < 0 {
		c.Workers.DrainTimeoutSeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeJournal() error {
	c.Journal.Path = strings.TrimSpace(c.Journal.Path)
	if c.Journal.Path == "" {
		c.Journal.Path = filepath.Join(c.Paths.DataDir, defaultJournalFile)
		return nil
	}
	expanded, err := expandPath(c.Journal.Path)
	if err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	c.Journal.Path = expanded
	return nil
}

func (c *Config) normalizeHooks() {
	c.Hooks.RedisAddr = strings.TrimSpace(c.Hooks.RedisAddr)
	if c.Hooks.RedisAddr == "" {
		if value, ok := os.LookupEnv("ANYTHING_REDIS_ADDR"); ok {
			c.Hooks.RedisAddr = strings.TrimSpace(value)
		}
	}
	if c.Hooks.RedisPassword == "" {
		if value, ok := os.LookupEnv("ANYTHING_REDIS_PASSWORD"); ok {
			c.Hooks.RedisPassword = value
		}
	}
	c.Hooks.Channel = strings.TrimSpace(c.Hooks.Channel)
	if c.Hooks.Channel == "" {
		c.Hooks.Channel = defaultHooksChannel
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", trimmed, err)
	}
	return abs, nil
}
