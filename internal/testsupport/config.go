// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"anything/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.PluginDir = filepath.Join(base, "plugins.d")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.MountRelay.SourcePath = filepath.Join(base, "mountinfo")
	cfgVal.MountRelay.SinkPath = filepath.Join(base, "driver_set_info")
	cfgVal.Journal.Path = filepath.Join(base, "data", "journal.db")
	cfgVal.Bus.UseSessionBus = true

	// Builtin plugins are opt-in per test; WithJournalEnabled turns the
	// journal back on.
	cfgVal.Journal.Enabled = false
	cfgVal.Hooks.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithServiceName overrides the claimed bus service name on the test config.
func WithServiceName(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Bus.ServiceName = name
	}
}

// WithJournalEnabled turns the built-in journal plugin on.
func WithJournalEnabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = true
	}
}

// WithDrainTimeout sets the worker drain timeout in seconds.
func WithDrainTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.DrainTimeoutSeconds = seconds
	}
}
