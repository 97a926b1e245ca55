package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Bus.ServiceName != "com.deepin.anything" {
		t.Fatalf("unexpected service name %q", cfg.Bus.ServiceName)
	}
	if cfg.MountRelay.SinkPath != "/dev/driver_set_info" {
		t.Fatalf("unexpected sink path %q", cfg.MountRelay.SinkPath)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[paths]
plugin_dir = "` + filepath.Join(dir, "plugins") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[workers]
event_buffer = 16
drain_timeout_seconds = 5

[mount_relay]
source_path = "` + filepath.Join(dir, "mountinfo") + `"
sink_path = "` + filepath.Join(dir, "sink") + `"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved existing path %q, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Workers.EventBuffer != 16 || cfg.Workers.DrainTimeoutSeconds != 5 {
		t.Fatalf("worker overrides not applied: %+v", cfg.Workers)
	}
	if cfg.MountRelay.SourcePath != filepath.Join(dir, "mountinfo") {
		t.Fatalf("mount relay source not applied: %q", cfg.MountRelay.SourcePath)
	}
	// Unset sections keep defaults.
	if cfg.Bus.ServiceName != "com.deepin.anything" {
		t.Fatalf("bus default lost: %q", cfg.Bus.ServiceName)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	cfg, _, exists, err := Load(missing)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Workers.EventBuffer != defaultEventBuffer {
		t.Fatalf("expected default event buffer, got %d", cfg.Workers.EventBuffer)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Logging.Format = "xml"
	cfg.Bus.ObjectPath = "relative/path"
	cfg.Hooks.Enabled = true
	cfg.Hooks.RedisAddr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, fragment := range []string{"logging.format", "bus.object_path", "hooks.redis_addr"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q missing %q", err, fragment)
		}
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := expandPath("~/logs")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if got != filepath.Join(home, "logs") {
		t.Fatalf("expandPath = %q", got)
	}
}
