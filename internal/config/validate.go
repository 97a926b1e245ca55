package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports configuration errors that should stop startup.
func (c *Config) Validate() error {
	var problems []string

	if c.Paths.PluginDir == "" {
		problems = append(problems, "paths.plugin_dir is required")
	}
	if c.Paths.LogDir == "" {
		problems = append(problems, "paths.log_dir is required")
	}
	if !strings.Contains(c.Bus.ServiceName, ".") {
		problems = append(problems, fmt.Sprintf("bus.service_name %q is not a well-known bus name", c.Bus.ServiceName))
	}
	if !strings.HasPrefix(c.Bus.ObjectPath, "/") {
		problems = append(problems, fmt.Sprintf("bus.object_path %q must be absolute", c.Bus.ObjectPath))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}
	if c.Hooks.Enabled && c.Hooks.RedisAddr == "" {
		problems = append(problems, "hooks.redis_addr is required when hooks are enabled")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
