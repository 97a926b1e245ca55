// Package config loads, normalizes, and validates anything backend
// configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ANYTHING_REDIS_ADDR. The Config type centralizes every knob the daemon and
// CLI need: plugin manifest directory, bus identity, mount relay paths, worker
// drain policy, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
