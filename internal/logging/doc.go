// Package logging builds the slog loggers used across the anything backend.
//
// It provides the console (key=value) and JSON handlers, level parsing, the
// no-op logger used by tests, and the standardized structured field names so
// every component logs plugin keys, event types, and failure hints the same
// way.
package logging
