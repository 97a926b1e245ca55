// Package plugin defines the capability interface plugin workers host and the
// factory registry plugin keys resolve through.
package plugin

import (
	"context"
	"fmt"
	"strings"
)

// Key identifies a plugin. Keys are lowercase tokens validated at the loader
// boundary; the registry never holds two workers for the same key.
type Key string

// ParseKey validates a raw key string.
func ParseKey(raw string) (Key, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("plugin key is empty")
	}
	for _, r := range trimmed {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return "", fmt.Errorf("plugin key %q contains invalid character %q", trimmed, r)
		}
	}
	return Key(trimmed), nil
}

func (k Key) String() string { return string(k) }

// JoinKeys renders keys for log output.
func JoinKeys(keys []Key) string {
	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = string(key)
	}
	return strings.Join(parts, ",")
}

// Handler is the capability interface each worker hosts. The supervisor calls
// Start before any event is delivered and Stop after the worker has drained.
// The three event hooks run on the worker's own goroutine, never concurrently
// with each other.
type Handler interface {
	Start(ctx context.Context) error
	OnFileCreated(path string)
	OnFileDeleted(path string)
	OnFileRenamed(oldPath, newPath string)
	Stop() error
}
