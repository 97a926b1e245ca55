package supervisor

import (
	"context"

	"anything/internal/logging"
	"anything/internal/plugin"
)

// HandleAdded reacts to a newly discovered plugin key.
func (s *Supervisor) HandleAdded(ctx context.Context, key plugin.Key) {
	s.AddPlugin(ctx, key)
}

// HandleRemoved reacts to plugin keys disappearing from the discovery source.
func (s *Supervisor) HandleRemoved(keys []plugin.Key) {
	s.RemovePlugins(keys)
}

// HandleModified reloads the given keys: each worker is stopped and fully
// drained first, then keys that are still discoverable are registered again.
// The old worker never shares an event with its replacement; a key whose
// worker failed to drain stays registered and is not replaced.
func (s *Supervisor) HandleModified(ctx context.Context, keys []plugin.Key) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.logger.Info("reloading plugins",
		logging.String(logging.FieldPluginKeys, plugin.JoinKeys(keys)),
		logging.String(logging.FieldEventType, "plugin_reload"),
	)

	s.removeLocked(keys)

	for _, key := range keys {
		s.mu.RLock()
		_, present := s.workers[key]
		s.mu.RUnlock()
		if present {
			// drain timed out; the old worker still owns this key
			continue
		}
		if !s.factories.Known(key) {
			continue
		}
		s.addLocked(ctx, key)
	}
}
