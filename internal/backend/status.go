package backend

import (
	"anything/internal/logging"
	"anything/internal/mountinfo"
)

// The methods below implement busguard.StatusReporter; they back the control
// object published on the bus.

// Connected reports whether startup completed.
func (b *Backend) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateConnected
}

// PluginKeys lists registered plugin keys in registration order.
func (b *Backend) PluginKeys() []string {
	keys := b.sup.Keys()
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	return out
}

// StuckPluginKeys lists keys whose workers failed to confirm drain.
func (b *Backend) StuckPluginKeys() []string {
	keys := b.sup.StuckKeys()
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	return out
}

// LastRelayOutcome names the most recent mount relay outcome.
func (b *Backend) LastRelayOutcome() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastOutcome.String()
}

// RefreshMountInfo re-runs the mount relay on behalf of a caller. The
// backend never retries on its own; this is the operator's retry path.
func (b *Backend) RefreshMountInfo() string {
	outcome := b.relay.Run()
	b.mu.Lock()
	b.lastOutcome = outcome
	b.mu.Unlock()
	if outcome != mountinfo.Success {
		b.logger.Warn("mount relay refresh failed",
			logging.String(logging.FieldOutcome, outcome.String()),
			logging.String(logging.FieldEventType, "mount_relay_refresh_failed"),
		)
	}
	return outcome.String()
}
