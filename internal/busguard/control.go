package busguard

import (
	"encoding/json"

	"github.com/godbus/dbus/v5"
)

// ControlInterface is the bus interface the control object implements.
const ControlInterface = "com.deepin.anything"

// StatusReporter is what the control object needs from the backend.
type StatusReporter interface {
	// Connected reports whether startup completed.
	Connected() bool
	// PluginKeys lists registered plugin keys in registration order.
	PluginKeys() []string
	// StuckPluginKeys lists keys whose workers failed to drain.
	StuckPluginKeys() []string
	// LastRelayOutcome names the most recent mount relay outcome.
	LastRelayOutcome() string
	// RefreshMountInfo re-runs the mount relay and names its outcome.
	RefreshMountInfo() string
}

// Control is the adaptor object published at the well-known path. Its
// exported methods form the bus surface operators and the CLI consume.
type Control struct {
	backend StatusReporter
}

// NewControl wraps the backend for export on the bus.
func NewControl(backend StatusReporter) *Control {
	return &Control{backend: backend}
}

type statusPayload struct {
	Connected        bool     `json:"connected"`
	PluginKeys       []string `json:"plugin_keys"`
	StuckPluginKeys  []string `json:"stuck_plugin_keys"`
	LastRelayOutcome string   `json:"last_relay_outcome"`
}

// Status returns a JSON snapshot of backend state.
func (c *Control) Status() (string, *dbus.Error) {
	payload := statusPayload{
		Connected:        c.backend.Connected(),
		PluginKeys:       c.backend.PluginKeys(),
		StuckPluginKeys:  c.backend.StuckPluginKeys(),
		LastRelayOutcome: c.backend.LastRelayOutcome(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}

// PluginKeys lists the registered plugin keys.
func (c *Control) PluginKeys() ([]string, *dbus.Error) {
	return c.backend.PluginKeys(), nil
}

// RefreshMountInfo re-runs the mount relay on the operator's behalf and
// returns the outcome name. The backend itself never retries the relay.
func (c *Control) RefreshMountInfo() (string, *dbus.Error) {
	return c.backend.RefreshMountInfo(), nil
}
