// Package busguard enforces the single-instance guarantee by claiming the
// backend's well-known name on the system bus and publishing the control
// object other processes talk to.
package busguard

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"anything/internal/logging"
)

// ErrPublishObject marks the startup-fatal case where the service name was
// claimed but the control object could not be exported: the identity is held
// while the object stays unreachable.
var ErrPublishObject = errors.New("publish control object")

// Conn is the subset of the bus connection the guard needs. *dbus.Conn
// satisfies it; tests substitute a fake.
type Conn interface {
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	Close() error
}

// Guard claims a well-known service identity exactly once per host.
type Guard struct {
	serviceName string
	objectPath  dbus.ObjectPath
	logger      *slog.Logger

	// connect opens the bus connection; overridable in tests.
	connect func() (Conn, error)
	conn    Conn
	owned   bool
}

// New builds a guard for the given service name and object path on the
// system bus. useSessionBus redirects to the session bus for development.
func New(serviceName, objectPath string, useSessionBus bool, logger *slog.Logger) *Guard {
	return &Guard{
		serviceName: serviceName,
		objectPath:  dbus.ObjectPath(objectPath),
		logger:      logging.NewComponentLogger(logger, "busguard"),
		connect: func() (Conn, error) {
			if useSessionBus {
				return dbus.ConnectSessionBus()
			}
			return dbus.ConnectSystemBus()
		},
	}
}

// NewWithConn builds a guard using a caller-supplied connection factory.
func NewWithConn(serviceName, objectPath string, connect func() (Conn, error), logger *slog.Logger) *Guard {
	g := New(serviceName, objectPath, false, logger)
	g.connect = connect
	return g
}

// Claim attempts to become the primary owner of the service name. It returns
// owned=false with a nil error when another process already holds the name;
// that instance should stand down without side effects. When the name is
// claimed, the control object is exported at the guard's object path; an
// export failure wraps ErrPublishObject and is fatal to startup.
func (g *Guard) Claim(control *Control) (owned bool, err error) {
	conn, err := g.connect()
	if err != nil {
		return false, fmt.Errorf("connect bus: %w", err)
	}

	reply, err := conn.RequestName(g.serviceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("request name %s: %w", g.serviceName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		_ = conn.Close()
		g.logger.Info("service already running, standing down",
			logging.String("service", g.serviceName),
			logging.String(logging.FieldEventType, "service_already_claimed"),
		)
		return false, nil
	}

	if err := g.export(conn, control); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("%w at %s: %w", ErrPublishObject, g.objectPath, err)
	}

	g.conn = conn
	g.owned = true
	g.logger.Info("service identity claimed",
		logging.String("service", g.serviceName),
		logging.String("object_path", string(g.objectPath)),
		logging.String(logging.FieldEventType, "service_claimed"),
	)
	return true, nil
}

func (g *Guard) export(conn Conn, control *Control) error {
	if control == nil {
		return errors.New("control object is nil")
	}
	if err := conn.Export(control, g.objectPath, ControlInterface); err != nil {
		return err
	}

	node := &introspect.Node{
		Name: string(g.objectPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    ControlInterface,
				Methods: introspect.Methods(control),
			},
		},
	}
	return conn.Export(introspect.NewIntrospectable(node), g.objectPath,
		"org.freedesktop.DBus.Introspectable")
}

// Owned reports whether this process holds the service identity.
func (g *Guard) Owned() bool { return g.owned }

// Close releases the bus connection. The name ownership lapses with it; the
// guard holds the identity for process lifetime, so this runs only at exit.
func (g *Guard) Close() error {
	if g.conn == nil {
		return nil
	}
	err := g.conn.Close()
	g.conn = nil
	g.owned = false
	return err
}
