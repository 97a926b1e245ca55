package main

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	"anything/internal/busguard"
)

// busClient resolves the daemon's control object from the persistent flags at
// call time, after cobra has parsed them.
type busClient struct {
	service    *string
	objectPath *string
	session    *bool
}

func (c *busClient) call(method string, results ...any) error {
	var conn *dbus.Conn
	var err error
	if *c.session {
		conn, err = dbus.ConnectSessionBus()
	} else {
		conn, err = dbus.ConnectSystemBus()
	}
	if err != nil {
		return fmt.Errorf("connect to bus: %w", err)
	}
	defer conn.Close()

	obj := conn.Object(*c.service, dbus.ObjectPath(*c.objectPath))
	call := obj.Call(busguard.ControlInterface+"."+method, 0)
	if call.Err != nil {
		return fmt.Errorf("call %s: %w (is anythingd running?)", method, call.Err)
	}
	if len(results) == 0 {
		return nil
	}
	if err := call.Store(results...); err != nil {
		return fmt.Errorf("decode %s reply: %w", method, err)
	}
	return nil
}
