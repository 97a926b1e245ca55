// Package mountwatch listens for udev block-device events and re-relays the
// kernel mount table whenever the set of mounted devices may have changed.
package mountwatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pilebones/go-udev/netlink"

	"anything/internal/logging"
)

// refreshDelay gives the kernel a moment to settle the mount table after a
// block event before the relay reads it.
const refreshDelay = 500 * time.Millisecond

// Watcher monitors the udev netlink socket for block subsystem changes and
// invokes refresh after each burst of events.
type Watcher struct {
	logger  *slog.Logger
	refresh func()

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	pending *time.Timer
	running bool
}

// New creates a watcher that calls refresh when block devices come or go.
func New(logger *slog.Logger, refresh func()) *Watcher {
	return &Watcher{
		logger:  logging.NewComponentLogger(logger, "mountwatch"),
		refresh: refresh,
	}
}

// Start begins listening for udev netlink events. A connection failure is not
// fatal; mount info can still be refreshed on demand over the bus.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		w.logger.Warn("failed to connect to netlink socket; mount info refresh will rely on manual triggers",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "automatic mount info refresh unavailable"),
		)
		return nil
	}

	w.conn = conn
	w.quit = make(chan struct{})
	w.running = true

	quit := w.quit
	go w.monitorLoop(ctx, quit)

	w.logger.Info("mount watcher started",
		logging.String(logging.FieldEventType, "mountwatch_started"),
	)

	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	if w.quit != nil {
		close(w.quit)
		w.quit = nil
	}

	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}

	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}

	w.running = false

	w.logger.Info("mount watcher stopped",
		logging.String(logging.FieldEventType, "mountwatch_stopped"),
	)
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()

	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, blockMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			w.handleEvent(uevent)
		case err := <-errs:
			w.logger.Warn("mount watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "mountwatch_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "mount info refresh may lag device changes"),
			)
		}
	}
}

// blockMatcher matches add/remove/change events on the block subsystem.
func blockMatcher() netlink.Matcher {
	action := "add|remove|change"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
		},
	})
	return rules
}

// handleEvent schedules a refresh. Bursts of events from one mount or unmount
// collapse into a single relay pass.
func (w *Watcher) handleEvent(uevent netlink.UEvent) {
	w.logger.Debug("block device event",
		logging.String("action", string(uevent.Action)),
		logging.String("device", uevent.Env["DEVNAME"]),
	)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	if w.pending != nil {
		w.pending.Reset(refreshDelay)
		return
	}
	w.pending = time.AfterFunc(refreshDelay, func() {
		w.mu.Lock()
		w.pending = nil
		running := w.running
		w.mu.Unlock()
		if !running || w.refresh == nil {
			return
		}
		w.logger.Info("refreshing mount info after block device change",
			logging.String(logging.FieldEventType, "mountwatch_refresh"),
		)
		w.refresh()
	})
}
