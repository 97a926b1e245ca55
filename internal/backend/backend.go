// Package backend hosts the orchestrator that sequences startup of the
// anything daemon: mount relay, singleton guard, plugin registry, and event
// fan-out.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"anything/internal/busguard"
	"anything/internal/fsevent"
	"anything/internal/logging"
	"anything/internal/mountinfo"
	"anything/internal/plugin"
	"anything/internal/supervisor"
)

// ErrAlreadyRunning reports that another instance holds the service identity;
// this process must perform no further side effects.
var ErrAlreadyRunning = errors.New("anything backend already running")

// Claimer is the singleton guard surface the orchestrator drives. Satisfied
// by *busguard.Guard.
type Claimer interface {
	Claim(control *busguard.Control) (owned bool, err error)
	Close() error
}

type state int

const (
	stateUnconnected state = iota
	stateConnecting
	stateConnected
)

// Backend owns the startup sequence and process-lifetime teardown. Construct
// exactly one per process and pass it to every caller that needs it.
type Backend struct {
	logger    *slog.Logger
	guard     Claimer
	relay     *mountinfo.Relay
	sup       *supervisor.Supervisor
	source    fsevent.Source
	factories *plugin.Factories

	mu          sync.Mutex
	state       state
	lastOutcome mountinfo.Outcome
	cancel      context.CancelFunc
	pumpStopped <-chan struct{}
}

// New wires an orchestrator from its collaborators.
func New(guard Claimer, relay *mountinfo.Relay, sup *supervisor.Supervisor, source fsevent.Source, factories *plugin.Factories, logger *slog.Logger) *Backend {
	return &Backend{
		logger:    logging.NewComponentLogger(logger, "backend"),
		guard:     guard,
		relay:     relay,
		sup:       sup,
		source:    source,
		factories: factories,
	}
}

// Connect performs startup exactly once. Calling it again after a successful
// connect is a no-op returning nil. The sequence is: mount relay (best
// effort), guard claim (failure aborts with no side effects), registry
// population from the discoverable plugin keys, then event source start and
// fan-out. There is no disconnect; teardown happens only via Close at
// process exit.
func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateConnected:
		return nil
	case stateConnecting:
		return errors.New("connect already in progress")
	}
	b.state = stateConnecting

	outcome := b.relay.Run()
	b.lastOutcome = outcome
	if outcome != mountinfo.Success {
		b.logger.Warn("mount relay failed, continuing without kernel mount awareness",
			logging.String(logging.FieldOutcome, outcome.String()),
			logging.String(logging.FieldEventType, "mount_relay_degraded"),
			logging.String(logging.FieldErrorHint, "retry via RefreshMountInfo on the control object"),
		)
	}

	owned, err := b.guard.Claim(busguard.NewControl(b))
	if err != nil {
		b.state = stateUnconnected
		return fmt.Errorf("claim service identity: %w", err)
	}
	if !owned {
		b.state = stateUnconnected
		return ErrAlreadyRunning
	}

	for _, key := range b.factories.Keys() {
		b.sup.AddPlugin(ctx, key)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := b.source.Start(runCtx); err != nil {
		cancel()
		b.sup.Close()
		_ = b.guard.Close()
		b.state = stateUnconnected
		return fmt.Errorf("start event source: %w", err)
	}
	b.cancel = cancel
	b.pumpStopped = b.sup.Pump(runCtx, b.source)

	b.state = stateConnected
	b.logger.Info("backend connected",
		logging.String(logging.FieldPluginKeys, plugin.JoinKeys(b.sup.Keys())),
		logging.String(logging.FieldEventType, "backend_connected"),
	)
	return nil
}

// Close tears the backend down at process exit: the event source stops, the
// fan-out pump exits, and every worker is told to stop; Close blocks until
// all workers drained or hit the drain timeout.
func (b *Backend) Close() {
	b.mu.Lock()
	connected := b.state == stateConnected
	cancel := b.cancel
	pumpStopped := b.pumpStopped
	b.cancel = nil
	b.pumpStopped = nil
	b.state = stateUnconnected
	b.mu.Unlock()

	if connected {
		b.source.Stop()
		if cancel != nil {
			cancel()
		}
		if pumpStopped != nil {
			<-pumpStopped
		}
		b.sup.Close()
	}
	if err := b.guard.Close(); err != nil {
		b.logger.Warn("release service identity failed", logging.Error(err))
	}
	b.logger.Info("backend closed")
}
