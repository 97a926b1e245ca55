package supervisor

import (
	"context"

	"anything/internal/fsevent"
	"anything/internal/logging"
)

// Dispatch delivers one event to every worker registered at this moment, in
// insertion order. Delivery is asynchronous: the event lands on each worker's
// inbound channel and the worker processes it on its own goroutine. A full
// worker buffer blocks dispatch, which is the backpressure boundary between
// the event source and slow plugins.
//
// A worker that has been signalled to quit (a removal that timed out keeps
// its entry registered) is skipped: it only drains its existing backlog and
// its goroutine may already have exited, so sending would strand events and
// eventually block dispatch on a dead channel. The quit channel is only
// closed under the registry write lock, so its state is stable here.
func (s *Supervisor) Dispatch(ev fsevent.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, key := range s.order {
		w := s.workers[key]
		if w == nil {
			continue
		}
		select {
		case <-w.quit:
			continue
		default:
		}
		w.events <- ev
	}
}

// Pump consumes events from source and fans each out to the registry until
// the source channel closes or ctx is cancelled. It runs on its own goroutine;
// the returned channel closes when the pump exits.
func (s *Supervisor) Pump(ctx context.Context, source fsevent.Source) <-chan struct{} {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		events := source.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.logger.Debug("dispatching file event",
					logging.String("event", ev.String()),
					logging.String(logging.FieldPath, ev.Path),
				)
				s.Dispatch(ev)
			}
		}
	}()
	return stopped
}
