package supervisor

import (
	"time"

	"anything/internal/fsevent"
	"anything/internal/plugin"
)

// worker hosts one plugin handler on its own goroutine. The registry is the
// sole owner of the handle; the handler never sees the registry.
type worker struct {
	key     plugin.Key
	handler plugin.Handler

	events chan fsevent.Event
	quit   chan struct{}
	done   chan struct{}
}

func newWorker(key plugin.Key, handler plugin.Handler, buffer int) *worker {
	if buffer < 1 {
		buffer = 1
	}
	return &worker{
		key:     key,
		handler: handler,
		events:  make(chan fsevent.Event, buffer),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// run consumes events until quit, then drains the buffer before confirming.
// Closing done is the drain confirmation removePlugins waits on.
func (w *worker) run() {
	defer close(w.done)
	for {
		select {
		case ev := <-w.events:
			w.deliver(ev)
		case <-w.quit:
			for {
				select {
				case ev := <-w.events:
					w.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (w *worker) deliver(ev fsevent.Event) {
	switch ev.Kind {
	case fsevent.Created:
		w.handler.OnFileCreated(ev.Path)
	case fsevent.Deleted:
		w.handler.OnFileDeleted(ev.Path)
	case fsevent.Renamed:
		w.handler.OnFileRenamed(ev.OldPath, ev.NewPath)
	}
}

// stop signals the worker and waits for drain confirmation. A zero timeout
// waits indefinitely. It reports false when the worker failed to confirm in
// time; the worker goroutine is then left running.
func (w *worker) stop(timeout time.Duration) bool {
	select {
	case <-w.quit:
		// already signalled by an earlier, timed-out removal attempt
	default:
		close(w.quit)
	}

	if timeout <= 0 {
		<-w.done
		return true
	}
	select {
	case <-w.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
