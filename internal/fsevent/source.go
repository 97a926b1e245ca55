package fsevent

import (
	"context"
	"sync"
)

// Source produces file events for the dispatcher. The concrete scanner or
// kernel monitor lives outside this module; the backend only depends on this
// interface.
type Source interface {
	// Start begins producing events. It must be idempotent-safe to call once;
	// the backend calls it exactly once after startup succeeds.
	Start(ctx context.Context) error
	// Events returns the channel events arrive on. The channel is closed
	// after Stop returns.
	Events() <-chan Event
	// Stop halts production and closes the event channel.
	Stop()
}

// ChanSource is a channel-backed Source. External monitors push into it via
// the Emit helpers; tests drive dispatch through it directly.
type ChanSource struct {
	mu      sync.Mutex
	ch      chan Event
	started bool
	stopped bool
}

// NewChanSource builds a channel-backed source with the given buffer.
func NewChanSource(buffer int) *ChanSource {
	if buffer < 0 {
		buffer = 0
	}
	return &ChanSource{ch: make(chan Event, buffer)}
}

func (s *ChanSource) Start(ctx context.Context) error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	return nil
}

func (s *ChanSource) Events() <-chan Event { return s.ch }

func (s *ChanSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.ch)
}

// EmitCreated pushes a creation event. Events emitted after Stop are dropped.
func (s *ChanSource) EmitCreated(path string) { s.emit(NewCreated(path)) }

// EmitDeleted pushes a deletion event.
func (s *ChanSource) EmitDeleted(path string) { s.emit(NewDeleted(path)) }

// EmitRenamed pushes a rename event.
func (s *ChanSource) EmitRenamed(oldPath, newPath string) { s.emit(NewRenamed(oldPath, newPath)) }

func (s *ChanSource) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.ch <- ev
}
