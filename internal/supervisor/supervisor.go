package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"anything/internal/logging"
	"anything/internal/plugin"
)

// Supervisor maps plugin keys to live workers and drives their lifecycle.
//
// Mutation (AddPlugin, RemovePlugins, and the hot-reload handlers) is
// serialized by an internal mutex; callers never need their own. Dispatch
// reads the registry under a read lock and may run concurrently with reads
// such as Keys.
type Supervisor struct {
	logger       *slog.Logger
	factories    *plugin.Factories
	eventBuffer  int
	drainTimeout time.Duration

	// mutate serializes the registry mutation path end to end, including
	// the blocking drain waits inside RemovePlugins.
	mutate sync.Mutex

	// mu guards the key-to-worker mapping for dispatch snapshots.
	mu      sync.RWMutex
	workers map[plugin.Key]*worker
	order   []plugin.Key
	stuck   map[plugin.Key]struct{}
}

// Option configures optional Supervisor behavior.
type Option func(*Supervisor)

// WithEventBuffer sets the per-worker inbound channel capacity.
func WithEventBuffer(size int) Option {
	return func(s *Supervisor) {
		if size > 0 {
			s.eventBuffer = size
		}
	}
}

// WithDrainTimeout bounds the wait for a worker to confirm drain on removal.
// Zero waits indefinitely, matching the unbounded baseline.
func WithDrainTimeout(timeout time.Duration) Option {
	return func(s *Supervisor) {
		if timeout >= 0 {
			s.drainTimeout = timeout
		}
	}
}

// New constructs a supervisor resolving plugin keys through factories.
func New(factories *plugin.Factories, logger *slog.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		logger:      logging.NewComponentLogger(logger, "supervisor"),
		factories:   factories,
		eventBuffer: 64,
		workers:     make(map[plugin.Key]*worker),
		stuck:       make(map[plugin.Key]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddPlugin constructs the handler for key and starts a worker for it. A
// missing or declining factory is a logged no-op; the registry is untouched.
// Adding a key that already has a worker is likewise a logged no-op.
func (s *Supervisor) AddPlugin(ctx context.Context, key plugin.Key) {
	s.mutate.Lock()
	defer s.mutate.Unlock()
	s.addLocked(ctx, key)
}

func (s *Supervisor) addLocked(ctx context.Context, key plugin.Key) {
	s.mu.RLock()
	_, exists := s.workers[key]
	s.mu.RUnlock()
	if exists {
		s.logger.Warn("plugin already registered",
			logging.String(logging.FieldPluginKey, key.String()),
			logging.String(logging.FieldEventType, "plugin_duplicate_add"),
		)
		return
	}

	handler := s.factories.Create(key)
	if handler == nil {
		s.logger.Warn("plugin handler unavailable",
			logging.String(logging.FieldPluginKey, key.String()),
			logging.String(logging.FieldEventType, "plugin_create_failed"),
			logging.String(logging.FieldErrorHint, "check plugin registration and configuration"),
			logging.String(logging.FieldImpact, "plugin will not receive file events"),
		)
		return
	}
	if err := handler.Start(ctx); err != nil {
		s.logger.Warn("plugin start failed",
			logging.Error(err),
			logging.String(logging.FieldPluginKey, key.String()),
			logging.String(logging.FieldEventType, "plugin_start_failed"),
			logging.String(logging.FieldImpact, "plugin will not receive file events"),
		)
		return
	}

	w := newWorker(key, handler, s.eventBuffer)
	go w.run()

	s.mu.Lock()
	s.workers[key] = w
	s.order = append(s.order, key)
	s.mu.Unlock()

	s.logger.Info("plugin registered",
		logging.String(logging.FieldPluginKey, key.String()),
		logging.String(logging.FieldEventType, "plugin_registered"),
	)
}

// RemovePlugins stops and unregisters the workers for the given keys. For
// each key it signals the worker, blocks until the worker confirms it has
// drained, then stops the handler and erases the entry. A worker that fails
// to confirm within the drain timeout is logged and left registered so the
// caller can retry; its goroutine keeps running.
func (s *Supervisor) RemovePlugins(keys []plugin.Key) {
	s.mutate.Lock()
	defer s.mutate.Unlock()
	s.removeLocked(keys)
}

func (s *Supervisor) removeLocked(keys []plugin.Key) {
	for _, key := range keys {
		s.mu.RLock()
		w := s.workers[key]
		s.mu.RUnlock()
		if w == nil {
			continue
		}

		// Holding the write lock across the drain wait keeps dispatch from
		// observing a worker mid-destruction.
		s.mu.Lock()
		if !w.stop(s.drainTimeout) {
			s.stuck[key] = struct{}{}
			s.mu.Unlock()
			s.logger.Warn("worker did not confirm drain; entry retained",
				logging.String(logging.FieldPluginKey, key.String()),
				logging.String(logging.FieldEventType, "worker_drain_timeout"),
				logging.String(logging.FieldErrorHint, "retry removal or restart the daemon"),
				logging.String(logging.FieldImpact, "worker goroutine leaked until it drains"),
			)
			continue
		}
		delete(s.workers, key)
		delete(s.stuck, key)
		for i, k := range s.order {
			if k == key {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		s.mu.Unlock()

		if err := w.handler.Stop(); err != nil {
			s.logger.Warn("plugin stop hook failed",
				logging.Error(err),
				logging.String(logging.FieldPluginKey, key.String()),
				logging.String(logging.FieldEventType, "plugin_stop_failed"),
			)
		}
		s.logger.Info("plugin removed",
			logging.String(logging.FieldPluginKey, key.String()),
			logging.String(logging.FieldEventType, "plugin_removed"),
		)
	}
}

// Keys returns the registered plugin keys in insertion order.
func (s *Supervisor) Keys() []plugin.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]plugin.Key, len(s.order))
	copy(keys, s.order)
	return keys
}

// StuckKeys returns keys whose workers failed to confirm drain on their last
// removal attempt and remain registered.
func (s *Supervisor) StuckKeys() []plugin.Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]plugin.Key, 0, len(s.stuck))
	for _, key := range s.order {
		if _, ok := s.stuck[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// Close removes every registered plugin, blocking until each has drained or
// hit the drain timeout.
func (s *Supervisor) Close() {
	s.RemovePlugins(s.Keys())
}
