// Package supervisor owns the plugin registry and the per-plugin workers that
// consume file events.
//
// Each registered plugin key maps to exactly one worker: a dedicated goroutine
// with its own buffered inbound event channel, a quit signal, and a drain
// confirmation. Registry mutation (add, remove, hot-reload) is serialized;
// event dispatch iterates the registry under a read lock and delivers to every
// live worker in insertion order. A worker is destroyed only after it confirms
// it has drained all previously dispatched events.
package supervisor
