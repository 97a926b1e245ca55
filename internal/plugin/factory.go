package plugin

import (
	"sort"
	"sync"
)

// Factory constructs the handler for one plugin key. A nil return means the
// plugin cannot be built in the current configuration; the supervisor treats
// that as a logged no-op, not an error.
type Factory func() Handler

// Factories maps plugin keys to their constructors. It plays the role a
// dynamic loader's symbol table would: keys discovered on disk resolve here
// to in-process constructors.
type Factories struct {
	mu        sync.RWMutex
	factories map[Key]Factory
}

// NewFactories returns an empty factory registry.
func NewFactories() *Factories {
	return &Factories{factories: make(map[Key]Factory)}
}

// Register binds a factory to a key, replacing any previous binding.
func (f *Factories) Register(key Key, factory Factory) {
	if factory == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factories[key] = factory
}

// Create builds the handler for key. It returns nil when the key is unknown
// or the factory declines to construct.
func (f *Factories) Create(key Key) Handler {
	f.mu.RLock()
	factory := f.factories[key]
	f.mu.RUnlock()
	if factory == nil {
		return nil
	}
	return factory()
}

// Keys returns the registered keys in sorted order.
func (f *Factories) Keys() []Key {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]Key, 0, len(f.factories))
	for key := range f.factories {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Known reports whether a factory is registered for key.
func (f *Factories) Known(key Key) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.factories[key]
	return ok
}
