// Package loader discovers plugin manifests on disk and drives the
// supervisor's hot-reload policy from file-system changes.
//
// Each manifest maps to a set of plugin keys. When a manifest appears its
// keys are added; when it disappears they are removed; when it changes the
// surviving keys are reloaded, dropped keys removed, and new keys added. The
// keys still resolve through the in-process factory registry; the loader only
// decides which keys are active.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"anything/internal/logging"
	"anything/internal/plugin"
)

const debounceWindow = 200 * time.Millisecond

// Registrar receives the three hot-reload notifications. Satisfied by
// *supervisor.Supervisor. Calls are serialized by the loader; they are never
// issued concurrently with each other.
type Registrar interface {
	HandleAdded(ctx context.Context, key plugin.Key)
	HandleRemoved(keys []plugin.Key)
	HandleModified(ctx context.Context, keys []plugin.Key)
}

// Loader watches one manifest directory.
type Loader struct {
	dir       string
	registrar Registrar
	logger    *slog.Logger

	// syncMu serializes manifest reconciliation so registrar callbacks from
	// different debounce timers never overlap.
	syncMu sync.Mutex

	mu       sync.Mutex
	byPath   map[string][]plugin.Key
	debounce map[string]*time.Timer
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	done     chan struct{}
}

// New builds a loader over dir.
func New(dir string, registrar Registrar, logger *slog.Logger) *Loader {
	return &Loader{
		dir:       dir,
		registrar: registrar,
		logger:    logging.NewComponentLogger(logger, "loader"),
		byPath:    make(map[string][]plugin.Key),
		debounce:  make(map[string]*time.Timer),
	}
}

// Start scans the directory once, registers the discovered keys, then begins
// watching for changes until ctx is cancelled or Stop is called.
func (l *Loader) Start(ctx context.Context) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("ensure plugin directory: %w", err)
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("scan plugin directory: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		if isManifestPath(path) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		l.sync(ctx, path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch plugin directory: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.watcher = watcher
	l.cancel = cancel
	l.done = make(chan struct{})
	done := l.done
	l.mu.Unlock()

	go l.watch(watchCtx, watcher, done)

	l.logger.Info("plugin loader watching",
		logging.String("dir", l.dir),
		logging.String(logging.FieldEventType, "loader_started"),
	)
	return nil
}

// Stop halts watching. Registered plugins stay registered; only discovery
// stops.
func (l *Loader) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	watcher := l.watcher
	done := l.done
	l.cancel = nil
	l.watcher = nil
	l.done = nil
	for path, timer := range l.debounce {
		timer.Stop()
		delete(l.debounce, path)
	}
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		_ = watcher.Close()
	}
	if done != nil {
		<-done
	}
}

// ActiveKeys returns the keys currently attributed to manifests, sorted.
func (l *Loader) ActiveKeys() []plugin.Key {
	l.mu.Lock()
	defer l.mu.Unlock()
	var keys []plugin.Key
	for _, set := range l.byPath {
		keys = append(keys, set...)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (l *Loader) watch(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			l.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("plugin watcher error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "loader_watch_error"),
			)
		}
	}
}

func (l *Loader) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !isManifestPath(event.Name) {
		return
	}
	if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		l.scheduleSync(ctx, event.Name)
	}
}

// scheduleSync debounces rapid successive changes to the same manifest so an
// editor's write-then-rename shows up as a single reload.
func (l *Loader) scheduleSync(ctx context.Context, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return
	}
	if timer, ok := l.debounce[path]; ok {
		timer.Reset(debounceWindow)
		return
	}
	l.debounce[path] = time.AfterFunc(debounceWindow, func() {
		l.mu.Lock()
		delete(l.debounce, path)
		l.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		l.sync(ctx, path)
	})
}

// sync reconciles one manifest path against the registrar: keys that
// disappeared are removed, keys that survived are reloaded, new keys are
// added. A missing or disabled manifest reconciles to the empty set.
func (l *Loader) sync(ctx context.Context, path string) {
	l.syncMu.Lock()
	defer l.syncMu.Unlock()

	newKeys, err := readManifest(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("manifest rejected",
			logging.Error(err),
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldEventType, "manifest_rejected"),
			logging.String(logging.FieldImpact, "plugin keys from this manifest are not registered"),
		)
		return
	}

	l.mu.Lock()
	oldKeys := l.byPath[path]
	if len(newKeys) == 0 {
		delete(l.byPath, path)
	} else {
		l.byPath[path] = newKeys
	}
	l.mu.Unlock()

	removed, surviving, added := diffKeys(oldKeys, newKeys)
	if len(removed) > 0 {
		l.registrar.HandleRemoved(removed)
	}
	if len(surviving) > 0 {
		l.registrar.HandleModified(ctx, surviving)
	}
	for _, key := range added {
		l.registrar.HandleAdded(ctx, key)
	}
}

func diffKeys(oldKeys, newKeys []plugin.Key) (removed, surviving, added []plugin.Key) {
	oldSet := make(map[plugin.Key]struct{}, len(oldKeys))
	for _, key := range oldKeys {
		oldSet[key] = struct{}{}
	}
	newSet := make(map[plugin.Key]struct{}, len(newKeys))
	for _, key := range newKeys {
		newSet[key] = struct{}{}
	}
	for _, key := range oldKeys {
		if _, ok := newSet[key]; ok {
			surviving = append(surviving, key)
		} else {
			removed = append(removed, key)
		}
	}
	for _, key := range newKeys {
		if _, ok := oldSet[key]; !ok {
			added = append(added, key)
		}
	}
	return removed, surviving, added
}
