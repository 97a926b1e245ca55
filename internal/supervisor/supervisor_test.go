package supervisor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"anything/internal/fsevent"
	"anything/internal/logging"
	"anything/internal/plugin"
)

type recordingHandler struct {
	mu      sync.Mutex
	log     []string
	started bool
	stopped bool

	// gate, when non-nil, blocks every delivery until the channel is closed.
	gate chan struct{}
}

func (h *recordingHandler) Start(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = true
	return nil
}

func (h *recordingHandler) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	return nil
}

func (h *recordingHandler) record(entry string) {
	if h.gate != nil {
		<-h.gate
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.log = append(h.log, entry)
}

func (h *recordingHandler) OnFileCreated(path string) { h.record("created " + path) }
func (h *recordingHandler) OnFileDeleted(path string) { h.record("deleted " + path) }
func (h *recordingHandler) OnFileRenamed(oldPath, newPath string) {
	h.record("renamed " + oldPath + " " + newPath)
}

func (h *recordingHandler) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.log))
	copy(out, h.log)
	return out
}

func (h *recordingHandler) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestSupervisor(opts ...Option) (*Supervisor, *plugin.Factories) {
	factories := plugin.NewFactories()
	return New(factories, logging.NewNop(), opts...), factories
}

func registerRecording(factories *plugin.Factories, key plugin.Key) *recordingHandler {
	handler := &recordingHandler{}
	factories.Register(key, func() plugin.Handler { return handler })
	return handler
}

func TestFanOutDeliversToAllWorkersInOrder(t *testing.T) {
	sup, factories := newTestSupervisor()
	handlers := make([]*recordingHandler, 0, 3)
	for i := 0; i < 3; i++ {
		key := plugin.Key(fmt.Sprintf("plugin-%d", i))
		handlers = append(handlers, registerRecording(factories, key))
		sup.AddPlugin(context.Background(), key)
	}

	sup.Dispatch(fsevent.NewCreated("/tmp/a"))
	sup.Dispatch(fsevent.NewDeleted("/tmp/a"))
	sup.Dispatch(fsevent.NewRenamed("/tmp/b", "/tmp/c"))

	want := []string{"created /tmp/a", "deleted /tmp/a", "renamed /tmp/b /tmp/c"}
	for i, handler := range handlers {
		waitFor(t, "handler delivery", func() bool { return len(handler.snapshot()) == len(want) })
		got := handler.snapshot()
		for j := range want {
			if got[j] != want[j] {
				t.Errorf("handler %d event %d = %q, want %q", i, j, got[j], want[j])
			}
		}
	}
}

func TestRegistryRejectsDuplicateKey(t *testing.T) {
	sup, factories := newTestSupervisor()
	created := 0
	factories.Register("dup", func() plugin.Handler {
		created++
		return &recordingHandler{}
	})

	sup.AddPlugin(context.Background(), "dup")
	sup.AddPlugin(context.Background(), "dup")

	if created != 1 {
		t.Fatalf("factory invoked %d times, want 1", created)
	}
	if keys := sup.Keys(); len(keys) != 1 || keys[0] != "dup" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestAddPluginUnknownKeyIsNoop(t *testing.T) {
	sup, _ := newTestSupervisor()
	sup.AddPlugin(context.Background(), "ghost")
	if keys := sup.Keys(); len(keys) != 0 {
		t.Fatalf("expected empty registry, got %v", keys)
	}
}

func TestRemoveDrainsBeforeDestroy(t *testing.T) {
	sup, factories := newTestSupervisor()
	handler := registerRecording(factories, "journal")
	sup.AddPlugin(context.Background(), "journal")

	for i := 0; i < 50; i++ {
		sup.Dispatch(fsevent.NewCreated(fmt.Sprintf("/tmp/%d", i)))
	}
	sup.RemovePlugins([]plugin.Key{"journal"})

	// Removal must not return before every dispatched event was processed.
	if got := len(handler.snapshot()); got != 50 {
		t.Fatalf("worker drained %d events before destroy, want 50", got)
	}
	if !handler.isStopped() {
		t.Fatal("handler Stop not invoked after drain")
	}
	if keys := sup.Keys(); len(keys) != 0 {
		t.Fatalf("expected empty registry after removal, got %v", keys)
	}

	// Events dispatched after removal reach nobody.
	sup.Dispatch(fsevent.NewDeleted("/tmp/late"))
	time.Sleep(20 * time.Millisecond)
	if got := len(handler.snapshot()); got != 50 {
		t.Fatalf("destroyed worker observed %d events, want 50", got)
	}
}

func TestRemoveTimeoutLeavesEntryRegistered(t *testing.T) {
	sup, factories := newTestSupervisor(WithDrainTimeout(50 * time.Millisecond))
	gate := make(chan struct{})
	handler := &recordingHandler{gate: gate}
	factories.Register("stuck", func() plugin.Handler { return handler })
	sup.AddPlugin(context.Background(), "stuck")

	sup.Dispatch(fsevent.NewCreated("/tmp/slow"))
	sup.RemovePlugins([]plugin.Key{"stuck"})

	if keys := sup.Keys(); len(keys) != 1 || keys[0] != "stuck" {
		t.Fatalf("stuck entry should remain registered, got %v", keys)
	}
	if stuck := sup.StuckKeys(); len(stuck) != 1 || stuck[0] != "stuck" {
		t.Fatalf("expected stuck key reported, got %v", stuck)
	}
	if handler.isStopped() {
		t.Fatal("Stop must not run before drain confirmation")
	}

	// Unblock the handler; the worker finishes the event, observes the quit
	// signal, and a retried removal succeeds.
	close(gate)
	waitFor(t, "blocked delivery to finish", func() bool { return len(handler.snapshot()) == 1 })
	sup.RemovePlugins([]plugin.Key{"stuck"})
	if keys := sup.Keys(); len(keys) != 0 {
		t.Fatalf("expected registry empty after retry, got %v", keys)
	}
	if stuck := sup.StuckKeys(); len(stuck) != 0 {
		t.Fatalf("expected no stuck keys after retry, got %v", stuck)
	}
	if !handler.isStopped() {
		t.Fatal("Stop should run once drain confirms")
	}
}

func TestDispatchSkipsWorkerAwaitingRemovalRetry(t *testing.T) {
	sup, factories := newTestSupervisor(WithDrainTimeout(50*time.Millisecond), WithEventBuffer(1))
	gate := make(chan struct{})
	slow := &recordingHandler{gate: gate}
	factories.Register("slow", func() plugin.Handler { return slow })
	live := registerRecording(factories, "live")
	sup.AddPlugin(context.Background(), "slow")
	sup.AddPlugin(context.Background(), "live")

	sup.Dispatch(fsevent.NewCreated("/tmp/first"))
	sup.RemovePlugins([]plugin.Key{"slow"})
	if stuck := sup.StuckKeys(); len(stuck) != 1 || stuck[0] != "slow" {
		t.Fatalf("expected slow reported stuck, got %v", stuck)
	}

	// Let the blocked delivery finish; the slow worker drains its backlog
	// and its goroutine exits while the entry stays registered for a retry.
	close(gate)
	waitFor(t, "blocked delivery to finish", func() bool { return len(slow.snapshot()) == 1 })

	// Fan-out must keep flowing: the retained entry takes no new events and
	// must not block dispatch for the live workers.
	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		sup.Dispatch(fsevent.NewCreated("/tmp/a"))
		sup.Dispatch(fsevent.NewDeleted("/tmp/a"))
		sup.Dispatch(fsevent.NewRenamed("/tmp/a", "/tmp/b"))
	}()
	select {
	case <-dispatched:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch blocked on a worker awaiting removal retry")
	}

	waitFor(t, "live worker deliveries", func() bool { return len(live.snapshot()) == 4 })
	if got := slow.snapshot(); len(got) != 1 {
		t.Fatalf("worker awaiting retry must not receive new events, got %v", got)
	}

	// The retry itself must not be wedged behind dispatch.
	sup.RemovePlugins([]plugin.Key{"slow"})
	if keys := sup.Keys(); len(keys) != 1 || keys[0] != "live" {
		t.Fatalf("expected only live registered after retry, got %v", keys)
	}
	if !slow.isStopped() {
		t.Fatal("Stop should run once the retry confirms drain")
	}
}

func TestRemoveAbsentKeyIsNoop(t *testing.T) {
	sup, _ := newTestSupervisor()
	sup.RemovePlugins([]plugin.Key{"absent"})
	if keys := sup.Keys(); len(keys) != 0 {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestHandleModifiedSwapsWorkersWithoutSharedEvents(t *testing.T) {
	sup, factories := newTestSupervisor()

	var mu sync.Mutex
	var built []*recordingHandler
	factories.Register("k", func() plugin.Handler {
		handler := &recordingHandler{}
		mu.Lock()
		built = append(built, handler)
		mu.Unlock()
		return handler
	})

	ctx := context.Background()
	sup.AddPlugin(ctx, "k")
	sup.Dispatch(fsevent.NewCreated("/tmp/first"))

	sup.HandleModified(ctx, []plugin.Key{"k"})
	sup.Dispatch(fsevent.NewCreated("/tmp/second"))

	mu.Lock()
	if len(built) != 2 {
		mu.Unlock()
		t.Fatalf("expected two workers across reload, got %d", len(built))
	}
	w1, w2 := built[0], built[1]
	mu.Unlock()

	// w1 drained before w2 existed, so w1 saw only the first event.
	if got := w1.snapshot(); len(got) != 1 || got[0] != "created /tmp/first" {
		t.Fatalf("old worker log = %v", got)
	}
	if !w1.isStopped() {
		t.Fatal("old worker should be stopped before replacement starts")
	}
	waitFor(t, "new worker delivery", func() bool { return len(w2.snapshot()) == 1 })
	if got := w2.snapshot(); got[0] != "created /tmp/second" {
		t.Fatalf("new worker log = %v", got)
	}
}

func TestHandleRemovedAndAdded(t *testing.T) {
	sup, factories := newTestSupervisor()
	registerRecording(factories, "a")
	registerRecording(factories, "b")

	ctx := context.Background()
	sup.HandleAdded(ctx, "a")
	sup.HandleAdded(ctx, "b")
	if keys := sup.Keys(); len(keys) != 2 {
		t.Fatalf("expected two keys, got %v", keys)
	}

	sup.HandleRemoved([]plugin.Key{"a"})
	keys := sup.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("expected only b registered, got %v", keys)
	}
}

func TestPumpDispatchesFromSource(t *testing.T) {
	sup, factories := newTestSupervisor()
	handler := registerRecording(factories, "journal")
	sup.AddPlugin(context.Background(), "journal")

	source := fsevent.NewChanSource(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopped := sup.Pump(ctx, source)

	source.EmitCreated("/tmp/x")
	source.EmitRenamed("/tmp/x", "/tmp/y")
	waitFor(t, "pump delivery", func() bool { return len(handler.snapshot()) == 2 })

	source.Stop()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after source closed")
	}
}

func TestCloseDrainsEveryWorker(t *testing.T) {
	sup, factories := newTestSupervisor()
	h1 := registerRecording(factories, "a")
	h2 := registerRecording(factories, "b")
	ctx := context.Background()
	sup.AddPlugin(ctx, "a")
	sup.AddPlugin(ctx, "b")

	sup.Dispatch(fsevent.NewCreated("/tmp/z"))
	sup.Close()

	if !h1.isStopped() || !h2.isStopped() {
		t.Fatal("expected both handlers stopped")
	}
	if len(h1.snapshot()) != 1 || len(h2.snapshot()) != 1 {
		t.Fatal("expected both handlers drained before close returned")
	}
}
