package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"anything/internal/busguard"
	"anything/internal/fsevent"
	"anything/internal/logging"
	"anything/internal/mountinfo"
	"anything/internal/plugin"
	"anything/internal/supervisor"
)

type fakeClaimer struct {
	owned    bool
	claimErr error
	claims   int
	closed   bool
}

func (f *fakeClaimer) Claim(*busguard.Control) (bool, error) {
	f.claims++
	return f.owned, f.claimErr
}

func (f *fakeClaimer) Close() error {
	f.closed = true
	return nil
}

type countingHandler struct {
	mu     sync.Mutex
	events int
}

func (h *countingHandler) Start(context.Context) error  { return nil }
func (h *countingHandler) Stop() error                  { return nil }
func (h *countingHandler) OnFileCreated(string)         { h.bump() }
func (h *countingHandler) OnFileDeleted(string)         { h.bump() }
func (h *countingHandler) OnFileRenamed(string, string) { h.bump() }

func (h *countingHandler) bump() {
	h.mu.Lock()
	h.events++
	h.mu.Unlock()
}

func (h *countingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.events
}

func testRelay(t *testing.T) *mountinfo.Relay {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "mountinfo")
	sink := filepath.Join(dir, "sink")
	if err := os.WriteFile(source, []byte("mounts\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := os.WriteFile(sink, nil, 0o644); err != nil {
		t.Fatalf("write sink: %v", err)
	}
	relay := mountinfo.New(source, sink, logging.NewNop())
	relay.Release = func() (string, error) { return "6.1.0", nil }
	return relay
}

func newTestBackend(t *testing.T, claimer Claimer, handlers int) (*Backend, *fsevent.ChanSource, []*countingHandler) {
	t.Helper()
	factories := plugin.NewFactories()
	built := make([]*countingHandler, 0, handlers)
	for i := 0; i < handlers; i++ {
		handler := &countingHandler{}
		built = append(built, handler)
		factories.Register(plugin.Key(fmt.Sprintf("plugin-%d", i)), func() plugin.Handler { return handler })
	}
	sup := supervisor.New(factories, logging.NewNop())
	source := fsevent.NewChanSource(8)
	b := New(claimer, testRelay(t), sup, source, factories, logging.NewNop())
	return b, source, built
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

func TestConnectIsIdempotent(t *testing.T) {
	claimer := &fakeClaimer{owned: true}
	b, _, _ := newTestBackend(t, claimer, 1)
	defer b.Close()

	ctx := context.Background()
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("first Connect: %v", err)
	}
	if err := b.Connect(ctx); err != nil {
		t.Fatalf("second Connect should be a no-op: %v", err)
	}
	if claimer.claims != 1 {
		t.Fatalf("guard claimed %d times, want 1", claimer.claims)
	}
	if got := b.PluginKeys(); len(got) != 1 {
		t.Fatalf("duplicate worker registration: %v", got)
	}
	if !b.Connected() {
		t.Fatal("expected connected state")
	}
}

func TestConnectStandsDownWhenNotOwned(t *testing.T) {
	claimer := &fakeClaimer{owned: false}
	b, _, _ := newTestBackend(t, claimer, 2)
	defer b.Close()

	err := b.Connect(context.Background())
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if keys := b.PluginKeys(); len(keys) != 0 {
		t.Fatalf("no workers may start when not owned: %v", keys)
	}
	if b.Connected() {
		t.Fatal("must not report connected")
	}
}

func TestConnectPropagatesPublishFailure(t *testing.T) {
	claimer := &fakeClaimer{claimErr: fmt.Errorf("%w: denied", busguard.ErrPublishObject)}
	b, _, _ := newTestBackend(t, claimer, 1)
	defer b.Close()

	err := b.Connect(context.Background())
	if !errors.Is(err, busguard.ErrPublishObject) {
		t.Fatalf("expected ErrPublishObject, got %v", err)
	}
	if keys := b.PluginKeys(); len(keys) != 0 {
		t.Fatalf("no workers may start on publish failure: %v", keys)
	}
}

func TestConnectFansOutEvents(t *testing.T) {
	claimer := &fakeClaimer{owned: true}
	b, source, handlers := newTestBackend(t, claimer, 3)

	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	source.EmitCreated("/tmp/a")
	source.EmitDeleted("/tmp/a")
	for i, handler := range handlers {
		waitFor(t, fmt.Sprintf("handler %d delivery", i), func() bool { return handler.count() == 2 })
	}

	b.Close()
	if !claimer.closed {
		t.Fatal("guard not released on close")
	}
	if keys := b.PluginKeys(); len(keys) != 0 {
		t.Fatalf("workers alive after close: %v", keys)
	}
}

func TestRefreshMountInfoUpdatesOutcome(t *testing.T) {
	claimer := &fakeClaimer{owned: true}
	b, _, _ := newTestBackend(t, claimer, 0)
	defer b.Close()

	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if got := b.LastRelayOutcome(); got != "success" {
		t.Fatalf("LastRelayOutcome = %q", got)
	}

	b.relay.Release = func() (string, error) { return "bogus", nil }
	if got := b.RefreshMountInfo(); got != "unrecognized_version_format" {
		t.Fatalf("RefreshMountInfo = %q", got)
	}
	if got := b.LastRelayOutcome(); got != "unrecognized_version_format" {
		t.Fatalf("LastRelayOutcome after refresh = %q", got)
	}
}
