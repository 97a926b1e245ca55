package journal

import (
	"context"
	"path/filepath"
	"testing"

	"anything/internal/logging"
)

func openTestJournal(t *testing.T) *Plugin {
	t.Helper()
	p := New(filepath.Join(t.TempDir(), "journal.db"), logging.NewNop())
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = p.Stop() })
	return p
}

func TestJournalRecordsEventsInOrder(t *testing.T) {
	p := openTestJournal(t)

	p.OnFileCreated("/srv/a.txt")
	p.OnFileRenamed("/srv/a.txt", "/srv/b.txt")
	p.OnFileDeleted("/srv/b.txt")

	events, err := p.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	// Newest first.
	if events[0].Kind != "deleted" || events[0].Path != "/srv/b.txt" {
		t.Errorf("event[0] = %+v, want deleted /srv/b.txt", events[0])
	}
	if events[1].Kind != "renamed" || events[1].OldPath != "/srv/a.txt" || events[1].NewPath != "/srv/b.txt" {
		t.Errorf("event[1] = %+v, want renamed a->b", events[1])
	}
	if events[2].Kind != "created" || events[2].Path != "/srv/a.txt" {
		t.Errorf("event[2] = %+v, want created /srv/a.txt", events[2])
	}
	if events[2].RecordedAt.IsZero() {
		t.Error("expected recorded_at to round-trip")
	}
}

func TestJournalRecentLimit(t *testing.T) {
	p := openTestJournal(t)

	for i := 0; i < 5; i++ {
		p.OnFileCreated("/srv/file")
	}
	events, err := p.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(events))
	}
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	first := New(path, logging.NewNop())
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first.OnFileCreated("/srv/persisted")
	if err := first.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	second := New(path, logging.NewNop())
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Stop()

	events, err := second.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 || events[0].Path != "/srv/persisted" {
		t.Fatalf("expected persisted event, got %+v", events)
	}
}

func TestJournalRequiresPath(t *testing.T) {
	p := New("", logging.NewNop())
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestRecordAfterStopIsSafe(t *testing.T) {
	p := openTestJournal(t)
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	p.OnFileCreated("/srv/late") // must not panic
}
