// Package journal persists dispatched file events to a SQLite database so
// activity survives daemon restarts and can be inspected offline.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"anything/internal/logging"
	"anything/internal/plugin"
)

//go:embed schema.sql
var schemaSQL string

// Key is the plugin key the journal registers under.
const Key plugin.Key = "journal"

// Plugin records file events. It satisfies plugin.Handler; event callbacks
// run on the plugin's worker goroutine, so database writes here never block
// the dispatcher.
type Plugin struct {
	path   string
	logger *slog.Logger
	db     *sql.DB
}

// Event is one journaled row.
type Event struct {
	ID         int64
	Kind       string
	Path       string
	OldPath    string
	NewPath    string
	RecordedAt time.Time
}

// New builds a journal plugin writing to path.
func New(path string, logger *slog.Logger) *Plugin {
	return &Plugin{
		path:   path,
		logger: logging.NewComponentLogger(logger, "journal"),
	}
}

// Start opens the database and ensures the schema exists.
func (p *Plugin) Start(ctx context.Context) error {
	if p.path == "" {
		return fmt.Errorf("journal path not configured")
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("ensure journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", p.path)
	if err != nil {
		return fmt.Errorf("open journal db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply journal schema: %w", err)
	}

	p.db = db
	p.logger.Info("journal opened",
		logging.String(logging.FieldPath, p.path),
		logging.String(logging.FieldEventType, "journal_opened"),
	)
	return nil
}

// Stop closes the database.
func (p *Plugin) Stop() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func (p *Plugin) OnFileCreated(path string) {
	p.record("created", path, "", "")
}

func (p *Plugin) OnFileDeleted(path string) {
	p.record("deleted", path, "", "")
}

func (p *Plugin) OnFileRenamed(oldPath, newPath string) {
	p.record("renamed", newPath, oldPath, newPath)
}

func (p *Plugin) record(kind, path, oldPath, newPath string) {
	if p.db == nil {
		return
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := p.db.Exec(
		`INSERT INTO events (kind, path, old_path, new_path, recorded_at)
         VALUES (?, ?, ?, ?, ?)`,
		kind,
		path,
		nullableString(oldPath),
		nullableString(newPath),
		timestamp,
	)
	if err != nil {
		p.logger.Warn("failed to journal event",
			logging.Error(err),
			logging.String("kind", kind),
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldEventType, "journal_write_failed"),
			logging.String(logging.FieldImpact, "event not persisted"),
		)
	}
}

// Recent returns up to limit events, newest first.
func (p *Plugin) Recent(ctx context.Context, limit int) ([]Event, error) {
	if p.db == nil {
		return nil, fmt.Errorf("journal not started")
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, kind, path, old_path, new_path, recorded_at
         FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev       Event
			oldPath  sql.NullString
			newPath  sql.NullString
			recorded string
		)
		if err := rows.Scan(&ev.ID, &ev.Kind, &ev.Path, &oldPath, &newPath, &recorded); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.OldPath = oldPath.String
		ev.NewPath = newPath.String
		if ts, parseErr := time.Parse(time.RFC3339Nano, recorded); parseErr == nil {
			ev.RecordedAt = ts
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
