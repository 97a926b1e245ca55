// Package fsevent defines the file-system notifications fanned out to plugin
// workers and the interface the dispatcher consumes them from.
package fsevent

import "fmt"

// Kind discriminates the file event union.
type Kind int

const (
	// Created reports a new file or directory.
	Created Kind = iota
	// Deleted reports a removed file or directory.
	Deleted
	// Renamed reports a path move; OldPath and NewPath are both set.
	Renamed
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is an immutable file-system notification. Receivers must not mutate
// it; the same value is broadcast to every worker.
type Event struct {
	Kind    Kind
	Path    string
	OldPath string
	NewPath string
}

// NewCreated builds a creation event.
func NewCreated(path string) Event { return Event{Kind: Created, Path: path} }

// NewDeleted builds a deletion event.
func NewDeleted(path string) Event { return Event{Kind: Deleted, Path: path} }

// NewRenamed builds a rename event covering both endpoints of the move.
func NewRenamed(oldPath, newPath string) Event {
	return Event{Kind: Renamed, Path: newPath, OldPath: oldPath, NewPath: newPath}
}

func (e Event) String() string {
	if e.Kind == Renamed {
		return fmt.Sprintf("renamed %s -> %s", e.OldPath, e.NewPath)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Path)
}
