// Package store defines the sentinel errors shared by every storage backend.
// Callers match them with errors.Is; backends wrap them with context.
package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist or has been
	// purged past its retention window.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with the
	// case-insensitive SKU uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConflict marks a transient storage conflict (lock contention,
	// serialization failure). The operation may be retried as-is.
	ErrConflict = errors.New("storage conflict")

	// ErrTransitionDenied is returned when an update targets a record
	// already in a terminal state.
	ErrTransitionDenied = errors.New("status transition denied")

	// ErrNoQueuedJob signals an empty import queue.
	ErrNoQueuedJob = errors.New("no queued job")

	// ErrNoPendingEvent signals an empty, or not yet due, event queue.
	ErrNoPendingEvent = errors.New("no pending event")
)
