package store

import "errors"

var (
	// ErrNotFound means the referenced record does not exist (it may have
	// been archived or removed between steps).
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateName means a queue with the same name (case-insensitive)
	// already exists.
	ErrDuplicateName = errors.New("store: duplicate queue name")

	// ErrAlreadyJoined means the (user, queue) pair already has an attendant
	// record. Callers treat this as an informational outcome, not a failure.
	ErrAlreadyJoined = errors.New("store: already joined")

	// ErrNotOpen means a join was attempted against a queue that is not
	// currently active.
	ErrNotOpen = errors.New("store: queue not open")
)
