// Package store is the SQLite-backed entity store for queues, users,
// attendants and conversation sessions.
//
// Queue status changes are exposed as guarded conditional updates
// (rows-affected semantics), which is what makes lifecycle fires idempotent:
// a transition whose guard no longer holds reports "not applied" instead of
// mutating anything, so re-firing after a crash is always safe.
package store
