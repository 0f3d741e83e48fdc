package lifecycle

import (
	"context"
	"time"
)

// EventKind identifies one of the three scheduled transitions of a queue.
type EventKind string

const (
	EventNotify EventKind = "notify"
	EventOpen   EventKind = "open"
	EventClose  EventKind = "close"
)

// Broadcaster delivers a message to every registered user. Enqueueing is
// fire-and-forget; delivery failures are the broadcaster's problem.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string, markup any) error
}

// Config controls the scheduler.
type Config struct {
	// SweepInterval is how often the safety-net reconciliation runs.
	// Zero means every minute.
	SweepInterval time.Duration

	// Location is the zone used when rendering dates in broadcasts.
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

type timerKey struct {
	queueID int64
	kind    EventKind
}
