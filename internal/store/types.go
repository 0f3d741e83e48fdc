package store

import "time"

// Status is the queue lifecycle state. Transitions are strictly
// planned -> active -> archived, enforced by the guarded updates below.
type Status string

const (
	StatusPlanned  Status = "planned"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusActive, StatusArchived:
		return true
	}
	return false
}

type Queue struct {
	ID               int64
	Name             string
	StartAt          time.Time
	EndAt            time.Time
	NotifyAt         time.Time
	Status           Status
	NotificationSent bool
}

type User struct {
	ID      int64 // Telegram user id
	Name    string
	Surname string
	IsAdmin bool
}

// Attendant is a user's join record for a queue. Position is 1-based and
// assigned at join time; rows are never reordered or deleted.
type Attendant struct {
	ID       int64
	UserID   int64
	QueueID  int64
	Position int

	// Joined user fields, populated by ListAttendants for rendering.
	Name    string
	Surname string
}

// Session is a user's persisted conversation state plus in-progress form data.
type Session struct {
	UserID int64
	State  string
	Data   map[string]string
}
