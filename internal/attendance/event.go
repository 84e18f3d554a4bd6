// Package attendance implements the attendance decision core: detection
// debouncing, time-window classification and the authoritative event
// ledger with its derived present view.
package attendance

import (
	"context"
	"time"
)

// Status is the punctuality status of an attendance event.
type Status string

const (
	StatusOnTime      Status = "on_time"
	StatusLate        Status = "late"
	StatusAbsent      Status = "absent"
	StatusOutOfPeriod Status = "out_of_period"

	// StatusCompleted is the terminal status applied by the ledger when a
	// period is closed. Only the ledger performs this transition.
	StatusCompleted Status = "completed"
)

// Terminal reports whether the status ends the event lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// DateFormat and TimeFormat are the wall-clock formats recorded on events.
// Classification works at minute resolution within a single day.
const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04"
)

// Subject identifies a student for attendance purposes. The fields are
// denormalized onto events so the present view and exports do not need a
// roster lookup.
type Subject struct {
	StudentID  int64  `json:"student_id"`
	FamilyName string `json:"family_name"`
	GivenName  string `json:"given_name"`
	ClassName  string `json:"class_name"`
	ClassID    int64  `json:"class_id"`
}

// Event is a single attendance record. Events are created once and never
// mutated, except for the terminal status transition performed by the
// ledger when a period closes. At most one non-terminal event exists per
// (student, date, period).
type Event struct {
	ID         string    `json:"id"`
	StudentID  int64     `json:"student_id"`
	FamilyName string    `json:"family_name"`
	GivenName  string    `json:"given_name"`
	ClassName  string    `json:"class_name"`
	ClassID    int64     `json:"class_id"`
	Date       string    `json:"date"`   // DateFormat
	Time       string    `json:"time"`   // TimeFormat
	Period     string    `json:"period"` // period name or PeriodNone
	Status     Status    `json:"status"`
	Confidence float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventKey is the uniqueness key the ledger enforces.
type EventKey struct {
	StudentID int64
	Date      string
	Period    string
}

// Key returns the event's uniqueness key.
func (e Event) Key() EventKey {
	return EventKey{StudentID: e.StudentID, Date: e.Date, Period: e.Period}
}

// EventStore is the persistence collaborator consumed by the ledger. A
// write failure must be surfaced to the caller, never silently dropped.
type EventStore interface {
	// AppendEvent persists a new attendance event.
	AppendEvent(ctx context.Context, ev Event) error
	// EventsByDate returns all events recorded for a date.
	EventsByDate(ctx context.Context, date string) ([]Event, error)
	// UpdateEventStatus applies a status transition to an existing event.
	UpdateEventStatus(ctx context.Context, id string, status Status) error
}
