// Package mock provides in-memory implementations of the database
// interfaces for tests and for running without a database.
package mock

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/feature"
)

// Roster is an in-memory database.RosterWriter.
type Roster struct {
	mu        sync.RWMutex
	classes   map[int64]database.Class
	students  map[int64]database.Student
	encodings map[int64][]database.StoredEncoding // by student ID
	nextClass int64
	nextID    int64
	nextEnc   int64

	// Error injection
	AllEntriesError error
	CreateError     error
}

// NewRoster creates an empty in-memory roster.
func NewRoster() *Roster {
	return &Roster{
		classes:   make(map[int64]database.Class),
		students:  make(map[int64]database.Student),
		encodings: make(map[int64][]database.StoredEncoding),
	}
}

// CreateClass creates a class if missing and returns its ID.
func (r *Roster) CreateClass(ctx context.Context, name string) (int64, error) {
	if r.CreateError != nil {
		return 0, r.CreateError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.classes {
		if c.Name == name {
			return c.ID, nil
		}
	}
	r.nextClass++
	r.classes[r.nextClass] = database.Class{ID: r.nextClass, Name: name}
	return r.nextClass, nil
}

// CreateStudent stores a new student and assigns its ID.
func (r *Roster) CreateStudent(ctx context.Context, s *database.Student) error {
	if r.CreateError != nil {
		return r.CreateError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if c, ok := r.classes[s.ClassID]; ok {
		s.ClassName = c.Name
	}
	r.students[s.ID] = *s
	return nil
}

// AddEncoding attaches an encoding to a student.
func (r *Roster) AddEncoding(ctx context.Context, enc *database.StoredEncoding) error {
	if r.CreateError != nil {
		return r.CreateError
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[enc.StudentID]; !ok {
		return fmt.Errorf("student %d not found", enc.StudentID)
	}
	r.nextEnc++
	enc.ID = r.nextEnc
	if enc.CreatedAt.IsZero() {
		enc.CreatedAt = time.Now()
	}
	r.encodings[enc.StudentID] = append(r.encodings[enc.StudentID], *enc)
	return nil
}

// AllEntries returns the roster ordered by student ID ascending.
func (r *Roster) AllEntries(ctx context.Context) ([]database.RosterEntry, error) {
	if r.AllEntriesError != nil {
		return nil, r.AllEntriesError
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]database.RosterEntry, 0, len(r.students))
	for _, s := range r.students {
		entry := database.RosterEntry{Student: s}
		entry.Encodings = append(entry.Encodings, r.encodings[s.ID]...)
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Student.ID < out[j].Student.ID })
	return out, nil
}

// StudentByID returns a student or nil.
func (r *Roster) StudentByID(ctx context.Context, id int64) (*database.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.students[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// StudentsByClass returns students of a class ordered by name.
func (r *Roster) StudentsByClass(ctx context.Context, classID int64) ([]database.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []database.Student
	for _, s := range r.students {
		if s.ClassID == classID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FamilyName != out[j].FamilyName {
			return out[i].FamilyName < out[j].FamilyName
		}
		return out[i].GivenName < out[j].GivenName
	})
	return out, nil
}

// Classes returns all classes ordered by name.
func (r *Roster) Classes(ctx context.Context) ([]database.Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]database.Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// FindSimilarProbes returns encodings ordered by ascending cosine
// distance to the query probe.
func (r *Roster) FindSimilarProbes(ctx context.Context, probe feature.Vector, limit int) ([]database.StoredEncoding, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []database.StoredEncoding
	for _, encs := range r.encodings {
		for _, enc := range encs {
			if len(enc.Probe) == len(probe) {
				out = append(out, enc)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return cosineDistance(probe, out[i].Probe) < cosineDistance(probe, out[j].Probe)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cosineDistance(a, b feature.Vector) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Attendance is an in-memory database.AttendanceStore.
type Attendance struct {
	mu     sync.RWMutex
	events []attendance.Event

	// Error injection
	AppendError error
	UpdateError error
}

// NewAttendance creates an empty in-memory attendance store.
func NewAttendance() *Attendance {
	return &Attendance{}
}

// AppendEvent persists an event.
func (a *Attendance) AppendEvent(ctx context.Context, ev attendance.Event) error {
	if a.AppendError != nil {
		return a.AppendError
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

// EventsByDate returns events for a date.
func (a *Attendance) EventsByDate(ctx context.Context, date string) ([]attendance.Event, error) {
	return a.EventsBetween(ctx, date, date)
}

// EventsBetween returns events within the inclusive date range.
func (a *Attendance) EventsBetween(ctx context.Context, fromDate, toDate string) ([]attendance.Event, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []attendance.Event
	for _, ev := range a.events {
		if ev.Date >= fromDate && ev.Date <= toDate {
			out = append(out, ev)
		}
	}
	return out, nil
}

// UpdateEventStatus applies a status transition.
func (a *Attendance) UpdateEventStatus(ctx context.Context, id string, status attendance.Status) error {
	if a.UpdateError != nil {
		return a.UpdateError
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.events {
		if a.events[i].ID == id {
			a.events[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("event %s not found", id)
}

// Len returns the number of stored events.
func (a *Attendance) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.events)
}
