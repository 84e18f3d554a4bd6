package database

import (
	"context"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/feature"
)

// RosterReader provides read-only access to the enrolled roster.
type RosterReader interface {
	// AllEntries returns every student with their encodings, ordered by
	// student ID ascending. The ordering is part of the contract: match
	// tie-breaking depends on a stable iteration order. Entries whose
	// stored encodings are corrupt are returned with those encodings
	// skipped, never aborting the whole load.
	AllEntries(ctx context.Context) ([]RosterEntry, error)
	// StudentByID returns a student, or nil if not found.
	StudentByID(ctx context.Context, id int64) (*Student, error)
	// StudentsByClass returns the students of a class, ordered by family
	// then given name.
	StudentsByClass(ctx context.Context, classID int64) ([]Student, error)
	// Classes returns all classes ordered by name.
	Classes(ctx context.Context) ([]Class, error)
}

// RosterWriter provides enrollment access on top of roster reads.
type RosterWriter interface {
	RosterReader

	// CreateClass creates a class if missing and returns its ID.
	CreateClass(ctx context.Context, name string) (int64, error)
	// CreateStudent stores a new student and sets its ID.
	CreateStudent(ctx context.Context, s *Student) error
	// AddEncoding attaches a reference encoding to a student.
	AddEncoding(ctx context.Context, enc *StoredEncoding) error
}

// AttendanceStore persists attendance events. It extends the ledger's
// collaborator contract with the date-range read the export path needs.
type AttendanceStore interface {
	attendance.EventStore

	// EventsBetween returns events with fromDate <= date <= toDate.
	EventsBetween(ctx context.Context, fromDate, toDate string) ([]attendance.Event, error)
}

// ProbeSearcher finds candidate encodings by probe-vector similarity.
// Backends that support it (pgvector) let the selector skip the full
// roster scan for large rosters; the exact comparator still does the
// final scoring.
type ProbeSearcher interface {
	// FindSimilarProbes returns encodings ordered by ascending cosine
	// distance to the query probe.
	FindSimilarProbes(ctx context.Context, probe feature.Vector, limit int) ([]StoredEncoding, error)
}
