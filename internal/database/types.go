// Package database defines the repository interfaces and stored types
// shared by all storage backends. The core never sees SQL or dialect
// differences; each backend lives in its own subpackage.
package database

import (
	"time"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/feature"
)

// Class is a school class students belong to.
type Class struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Student is an enrolled identity. Owned by the roster store; read-only
// to the matching core.
type Student struct {
	ID         int64     `json:"id"`
	FamilyName string    `json:"family_name"`
	GivenName  string    `json:"given_name"`
	ClassID    int64     `json:"class_id"`
	ClassName  string    `json:"class_name"`
	SchoolYear string    `json:"school_year"`
	PhotoPath  string    `json:"photo_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Subject converts the student to its attendance identity.
func (s Student) Subject() attendance.Subject {
	return attendance.Subject{
		StudentID:  s.ID,
		FamilyName: s.FamilyName,
		GivenName:  s.GivenName,
		ClassName:  s.ClassName,
		ClassID:    s.ClassID,
	}
}

// StoredEncoding is one reference feature vector for a student. Encoding
// is the full-resolution patch vector; Probe is the fixed low-resolution
// summary used for approximate candidate search (HNSW, pgvector).
type StoredEncoding struct {
	ID        int64          `json:"id"`
	StudentID int64          `json:"student_id"`
	ImagePath string         `json:"image_path"`
	Encoding  feature.Vector `json:"-"`
	Probe     feature.Vector `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

// RosterEntry pairs a student with all their reference encodings. A
// student's match score is the best score among their encodings.
type RosterEntry struct {
	Student   Student
	Encodings []StoredEncoding
}
