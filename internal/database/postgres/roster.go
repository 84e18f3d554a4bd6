package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/feature"
)

// RosterRepository provides PostgreSQL-backed roster storage.
type RosterRepository struct {
	pool *Pool
}

// NewRosterRepository creates a roster repository over the pool.
func NewRosterRepository(pool *Pool) *RosterRepository {
	return &RosterRepository{pool: pool}
}

// CreateClass creates a class if missing and returns its ID.
func (r *RosterRepository) CreateClass(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO classes (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating class %q: %w", name, err)
	}
	return id, nil
}

// CreateStudent stores a new student and sets its ID.
func (r *RosterRepository) CreateStudent(ctx context.Context, s *database.Student) error {
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO students (family_name, given_name, class_id, school_year, photo_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, s.FamilyName, s.GivenName, s.ClassID, s.SchoolYear, s.PhotoPath).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating student: %w", err)
	}

	err = r.pool.db.QueryRowContext(ctx,
		`SELECT name FROM classes WHERE id = $1`, s.ClassID).Scan(&s.ClassName)
	if err != nil {
		return fmt.Errorf("resolving class name: %w", err)
	}
	return nil
}

// AddEncoding attaches a reference encoding to a student. The full vector
// is stored in the portable binary format; the probe goes into the
// pgvector column.
func (r *RosterRepository) AddEncoding(ctx context.Context, enc *database.StoredEncoding) error {
	probe := enc.Probe
	if len(probe) == 0 {
		probe = feature.Probe(enc.Encoding, feature.ProbeDim)
		enc.Probe = probe
	}

	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO face_encodings (student_id, image_path, encoding, probe)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, enc.StudentID, enc.ImagePath, feature.Encode(enc.Encoding),
		pgvector.NewVector(probe)).Scan(&enc.ID, &enc.CreatedAt)
	if err != nil {
		return fmt.Errorf("adding encoding for student %d: %w", enc.StudentID, err)
	}
	return nil
}

// AllEntries returns the full roster ordered by student ID ascending.
// Corrupt stored encodings are skipped and logged; a bad row never aborts
// the load.
func (r *RosterRepository) AllEntries(ctx context.Context) ([]database.RosterEntry, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT s.id, s.family_name, s.given_name, s.class_id, c.name, s.school_year, s.photo_path, s.created_at
		FROM students s
		JOIN classes c ON s.class_id = c.id
		ORDER BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying students: %w", err)
	}
	defer rows.Close()

	var entries []database.RosterEntry
	byID := make(map[int64]int)
	for rows.Next() {
		var s database.Student
		if err := rows.Scan(&s.ID, &s.FamilyName, &s.GivenName, &s.ClassID, &s.ClassName,
			&s.SchoolYear, &s.PhotoPath, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		byID[s.ID] = len(entries)
		entries = append(entries, database.RosterEntry{Student: s})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating students: %w", err)
	}

	encRows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, student_id, image_path, encoding, probe, created_at
		FROM face_encodings
		ORDER BY student_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying encodings: %w", err)
	}
	defer encRows.Close()

	for encRows.Next() {
		var enc database.StoredEncoding
		var blob []byte
		var probe pgvector.Vector
		if err := encRows.Scan(&enc.ID, &enc.StudentID, &enc.ImagePath, &blob, &probe, &enc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning encoding: %w", err)
		}

		vec, err := feature.Decode(blob)
		if err != nil {
			// Data anomaly: skip the entry, keep scanning the rest.
			log.Printf("skipping corrupt encoding %d for student %d: %v", enc.ID, enc.StudentID, err)
			continue
		}
		enc.Encoding = vec
		enc.Probe = probe.Slice()

		if i, ok := byID[enc.StudentID]; ok {
			entries[i].Encodings = append(entries[i].Encodings, enc)
		}
	}
	if err := encRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating encodings: %w", err)
	}

	return entries, nil
}

// StudentByID returns a student, or nil if not found.
func (r *RosterRepository) StudentByID(ctx context.Context, id int64) (*database.Student, error) {
	var s database.Student
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT s.id, s.family_name, s.given_name, s.class_id, c.name, s.school_year, s.photo_path, s.created_at
		FROM students s
		JOIN classes c ON s.class_id = c.id
		WHERE s.id = $1
	`, id).Scan(&s.ID, &s.FamilyName, &s.GivenName, &s.ClassID, &s.ClassName,
		&s.SchoolYear, &s.PhotoPath, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying student %d: %w", id, err)
	}
	return &s, nil
}

// StudentsByClass returns the students of a class ordered by name.
func (r *RosterRepository) StudentsByClass(ctx context.Context, classID int64) ([]database.Student, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT s.id, s.family_name, s.given_name, s.class_id, c.name, s.school_year, s.photo_path, s.created_at
		FROM students s
		JOIN classes c ON s.class_id = c.id
		WHERE s.class_id = $1
		ORDER BY s.family_name, s.given_name
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("querying class %d: %w", classID, err)
	}
	defer rows.Close()

	var out []database.Student
	for rows.Next() {
		var s database.Student
		if err := rows.Scan(&s.ID, &s.FamilyName, &s.GivenName, &s.ClassID, &s.ClassName,
			&s.SchoolYear, &s.PhotoPath, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Classes returns all classes ordered by name.
func (r *RosterRepository) Classes(ctx context.Context) ([]database.Class, error) {
	rows, err := r.pool.db.QueryContext(ctx, `SELECT id, name FROM classes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying classes: %w", err)
	}
	defer rows.Close()

	var out []database.Class
	for rows.Next() {
		var c database.Class
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning class: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindSimilarProbes returns encodings ordered by ascending cosine
// distance to the query probe. Full encodings are decoded so the caller
// can rescore exactly; corrupt rows are skipped.
func (r *RosterRepository) FindSimilarProbes(ctx context.Context, probe feature.Vector, limit int) ([]database.StoredEncoding, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, student_id, image_path, encoding, probe, created_at
		FROM face_encodings
		ORDER BY probe <=> $1
		LIMIT $2
	`, pgvector.NewVector(probe), limit)
	if err != nil {
		return nil, fmt.Errorf("querying similar probes: %w", err)
	}
	defer rows.Close()

	var out []database.StoredEncoding
	for rows.Next() {
		var enc database.StoredEncoding
		var blob []byte
		var p pgvector.Vector
		if err := rows.Scan(&enc.ID, &enc.StudentID, &enc.ImagePath, &blob, &p, &enc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning encoding: %w", err)
		}
		vec, err := feature.Decode(blob)
		if err != nil {
			log.Printf("skipping corrupt encoding %d for student %d: %v", enc.ID, enc.StudentID, err)
			continue
		}
		enc.Encoding = vec
		enc.Probe = p.Slice()
		out = append(out, enc)
	}
	return out, rows.Err()
}
