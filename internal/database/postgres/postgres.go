// Package postgres implements the roster and attendance repositories on
// PostgreSQL. Full encodings are stored in the portable length-prefixed
// float32 format; probe vectors use a pgvector column for approximate
// candidate search.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kozaktomas/class-attendance/internal/config"
	"github.com/kozaktomas/class-attendance/internal/feature"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// Migrate creates the schema. Idempotent.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS classes (
			id   BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS students (
			id          BIGSERIAL PRIMARY KEY,
			family_name TEXT NOT NULL,
			given_name  TEXT NOT NULL,
			class_id    BIGINT NOT NULL REFERENCES classes(id),
			school_year TEXT NOT NULL DEFAULT '',
			photo_path  TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS face_encodings (
			id         BIGSERIAL PRIMARY KEY,
			student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
			image_path TEXT NOT NULL DEFAULT '',
			encoding   BYTEA NOT NULL,
			probe      vector(%d) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`, feature.ProbeDim),
		`CREATE INDEX IF NOT EXISTS face_encodings_student_id_idx ON face_encodings(student_id)`,
		`CREATE TABLE IF NOT EXISTS attendance_events (
			id          UUID PRIMARY KEY,
			student_id  BIGINT NOT NULL,
			family_name TEXT NOT NULL DEFAULT '',
			given_name  TEXT NOT NULL DEFAULT '',
			class_name  TEXT NOT NULL DEFAULT '',
			class_id    BIGINT NOT NULL DEFAULT 0,
			event_date  TEXT NOT NULL,
			event_time  TEXT NOT NULL DEFAULT '',
			period      TEXT NOT NULL,
			status      TEXT NOT NULL,
			confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE(student_id, event_date, period)
		)`,
		`CREATE INDEX IF NOT EXISTS attendance_events_date_idx ON attendance_events(event_date)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

// CreateProbeIndex creates the IVFFlat index for probe similarity search.
// Should be called once the table has some data for sensible clustering.
func (p *Pool) CreateProbeIndex(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS face_encodings_probe_idx
		ON face_encodings USING ivfflat (probe vector_cosine_ops) WITH (lists = 100)
	`)
	if err != nil {
		return fmt.Errorf("failed to create probe index: %w", err)
	}
	return nil
}
