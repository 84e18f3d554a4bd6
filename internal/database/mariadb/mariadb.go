// Package mariadb reads the legacy MariaDB/MySQL schema of the previous
// attendance system so its roster can be imported. The legacy face
// encodings were Python pickles and cannot be decoded here; import
// re-encodes from the stored image paths instead.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new MariaDB connection pool.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
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

// LegacyStudent is one row of the legacy roster with the image paths of
// its face records.
type LegacyStudent struct {
	ID         int64
	FamilyName string
	GivenName  string
	ClassName  string
	SchoolYear string
	PhotoPath  string
	ImagePaths []string
}

// Students reads the legacy Etudiants/Classe/FaceFeatures tables.
func (p *Pool) Students(ctx context.Context) ([]LegacyStudent, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT e.id, e.nom_famille, e.prenom, c.nom_classe,
		       COALESCE(e.annee_scolaire, ''), COALESCE(e.photo_path, '')
		FROM Etudiants e
		JOIN Classe c ON e.id_classe = c.id
		ORDER BY e.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying legacy students: %w", err)
	}
	defer rows.Close()

	var students []LegacyStudent
	byID := make(map[int64]int)
	for rows.Next() {
		var s LegacyStudent
		if err := rows.Scan(&s.ID, &s.FamilyName, &s.GivenName, &s.ClassName,
			&s.SchoolYear, &s.PhotoPath); err != nil {
			return nil, fmt.Errorf("scanning legacy student: %w", err)
		}
		byID[s.ID] = len(students)
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating legacy students: %w", err)
	}

	imgRows, err := p.db.QueryContext(ctx, `
		SELECT etudiant_id, image_path FROM FaceFeatures ORDER BY etudiant_id, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying legacy face records: %w", err)
	}
	defer imgRows.Close()

	for imgRows.Next() {
		var studentID int64
		var path string
		if err := imgRows.Scan(&studentID, &path); err != nil {
			return nil, fmt.Errorf("scanning legacy face record: %w", err)
		}
		if i, ok := byID[studentID]; ok && path != "" {
			students[i].ImagePaths = append(students[i].ImagePaths, path)
		}
	}
	if err := imgRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating legacy face records: %w", err)
	}

	return students, nil
}
