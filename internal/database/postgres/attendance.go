package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/class-attendance/internal/attendance"
)

// AttendanceRepository provides PostgreSQL-backed event storage. The
// unique constraint on (student_id, event_date, period) backstops the
// ledger's in-memory uniqueness across restarts.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates an attendance repository over the pool.
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// AppendEvent persists an event. A conflicting (student, date, period)
// row makes the insert a no-op: the ledger already reported the
// duplicate, the constraint only guards concurrent writers.
func (r *AttendanceRepository) AppendEvent(ctx context.Context, ev attendance.Event) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO attendance_events
			(id, student_id, family_name, given_name, class_name, class_id,
			 event_date, event_time, period, status, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (student_id, event_date, period) DO NOTHING
	`, ev.ID, ev.StudentID, ev.FamilyName, ev.GivenName, ev.ClassName, ev.ClassID,
		ev.Date, ev.Time, ev.Period, string(ev.Status), ev.Confidence, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// EventsByDate returns all events for a date.
func (r *AttendanceRepository) EventsByDate(ctx context.Context, date string) ([]attendance.Event, error) {
	return r.EventsBetween(ctx, date, date)
}

// EventsBetween returns events within the inclusive date range, ordered
// by creation time.
func (r *AttendanceRepository) EventsBetween(ctx context.Context, fromDate, toDate string) ([]attendance.Event, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, student_id, family_name, given_name, class_name, class_id,
		       event_date, event_time, period, status, confidence, created_at
		FROM attendance_events
		WHERE event_date >= $1 AND event_date <= $2
		ORDER BY created_at
	`, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var out []attendance.Event
	for rows.Next() {
		var ev attendance.Event
		var status string
		if err := rows.Scan(&ev.ID, &ev.StudentID, &ev.FamilyName, &ev.GivenName,
			&ev.ClassName, &ev.ClassID, &ev.Date, &ev.Time, &ev.Period,
			&status, &ev.Confidence, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		ev.Status = attendance.Status(status)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// UpdateEventStatus applies a status transition to an event.
func (r *AttendanceRepository) UpdateEventStatus(ctx context.Context, id string, status attendance.Status) error {
	res, err := r.pool.db.ExecContext(ctx,
		`UPDATE attendance_events SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating event %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("event %s not found", id)
	}
	return nil
}
