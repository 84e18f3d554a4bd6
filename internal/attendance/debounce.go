package attendance

import (
	"sync"
	"time"
)

// DefaultCooldown matches the cooldown the legacy system used between
// repeated detections of the same student.
const DefaultCooldown = 20 * time.Second

// Debouncer suppresses repeated attendance events for the same student
// within a cooldown window. State is kept per student: a different
// student appearing immediately after another is never suppressed.
type Debouncer struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastSeen map[int64]time.Time
}

// NewDebouncer creates a debouncer with the given cooldown. A zero or
// negative cooldown falls back to DefaultCooldown.
func NewDebouncer(cooldown time.Duration) *Debouncer {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Debouncer{
		cooldown: cooldown,
		lastSeen: make(map[int64]time.Time),
	}
}

// ShouldAccept reports whether a detection of the student at the given
// time is outside the cooldown window. It does not record an acceptance.
func (d *Debouncer) ShouldAccept(studentID int64, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	last, ok := d.lastSeen[studentID]
	if !ok {
		return true
	}
	return now.Sub(last) >= d.cooldown
}

// RecordAccepted marks the student as accepted at the given time. Kept
// separate from ShouldAccept so a failed persistence write does not start
// the cooldown.
func (d *Debouncer) RecordAccepted(studentID int64, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSeen[studentID] = now
}

// Reset clears all recorded acceptances.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSeen = make(map[int64]time.Time)
}
