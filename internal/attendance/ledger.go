package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outcome reports what RecordArrival did with a detection.
type Outcome string

const (
	// OutcomeRecorded means a new event was appended.
	OutcomeRecorded Outcome = "recorded"
	// OutcomeDuplicate means an event already exists for the
	// (student, date, period) key; the call was a no-op.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeSuppressed means the per-student cooldown rejected the
	// detection.
	OutcomeSuppressed Outcome = "suppressed"
)

// Ledger is the authoritative, append-only record of attendance events
// plus the derived present view for the active session. All mutations go
// through a single mutex: event append and present-view update are one
// atomic step, and concurrent readers always see a consistent snapshot.
type Ledger struct {
	store      EventStore
	debouncer  *Debouncer
	classifier *Classifier

	mu          sync.Mutex
	sessionDate string
	events      map[EventKey]Event
	latest      map[int64]Event
}

// NewLedger creates a ledger over the given persistence store.
func NewLedger(store EventStore, debouncer *Debouncer, classifier *Classifier) *Ledger {
	return &Ledger{
		store:      store,
		debouncer:  debouncer,
		classifier: classifier,
		events:     make(map[EventKey]Event),
		latest:     make(map[int64]Event),
	}
}

// LoadSession rebuilds the present view for a date from persisted events.
// Call it once at session start; RecordArrival rolls the session over
// automatically when the date changes.
func (l *Ledger) LoadSession(ctx context.Context, date string) error {
	events, err := l.store.EventsByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("loading events for %s: %w", date, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.startSessionLocked(date)
	for _, ev := range events {
		l.applyLocked(ev)
	}
	return nil
}

// RecordArrival runs a confirmed detection through the debouncer and the
// classifier, then appends an attendance event and updates the present
// view. An existing event for the same (student, date, period) makes the
// call an idempotent no-op reported as OutcomeDuplicate.
//
// A store write failure is returned to the caller with nothing applied;
// the cooldown is only started after a successful append so the caller
// can retry.
func (l *Ledger) RecordArrival(ctx context.Context, subj Subject, now time.Time, confidence float64) (*Event, Outcome, error) {
	if !l.debouncer.ShouldAccept(subj.StudentID, now) {
		return nil, OutcomeSuppressed, nil
	}

	cls := l.classifier.Classify(now)
	ev := Event{
		ID:         uuid.NewString(),
		StudentID:  subj.StudentID,
		FamilyName: subj.FamilyName,
		GivenName:  subj.GivenName,
		ClassName:  subj.ClassName,
		ClassID:    subj.ClassID,
		Date:       now.Format(DateFormat),
		Time:       now.Format(TimeFormat),
		Period:     cls.Period,
		Status:     cls.Status,
		Confidence: confidence,
		CreatedAt:  now,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.Date != l.sessionDate {
		l.startSessionLocked(ev.Date)
	}
	if existing, ok := l.events[ev.Key()]; ok {
		return &existing, OutcomeDuplicate, nil
	}

	if err := l.store.AppendEvent(ctx, ev); err != nil {
		return nil, "", fmt.Errorf("appending attendance event: %w", err)
	}

	l.applyLocked(ev)
	l.debouncer.RecordAccepted(subj.StudentID, now)
	return &ev, OutcomeRecorded, nil
}

// ReconcileAbsences creates an Absent event for every roster subject with
// no event for (date, period). It is idempotent: subjects already marked
// for the key, whether present or absent, are skipped, and an arrival
// recorded earlier always wins over a later reconciliation pass.
//
// Reconciling a date other than the active session reads that date's
// persisted events from the store and leaves the session view untouched.
func (l *Ledger) ReconcileAbsences(ctx context.Context, roster []Subject, period, date string) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	inSession := date == l.sessionDate
	existing := l.events
	if !inSession {
		persisted, err := l.store.EventsByDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("loading events for %s: %w", date, err)
		}
		existing = make(map[EventKey]Event, len(persisted))
		for _, ev := range persisted {
			existing[ev.Key()] = ev
		}
	}

	var created []Event
	for _, subj := range roster {
		key := EventKey{StudentID: subj.StudentID, Date: date, Period: period}
		if _, ok := existing[key]; ok {
			continue
		}

		ev := Event{
			ID:         uuid.NewString(),
			StudentID:  subj.StudentID,
			FamilyName: subj.FamilyName,
			GivenName:  subj.GivenName,
			ClassName:  subj.ClassName,
			ClassID:    subj.ClassID,
			Date:       date,
			Period:     period,
			Status:     StatusAbsent,
			CreatedAt:  time.Now(),
		}
		if err := l.store.AppendEvent(ctx, ev); err != nil {
			return created, fmt.Errorf("appending absence for student %d: %w", subj.StudentID, err)
		}
		if inSession {
			l.applyLocked(ev)
		} else {
			existing[key] = ev
		}
		created = append(created, ev)
	}

	return created, nil
}

// ClosePeriod transitions every non-terminal non-absent event of the
// period to StatusCompleted. This is the only status mutation the system
// performs, and only the ledger performs it. Returns the number of events
// transitioned.
func (l *Ledger) ClosePeriod(ctx context.Context, period, date string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	closed := 0
	for key, ev := range l.events {
		if key.Date != date || key.Period != period {
			continue
		}
		if ev.Status.Terminal() || ev.Status == StatusAbsent {
			continue
		}
		if err := l.store.UpdateEventStatus(ctx, ev.ID, StatusCompleted); err != nil {
			return closed, fmt.Errorf("closing event %s: %w", ev.ID, err)
		}
		ev.Status = StatusCompleted
		l.events[key] = ev
		if cur, ok := l.latest[ev.StudentID]; ok && cur.ID == ev.ID {
			l.latest[ev.StudentID] = ev
		}
		closed++
	}
	return closed, nil
}

// PresentView returns the latest event per student for the active
// session, optionally filtered by class name. The result is a sorted
// snapshot, safe to use concurrently with writers.
func (l *Ledger) PresentView(classFilter string) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Event, 0, len(l.latest))
	for _, ev := range l.latest {
		if classFilter != "" && ev.ClassName != classFilter {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FamilyName != out[j].FamilyName {
			return out[i].FamilyName < out[j].FamilyName
		}
		return out[i].StudentID < out[j].StudentID
	})
	return out
}

// SessionDate returns the date of the active session, if any.
func (l *Ledger) SessionDate() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionDate
}

// startSessionLocked resets session state for a new date. The debouncer
// is reset too: cooldowns from a previous session are meaningless.
func (l *Ledger) startSessionLocked(date string) {
	l.sessionDate = date
	l.events = make(map[EventKey]Event)
	l.latest = make(map[int64]Event)
	l.debouncer.Reset()
}

// applyLocked adds an event to the session maps. Caller holds l.mu.
func (l *Ledger) applyLocked(ev Event) {
	l.events[ev.Key()] = ev
	if cur, ok := l.latest[ev.StudentID]; !ok || !ev.CreatedAt.Before(cur.CreatedAt) {
		l.latest[ev.StudentID] = ev
	}
}
