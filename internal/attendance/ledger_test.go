package attendance

import (
	"context"
	"errors"
	"testing"
	"time"
)

// memStore is an in-memory EventStore with error injection.
type memStore struct {
	events      []Event
	appendError error
}

func (s *memStore) AppendEvent(ctx context.Context, ev Event) error {
	if s.appendError != nil {
		return s.appendError
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) EventsByDate(ctx context.Context, date string) ([]Event, error) {
	var out []Event
	for _, ev := range s.events {
		if ev.Date == date {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memStore) UpdateEventStatus(ctx context.Context, id string, status Status) error {
	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].Status = status
			return nil
		}
	}
	return errors.New("event not found")
}

func newTestLedger(t *testing.T, store EventStore, cooldown time.Duration) *Ledger {
	t.Helper()
	return NewLedger(store, NewDebouncer(cooldown), defaultClassifier(t))
}

func at(t *testing.T, hhmm string) time.Time {
	t.Helper()
	return clock(t, hhmm)
}

var alice = Subject{StudentID: 1, FamilyName: "Martin", GivenName: "Alice", ClassName: "2nde A", ClassID: 10}
var bob = Subject{StudentID: 2, FamilyName: "Durand", GivenName: "Bob", ClassName: "2nde A", ClassID: 10}
var carol = Subject{StudentID: 3, FamilyName: "Petit", GivenName: "Carol", ClassName: "2nde B", ClassID: 11}

func TestRecordArrival_OnTime(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(t, store, 10*time.Second)

	ev, outcome, err := l.RecordArrival(context.Background(), alice, at(t, "08:05"), 99.2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeRecorded {
		t.Fatalf("expected recorded, got %q", outcome)
	}
	if ev.Period != "Morning" || ev.Status != StatusOnTime {
		t.Errorf("expected Morning/on_time, got %s/%s", ev.Period, ev.Status)
	}
	if ev.Confidence != 99.2 {
		t.Errorf("expected confidence carried over, got %f", ev.Confidence)
	}
	if len(store.events) != 1 {
		t.Errorf("expected one persisted event, got %d", len(store.events))
	}
}

func TestRecordArrival_DebouncerSuppressesRepeat(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(t, store, 10*time.Second)

	if _, outcome, _ := l.RecordArrival(context.Background(), alice, at(t, "08:05"), 99); outcome != OutcomeRecorded {
		t.Fatalf("expected first arrival recorded, got %q", outcome)
	}

	_, outcome, err := l.RecordArrival(context.Background(), alice, at(t, "08:05").Add(2*time.Second), 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSuppressed {
		t.Errorf("expected suppressed, got %q", outcome)
	}
	if len(store.events) != 1 {
		t.Errorf("expected a single persisted event, got %d", len(store.events))
	}
}

func TestRecordArrival_DuplicateSamePeriod(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(t, store, time.Second)

	first, _, err := l.RecordArrival(context.Background(), alice, at(t, "08:05"), 95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Past the cooldown but still within the same period: idempotent.
	dup, outcome, err := l.RecordArrival(context.Background(), alice, at(t, "09:00"), 97)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %q", outcome)
	}
	if dup.ID != first.ID {
		t.Errorf("duplicate should return the original event")
	}
	if len(store.events) != 1 {
		t.Errorf("expected one persisted event, got %d", len(store.events))
	}
}

func TestRecordArrival_OutOfPeriodStillRecorded(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(t, store, time.Second)

	ev, outcome, err := l.RecordArrival(context.Background(), alice, at(t, "12:30"), 95)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeRecorded {
		t.Fatalf("expected recorded, got %q", outcome)
	}
	if ev.Period != PeriodNone || ev.Status != StatusOutOfPeriod {
		t.Errorf("expected out-of-period event, got %s/%s", ev.Period, ev.Status)
	}
}

func TestRecordArrival_StoreFailureSurfacesAndAllowsRetry(t *testing.T) {
	store := &memStore{appendError: errors.New("disk full")}
	l := newTestLedger(t, store, 10*time.Second)

	_, _, err := l.RecordArrival(context.Background(), alice, at(t, "08:05"), 95)
	if err == nil {
		t.Fatal("expected persistence error to surface")
	}

	// The failed write must not start the cooldown or poison the view.
	store.appendError = nil
	ev, outcome, err := l.RecordArrival(context.Background(), alice, at(t, "08:05").Add(time.Second), 95)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if outcome != OutcomeRecorded {
		t.Errorf("expected retry to record, got %q", outcome)
	}
	if ev == nil {
		t.Fatal("expected event on retry")
	}
	if got := len(l.PresentView("")); got != 1 {
		t.Errorf("expected one present entry, got %d", got)
	}
}

func TestReconcileAbsences(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(t, store, time.Second)

	arrival := at(t, "08:05")
	if _, _, err := l.RecordArrival(context.Background(), alice, arrival, 95); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	roster := []Subject{alice, bob, carol}
	date := arrival.Format(DateFormat)

	created, err := l.ReconcileAbsences(context.Background(), roster, "Morning", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 absences, got %d", len(created))
	}
	for _, ev := range created {
		if ev.Status != StatusAbsent {
			t.Errorf("expected absent status, got %q", ev.Status)
		}
		if ev.StudentID == alice.StudentID {
			t.Error("present student must not be marked absent")
		}
	}
}

func TestReconcileAbsences_Idempotent(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(t, store, time.Second)

	roster := []Subject{alice, bob}
	created, err := l.ReconcileAbsences(context.Background(), roster, "Morning", "2026-03-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 absences, got %d", len(created))
	}

	again, err := l.ReconcileAbsences(context.Background(), roster, "Morning", "2026-03-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second reconciliation must create nothing, got %d", len(again))
	}
	if len(store.events) != 2 {
		t.Errorf("expected 2 persisted events, got %d", len(store.events))
	}
}

func TestReconcileAbsences_OtherDateSeesPersistedArrivals(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(t, store, time.Second)
	ctx := context.Background()

	// Alice's arrival for an earlier date exists only in the store; the
	// ledger never loaded that session.
	store.events = append(store.events, Event{
		ID:         "evt-past",
		StudentID:  alice.StudentID,
		FamilyName: alice.FamilyName,
		GivenName:  alice.GivenName,
		ClassName:  alice.ClassName,
		ClassID:    alice.ClassID,
		Date:       "2026-03-01",
		Time:       "08:05",
		Period:     "Morning",
		Status:     StatusOnTime,
		CreatedAt:  time.Date(2026, 3, 1, 8, 5, 0, 0, time.UTC),
	})

	// The active session is the next day.
	if _, _, err := l.RecordArrival(ctx, carol, at(t, "08:10"), 95); err != nil {
		t.Fatal(err)
	}

	created, err := l.ReconcileAbsences(ctx, []Subject{alice, bob}, "Morning", "2026-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(created) != 1 || created[0].StudentID != bob.StudentID {
		t.Fatalf("expected a single absence for bob, got %+v", created)
	}
	for _, ev := range store.events {
		if ev.StudentID == alice.StudentID && ev.Status == StatusAbsent {
			t.Error("student with a persisted arrival must not be marked absent")
		}
	}

	// The active session stays loaded and its view intact.
	if got := l.SessionDate(); got != "2026-03-02" {
		t.Errorf("expected active session preserved, got %q", got)
	}
	if got := len(l.PresentView("")); got != 1 {
		t.Errorf("expected present view untouched, got %d entries", got)
	}

	// Re-running against the store-backed date creates nothing new.
	again, err := l.ReconcileAbsences(ctx, []Subject{alice, bob}, "Morning", "2026-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second reconciliation must create nothing, got %d", len(again))
	}
}

func TestPresentView_ClassFilter(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(t, store, time.Second)

	ctx := context.Background()
	if _, _, err := l.RecordArrival(ctx, alice, at(t, "08:05"), 95); err != nil {
		t.Fatal(err)
	}
	if _, _, err := l.RecordArrival(ctx, carol, at(t, "08:06"), 92); err != nil {
		t.Fatal(err)
	}

	all := l.PresentView("")
	if len(all) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(all))
	}

	filtered := l.PresentView("2nde B")
	if len(filtered) != 1 || filtered[0].StudentID != carol.StudentID {
		t.Errorf("expected only the 2nde B student, got %+v", filtered)
	}
}

func TestClosePeriod(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(t, store, time.Second)

	ctx := context.Background()
	arrival := at(t, "08:05")
	if _, _, err := l.RecordArrival(ctx, alice, arrival, 95); err != nil {
		t.Fatal(err)
	}
	date := arrival.Format(DateFormat)
	if _, err := l.ReconcileAbsences(ctx, []Subject{alice, bob}, "Morning", date); err != nil {
		t.Fatal(err)
	}

	closed, err := l.ClosePeriod(ctx, "Morning", date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed != 1 {
		t.Errorf("expected 1 closed event, got %d", closed)
	}

	for _, ev := range l.PresentView("") {
		switch ev.StudentID {
		case alice.StudentID:
			if ev.Status != StatusCompleted {
				t.Errorf("expected alice completed, got %q", ev.Status)
			}
		case bob.StudentID:
			if ev.Status != StatusAbsent {
				t.Errorf("absent events must stay absent, got %q", ev.Status)
			}
		}
	}
}

func TestLoadSession_RebuildsView(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(t, store, time.Second)

	ctx := context.Background()
	arrival := at(t, "08:05")
	if _, _, err := l.RecordArrival(ctx, alice, arrival, 95); err != nil {
		t.Fatal(err)
	}
	date := arrival.Format(DateFormat)

	// A fresh ledger over the same store sees the persisted session.
	restarted := newTestLedger(t, store, time.Second)
	if err := restarted.LoadSession(ctx, date); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := len(restarted.PresentView("")); got != 1 {
		t.Errorf("expected rebuilt view with 1 entry, got %d", got)
	}

	// Uniqueness survives the restart.
	_, outcome, err := restarted.RecordArrival(ctx, alice, arrival.Add(time.Hour), 95)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeDuplicate {
		t.Errorf("expected duplicate after reload, got %q", outcome)
	}
}
