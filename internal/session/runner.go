// Package session drives the detection loop: frames in, attendance
// events out. One consumer processes ticks sequentially; frame
// acquisition may run on a producer goroutine behind the source channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/class-attendance/internal/attendance"
	"github.com/kozaktomas/class-attendance/internal/capture"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/match"
)

// indexThreshold is the roster size above which the HNSW candidate index
// replaces the linear scan.
const indexThreshold = 256

// Notice is one user-visible outcome of a detection tick. The core emits
// notices; a presentation layer subscribes and renders, never vice versa.
type Notice struct {
	Kind    string             `json:"kind"` // "match", "suppressed", "tentative", "anomaly", "no_match", "error"
	Ref     string             `json:"ref,omitempty"`
	Message string             `json:"message,omitempty"`
	Match   *match.Result      `json:"match,omitempty"`
	Event   *attendance.Event  `json:"event,omitempty"`
	Outcome attendance.Outcome `json:"outcome,omitempty"`
	At      time.Time          `json:"at"`
}

// Notifier receives notices. Implementations must not block the loop.
type Notifier interface {
	Publish(Notice)
}

// Runner wires the collaborators of the detection loop.
type Runner struct {
	Source     capture.Source
	Locator    capture.Locator
	Extractor  capture.Extractor
	Roster     database.RosterReader
	Ledger     *attendance.Ledger
	Thresholds match.Thresholds
	Notifier   Notifier

	// Index is an optional shared candidate index. Encodings added to it
	// while the loop runs, e.g. by a web enrollment, become matchable
	// immediately. Left nil, the runner builds its own for large rosters.
	Index *match.Index

	entries []database.RosterEntry
	pending []pendingArrival
}

// pendingArrival is an arrival whose persistence failed; it is retried on
// the next tick instead of being dropped.
type pendingArrival struct {
	subject    attendance.Subject
	at         time.Time
	confidence float64
}

// Run loads the roster and consumes frames until the source closes or
// the context is cancelled. The loop stops cleanly between ticks; an
// in-flight tick always completes, so the ledger is never left half
// updated.
func (r *Runner) Run(ctx context.Context) error {
	entries, err := r.Roster.AllEntries(ctx)
	if err != nil {
		return fmt.Errorf("loading roster: %w", err)
	}
	r.entries = entries

	if r.Index == nil && len(entries) >= indexThreshold {
		r.Index = match.NewIndex()
	}
	if r.Index != nil {
		r.Index.Build(entries)
		log.Printf("indexed %d encodings for %d students", r.Index.Len(), len(entries))
	}

	frames := r.Source.Frames(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			r.flushPending(ctx)
			r.tick(ctx, frame)
		}
	}
}

// tick processes one frame end to end. Anomalies skip the tick; they are
// reported as notices, never as loop failures.
func (r *Runner) tick(ctx context.Context, frame capture.Frame) {
	box, err := r.Locator.Locate(ctx, frame.Data)
	if err != nil {
		if errors.Is(err, capture.ErrNoFace) || errors.Is(err, capture.ErrMultipleFaces) {
			r.publish(Notice{Kind: "anomaly", Ref: frame.Ref, Message: err.Error(), At: frame.At})
			return
		}
		r.publish(Notice{Kind: "error", Ref: frame.Ref, Message: err.Error(), At: frame.At})
		return
	}

	feats, err := r.Extractor.Extract(frame.Data, box)
	if err != nil {
		r.publish(Notice{Kind: "error", Ref: frame.Ref, Message: err.Error(), At: frame.At})
		return
	}

	result := r.bestMatch(feats)
	if result == nil {
		r.publish(Notice{Kind: "no_match", Ref: frame.Ref, At: frame.At})
		return
	}
	if !result.Confirmed {
		r.publish(Notice{Kind: "tentative", Ref: frame.Ref, Match: result, At: frame.At})
		return
	}

	subj := result.Student.Subject()
	event, outcome, err := r.Ledger.RecordArrival(ctx, subj, frame.At, result.Confidence)
	if err != nil {
		// Retry the persistence write once before queueing.
		event, outcome, err = r.Ledger.RecordArrival(ctx, subj, frame.At, result.Confidence)
	}
	if err != nil {
		r.pending = append(r.pending, pendingArrival{subject: subj, at: frame.At, confidence: result.Confidence})
		r.publish(Notice{
			Kind: "error", Ref: frame.Ref, Match: result, At: frame.At,
			Message: fmt.Sprintf("attendance record for %s %s queued after write failure: %v",
				subj.GivenName, subj.FamilyName, err),
		})
		return
	}

	// A cooldown suppression carries no event; it gets its own kind so
	// subscribers never see a "match" without one.
	if outcome == attendance.OutcomeSuppressed {
		r.publish(Notice{Kind: "suppressed", Ref: frame.Ref, Match: result, Outcome: outcome, At: frame.At})
		return
	}
	r.publish(Notice{Kind: "match", Ref: frame.Ref, Match: result, Event: event, Outcome: outcome, At: frame.At})
}

// bestMatch scores the query against the roster, via the candidate index
// when one was built.
func (r *Runner) bestMatch(feats capture.Features) *match.Result {
	if r.Index != nil {
		return r.Index.BestMatch(feats.Full, feats.Probe, 8, r.Thresholds)
	}
	return match.BestMatch(feats.Full, r.entries, r.Thresholds)
}

// flushPending retries queued arrivals whose persistence failed earlier.
func (r *Runner) flushPending(ctx context.Context) {
	if len(r.pending) == 0 {
		return
	}

	remaining := r.pending[:0]
	for _, p := range r.pending {
		if _, _, err := r.Ledger.RecordArrival(ctx, p.subject, p.at, p.confidence); err != nil {
			remaining = append(remaining, p)
		}
	}
	r.pending = remaining
}

func (r *Runner) publish(n Notice) {
	if r.Notifier != nil {
		r.Notifier.Publish(n)
	}
}
