// Package match selects the best roster match for a query feature vector.
package match

import (
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/feature"
)

// Thresholds are the configured confidence tiers. The legacy code paths
// hardcoded 60, 90 and 95 at different call sites; here a single policy
// object carries both tiers and every caller goes through it.
type Thresholds struct {
	// Tentative is the minimum confidence for a result to be reported at
	// all (display, diagnostics).
	Tentative float64
	// Confirmed is the minimum confidence for attendance to be recorded.
	Confirmed float64
}

// DefaultThresholds mirror the legacy capture path (60) and live
// recognition path (90).
var DefaultThresholds = Thresholds{Tentative: 60, Confirmed: 90}

// Result is the outcome of one match pass. It is created per detection
// tick and never persisted.
type Result struct {
	Student    database.Student `json:"student"`
	EncodingID int64            `json:"encoding_id"`
	Confidence float64          `json:"confidence"`
	// Confirmed reports whether the confidence clears the recording tier.
	Confirmed bool `json:"confirmed"`
}

// BestMatch scans every roster entry, scores the query against every
// encoding and keeps the maximum. Ties break to the first entry in
// iteration order, so callers must supply entries in a stable order
// (RosterReader.AllEntries guarantees student ID ascending).
//
// Returns nil when the roster is empty or the best score is below the
// tentative threshold; neither case is an error. Encodings with an empty
// vector (skipped as corrupt at load time) are ignored.
func BestMatch(query feature.Vector, entries []database.RosterEntry, th Thresholds) *Result {
	var best *Result

	for i := range entries {
		entry := &entries[i]
		for j := range entry.Encodings {
			enc := &entry.Encodings[j]
			if len(enc.Encoding) == 0 {
				continue
			}
			score := feature.Score(query, enc.Encoding)
			if best != nil && score <= best.Confidence {
				continue
			}
			best = &Result{
				Student:    entry.Student,
				EncodingID: enc.ID,
				Confidence: score,
			}
		}
	}

	if best == nil || best.Confidence < th.Tentative {
		return nil
	}
	best.Confirmed = best.Confidence >= th.Confirmed
	return best
}
