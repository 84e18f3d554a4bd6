package match

import (
	"context"
	"fmt"

	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/feature"
)

// SearchMatcher matches against candidates fetched by probe similarity
// from the database (pgvector) instead of an in-memory scan. Like the
// HNSW index, the approximate search only narrows the candidate set; the
// exact comparator does the final scoring.
type SearchMatcher struct {
	searcher database.ProbeSearcher
	roster   database.RosterReader
}

// NewSearchMatcher creates a matcher over a probe-search backend.
func NewSearchMatcher(searcher database.ProbeSearcher, roster database.RosterReader) *SearchMatcher {
	return &SearchMatcher{searcher: searcher, roster: roster}
}

// BestMatch fetches up to limit candidate encodings by probe similarity
// and rescores them exactly. Returns nil when nothing clears the
// tentative threshold.
func (m *SearchMatcher) BestMatch(ctx context.Context, query, probe feature.Vector, limit int, th Thresholds) (*Result, error) {
	if limit <= 0 {
		limit = 16
	}
	candidates, err := m.searcher.FindSimilarProbes(ctx, probe, limit)
	if err != nil {
		return nil, fmt.Errorf("searching probe candidates: %w", err)
	}

	var best *Result
	for _, enc := range candidates {
		if len(enc.Encoding) == 0 {
			continue
		}
		score := feature.Score(query, enc.Encoding)
		if best != nil && score <= best.Confidence {
			continue
		}
		best = &Result{EncodingID: enc.ID, Confidence: score}
		best.Student.ID = enc.StudentID
	}

	if best == nil || best.Confidence < th.Tentative {
		return nil, nil
	}

	student, err := m.roster.StudentByID(ctx, best.Student.ID)
	if err != nil {
		return nil, fmt.Errorf("loading student %d: %w", best.Student.ID, err)
	}
	if student == nil {
		return nil, fmt.Errorf("candidate student %d not in roster", best.Student.ID)
	}
	best.Student = *student
	best.Confirmed = best.Confidence >= th.Confirmed
	return best, nil
}
