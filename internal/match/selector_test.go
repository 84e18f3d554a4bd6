package match

import (
	"math/rand"
	"testing"

	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/feature"
)

func vec(seed int64, n int) feature.Vector {
	r := rand.New(rand.NewSource(seed))
	v := make(feature.Vector, n)
	for i := range v {
		v[i] = float32(r.Float64() * 255)
	}
	return v
}

func perturbed(v feature.Vector, seed int64) feature.Vector {
	r := rand.New(rand.NewSource(seed))
	out := v.Clone()
	for i := range out {
		out[i] += float32(r.Float64() - 0.5)
	}
	return out
}

func entry(id int64, name string, encs ...feature.Vector) database.RosterEntry {
	e := database.RosterEntry{
		Student: database.Student{ID: id, FamilyName: name, GivenName: name, ClassName: "2nde A"},
	}
	for i, enc := range encs {
		e.Encodings = append(e.Encodings, database.StoredEncoding{
			ID:        id*100 + int64(i),
			StudentID: id,
			Encoding:  enc,
			Probe:     feature.Probe(enc, feature.ProbeDim),
		})
	}
	return e
}

func TestBestMatch_EmptyRoster(t *testing.T) {
	got := BestMatch(vec(1, 128), nil, DefaultThresholds)
	if got != nil {
		t.Errorf("expected no match on empty roster, got %+v", got)
	}
}

func TestBestMatch_PicksClosestStudent(t *testing.T) {
	encAlice := vec(1, 512)
	encBob := vec(2, 512)
	roster := []database.RosterEntry{
		entry(1, "Martin", encAlice),
		entry(2, "Durand", encBob),
	}

	query := perturbed(encAlice, 3)
	got := BestMatch(query, roster, Thresholds{Tentative: 60, Confirmed: 90})
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.Student.ID != 1 {
		t.Errorf("expected student 1, got %d", got.Student.ID)
	}
	if got.Confidence < 95 {
		t.Errorf("expected near-identical confidence, got %f", got.Confidence)
	}
	if !got.Confirmed {
		t.Error("expected match above confirmed tier")
	}
}

func TestBestMatch_BelowTentativeIsNoMatch(t *testing.T) {
	roster := []database.RosterEntry{entry(1, "Martin", vec(1, 512))}

	// An unrelated query lands below the tentative tier.
	got := BestMatch(vec(99, 512), roster, Thresholds{Tentative: 99.9, Confirmed: 99.95})
	if got != nil {
		t.Errorf("expected no match below tentative threshold, got %+v", got)
	}
}

func TestBestMatch_TentativeButNotConfirmed(t *testing.T) {
	enc := vec(4, 512)
	roster := []database.RosterEntry{entry(1, "Martin", enc)}

	got := BestMatch(perturbed(enc, 5), roster, Thresholds{Tentative: 60, Confirmed: 99.9999})
	if got == nil {
		t.Fatal("expected a tentative match")
	}
	if got.Confirmed {
		t.Error("expected match below the confirmed tier")
	}
}

func TestBestMatch_BestEncodingPerStudentWins(t *testing.T) {
	target := vec(6, 512)
	roster := []database.RosterEntry{
		entry(1, "Martin", vec(7, 512), target), // second encoding is the good one
	}

	got := BestMatch(perturbed(target, 8), roster, DefaultThresholds)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.EncodingID != 101 {
		t.Errorf("expected best encoding 101, got %d", got.EncodingID)
	}
}

func TestBestMatch_TieBreaksToFirstEntry(t *testing.T) {
	shared := vec(9, 512)
	roster := []database.RosterEntry{
		entry(1, "Martin", shared),
		entry(2, "Durand", shared.Clone()),
	}

	got := BestMatch(shared, roster, DefaultThresholds)
	if got == nil {
		t.Fatal("expected a match")
	}
	if got.Student.ID != 1 {
		t.Errorf("tie must break to the first entry, got student %d", got.Student.ID)
	}
}

func TestBestMatch_SkipsEmptyEncodings(t *testing.T) {
	enc := vec(10, 512)
	e := entry(1, "Martin", enc)
	// Simulate an encoding skipped as corrupt at load time.
	e.Encodings = append([]database.StoredEncoding{{ID: 99, StudentID: 1}}, e.Encodings...)

	got := BestMatch(perturbed(enc, 11), []database.RosterEntry{e}, DefaultThresholds)
	if got == nil {
		t.Fatal("expected a match despite the empty encoding")
	}
	if got.EncodingID == 99 {
		t.Error("empty encoding must never match")
	}
}

func TestIndex_BestMatchAgreesWithLinearScan(t *testing.T) {
	encA := vec(12, 2048)
	encB := vec(13, 2048)
	encC := vec(14, 2048)
	roster := []database.RosterEntry{
		entry(1, "Martin", encA),
		entry(2, "Durand", encB),
		entry(3, "Petit", encC),
	}

	idx := NewIndex()
	idx.Build(roster)
	if idx.Len() != 3 {
		t.Fatalf("expected 3 indexed encodings, got %d", idx.Len())
	}

	query := perturbed(encB, 15)
	probe := feature.Probe(query, feature.ProbeDim)

	linear := BestMatch(query, roster, DefaultThresholds)
	indexed := idx.BestMatch(query, probe, 3, DefaultThresholds)

	if linear == nil || indexed == nil {
		t.Fatalf("expected matches from both paths, got linear=%v indexed=%v", linear, indexed)
	}
	if linear.Student.ID != indexed.Student.ID {
		t.Errorf("index disagreed with linear scan: %d vs %d", indexed.Student.ID, linear.Student.ID)
	}
	if linear.Confidence != indexed.Confidence {
		t.Errorf("index must rescore exactly: %f vs %f", indexed.Confidence, linear.Confidence)
	}
}

func TestIndex_EmptyIndexReturnsNoMatch(t *testing.T) {
	idx := NewIndex()
	if got := idx.BestMatch(vec(16, 128), vec(16, 128), 3, DefaultThresholds); got != nil {
		t.Errorf("expected no match from empty index, got %+v", got)
	}
}
