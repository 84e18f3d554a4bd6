package match

import (
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/class-attendance/internal/database"
	"github.com/kozaktomas/class-attendance/internal/feature"
)

// HNSW parameters for probe vectors.
const (
	// indexMaxNeighbors (M) is the maximum number of neighbors per node.
	indexMaxNeighbors = 16

	// candidateMultiplier requests more candidates than needed so the
	// exact rescoring still has enough students after grouping encodings.
	candidateMultiplier = 3
)

// Index is an in-memory HNSW index over probe vectors that narrows the
// roster scan for large rosters. Candidates found by probe similarity are
// rescored exactly on their full encodings, so the index changes only
// which entries are scored, never how.
type Index struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[int64]
	entries map[int64]indexedEncoding // encoding ID -> owning entry
}

type indexedEncoding struct {
	student  database.Student
	encoding feature.Vector
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{entries: make(map[int64]indexedEncoding)}
}

// Build replaces the index contents with the given roster entries.
// Encodings without a probe vector are left out of the graph and fall
// back to the linear scan path.
func (x *Index) Build(entries []database.RosterEntry) {
	x.mu.Lock()
	defer x.mu.Unlock()

	g := hnsw.NewGraph[int64]()
	g.M = indexMaxNeighbors
	g.Ml = 1.0 / float64(indexMaxNeighbors)
	g.Distance = hnsw.CosineDistance

	x.entries = make(map[int64]indexedEncoding)
	for i := range entries {
		entry := &entries[i]
		for _, enc := range entry.Encodings {
			if len(enc.Encoding) == 0 || len(enc.Probe) == 0 {
				continue
			}
			g.Add(hnsw.MakeNode(enc.ID, enc.Probe))
			x.entries[enc.ID] = indexedEncoding{student: entry.Student, encoding: enc.Encoding}
		}
	}
	x.graph = g
}

// Add indexes a single encoding, e.g. after a new enrollment.
func (x *Index) Add(student database.Student, enc database.StoredEncoding) {
	if len(enc.Encoding) == 0 || len(enc.Probe) == 0 {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.graph == nil {
		g := hnsw.NewGraph[int64]()
		g.M = indexMaxNeighbors
		g.Ml = 1.0 / float64(indexMaxNeighbors)
		g.Distance = hnsw.CosineDistance
		x.graph = g
	}
	x.graph.Add(hnsw.MakeNode(enc.ID, enc.Probe))
	x.entries[enc.ID] = indexedEncoding{student: student, encoding: enc.Encoding}
}

// Len returns the number of indexed encodings.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// BestMatch finds candidate encodings by probe similarity and rescores
// them exactly. k is the number of candidate students wanted; the graph
// is asked for more to compensate for students with several encodings.
// Returns nil when nothing clears the tentative threshold.
func (x *Index) BestMatch(query, probe feature.Vector, k int, th Thresholds) *Result {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil || len(x.entries) == 0 {
		return nil
	}
	if k <= 0 {
		k = 1
	}

	neighbors := x.graph.Search(probe, k*candidateMultiplier)

	var best *Result
	for _, n := range neighbors {
		ie, ok := x.entries[n.Key]
		if !ok {
			continue
		}
		score := feature.Score(query, ie.encoding)
		if best != nil && score <= best.Confidence {
			continue
		}
		best = &Result{
			Student:    ie.student,
			EncodingID: n.Key,
			Confidence: score,
		}
	}

	if best == nil || best.Confidence < th.Tentative {
		return nil
	}
	best.Confirmed = best.Confidence >= th.Confirmed
	return best
}
