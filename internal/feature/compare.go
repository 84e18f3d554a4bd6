package feature

import "math"

const (
	// degenerateStd rejects flat vectors whose standard deviation is too
	// small to normalize meaningfully.
	degenerateStd = 1e-6

	// coarseMismatchLimit is an early exit: if the mean absolute difference
	// of the normalized vectors exceeds it, the faces are obviously
	// different and the cosine step is skipped.
	coarseMismatchLimit = 0.5

	// borderlineCutoff and borderlinePenalty dampen weak matches to reduce
	// false positives on borderline scores.
	borderlineCutoff  = 75.0
	borderlinePenalty = 0.8
)

// Score computes a similarity confidence between two feature vectors on a
// [0, 100] scale. It is a pure function.
//
// Vectors of unequal length score 0: this runs inside a best-effort
// per-frame loop, so a contract violation is treated as "no match" rather
// than an error. Degenerate (near-constant) vectors also score 0.
func Score(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	meanA, stdA := a.stats()
	meanB, stdB := b.stats()
	if stdA < degenerateStd || stdB < degenerateStd {
		return 0
	}

	na := a.normalized(meanA, stdA)
	nb := b.normalized(meanB, stdB)

	var absDiff float64
	for i := range na {
		absDiff += math.Abs(na[i] - nb[i])
	}
	if absDiff/float64(len(na)) > coarseMismatchLimit {
		return 0
	}

	var dot, normA, normB float64
	for i := range na {
		dot += na[i] * nb[i]
		normA += na[i] * na[i]
		normB += nb[i] * nb[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cosine := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	confidence := (cosine + 1) * 50

	if confidence < borderlineCutoff {
		confidence *= borderlinePenalty
	}

	return math.Max(0, math.Min(100, confidence))
}
