package feature

// ProbeDim is the length of probe vectors. Probes are a coarse summary of
// the full encoding used only for approximate candidate search; exact
// scoring always runs on the full vector. The size fits comfortably in a
// pgvector column and keeps the HNSW graph small.
const ProbeDim = 1024

// Probe reduces a vector to the given dimension by block-average pooling.
// Deterministic for any input length; pooling a vector shorter than dim
// returns a copy. The same reduction must be applied to queries and
// stored encodings for distances to be comparable.
func Probe(v Vector, dim int) Vector {
	if dim <= 0 || len(v) == 0 {
		return nil
	}
	if len(v) <= dim {
		return v.Clone()
	}

	out := make(Vector, dim)
	for i := 0; i < dim; i++ {
		// Block boundaries distribute the remainder evenly.
		start := i * len(v) / dim
		end := (i + 1) * len(v) / dim
		var sum float64
		for j := start; j < end; j++ {
			sum += float64(v[j])
		}
		out[i] = float32(sum / float64(end-start))
	}
	return out
}
