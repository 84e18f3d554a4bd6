// Package feature provides face feature vectors, their portable binary
// encoding and the similarity scoring used for roster matching.
package feature

import "math"

// DefaultDim is the length of a feature vector produced from a normalized
// 128x128 grayscale face patch.
const DefaultDim = 128 * 128

// Vector is a fixed-length face feature vector. All vectors compared to
// each other must share the same length. Vectors are treated as immutable
// once produced.
type Vector []float32

// Clone returns an independent copy of the vector.
func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

// stats returns the mean and standard deviation of the vector.
func (v Vector) stats() (mean, std float64) {
	if len(v) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range v {
		sum += float64(x)
	}
	mean = sum / float64(len(v))

	var sq float64
	for _, x := range v {
		d := float64(x) - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(v)))
	return mean, std
}

// normalized returns the vector shifted to zero mean and scaled to unit
// standard deviation. The caller must ensure std is not near zero.
func (v Vector) normalized(mean, std float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (float64(x) - mean) / std
	}
	return out
}
