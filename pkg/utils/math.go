package utils

import "math"

// NormalizeL2 scales x in place to unit L2 norm and returns the norm it had.
// The sum is taken in float64 so long embeddings do not lose precision. A zero
// or non-finite norm leaves x unchanged; callers that need unit vectors should
// check the returned value.
func NormalizeL2(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsInf(norm, 0) || math.IsNaN(norm) {
		return norm
	}
	for i := range x {
		x[i] = float32(float64(x[i]) / norm)
	}
	return norm
}
