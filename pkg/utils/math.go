package utils

import "math"

// NormalizeL2 scales the vector in place to unit length so dot products equal
// cosine similarity. Zero vectors are left as-is.
func NormalizeL2(v []float32) {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
