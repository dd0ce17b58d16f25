package db

import (
	"encoding/binary"
	"math"
)

// Cosine returns the cosine similarity of two vectors.
// Mismatched lengths and zero-norm vectors yield 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// DistanceToSimilarity converts a cosine distance into a similarity.
func DistanceToSimilarity(d float64) float64 {
	return 1.0 - d
}

// VectorToBytes encodes a vector as little-endian float32 bytes.
func VectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
