// Package vector holds the similarity primitive and the blob codec used to
// persist float32 embeddings in SQLite.
package vector

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrLengthMismatch is returned when two vectors of different dimensionality
// are compared.
var ErrLengthMismatch = errors.New("vector: length mismatch")

// Cosine computes the cosine similarity between two equal-length float32
// vectors: dot(a,b) / (|a| * |b|). The result is in [-1, 1]. A zero-magnitude
// input yields 0 rather than NaN. Pure and deterministic.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, nil
	}
	return dot / denom, nil
}

// ToBytes converts a float32 slice to a little-endian byte slice.
func ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// FromBytes converts a little-endian byte slice back to a float32 slice.
// Returns nil when the input length is not a multiple of four.
func FromBytes(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
