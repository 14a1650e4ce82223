// Package vecmath provides the numeric primitives the rest of photolens
// builds on: little-endian float32 byte codecs, L2 normalization, and dot
// product. Every embedding that flows through the engine is a unit-norm
// []float32; this package is where that invariant is produced and checked.
package vecmath

import (
	"encoding/binary"
	"math"
)

// ToBytes encodes v as little-endian IEEE-754 float32, 4 bytes per element.
// This is the wire/storage format for the embedding column (spec §3: "raw
// little-endian float32 bytes of length D·4").
func ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// FromBytes decodes little-endian IEEE-754 float32 bytes back into a slice.
// len(b) must be a multiple of 4; a short trailing remainder is ignored.
func FromBytes(b []byte) []float32 {
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// Normalize scales v in place so that its Euclidean length is 1 and returns
// it. The zero vector is returned unchanged (its norm is already 0 and there
// is no direction to scale toward).
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
	return v
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	return math.Sqrt(sumSq)
}

// Dot returns the dot product of a and b. For unit-norm vectors this is
// their cosine similarity. Panics if len(a) != len(b), which is a
// programmer error (mismatched embedding dimension).
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		panic("vecmath: dot product of mismatched-length vectors")
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
