package vecmath

import (
	"math"
	"testing"
)

func TestNormalizeFixedPoint(t *testing.T) {
	v := []float32{3, 4, 0}
	Normalize(v)
	if n := Norm(v); math.Abs(n-1) > 1e-6 {
		t.Fatalf("norm after normalize = %v, want ~1", n)
	}
	v2 := append([]float32(nil), v...)
	Normalize(v2)
	for i := range v {
		if v[i] != v2[i] {
			t.Fatalf("normalizing twice is not a fixed point at %d: %v vs %v", i, v[i], v2[i])
		}
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	for _, f := range v {
		if f != 0 {
			t.Fatalf("zero vector should stay zero, got %v", v)
		}
	}
}

func TestByteRoundtrip(t *testing.T) {
	v := []float32{1.5, -2.25, 0, 3.14159, -0.0001}
	got := FromBytes(ToBytes(v))
	if len(got) != len(v) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(v))
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("element %d: got %v want %v", i, got[i], v[i])
		}
	}
}

func TestDotRange(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	if d := Dot(a, a); math.Abs(float64(d)-1) > 1e-4 {
		t.Fatalf("dot(a,a) = %v, want ~1", d)
	}
	if d := Dot(a, b); math.Abs(float64(d)) > 1e-4 {
		t.Fatalf("dot(a,b) = %v, want ~0", d)
	}
}

func TestDotMismatchedLengthPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on mismatched lengths")
		}
	}()
	Dot([]float32{1, 2}, []float32{1, 2, 3})
}
