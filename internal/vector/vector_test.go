package vector

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: -1,
		},
		{
			name:     "scaled vectors keep similarity",
			a:        []float32{1, 2, 3},
			b:        []float32{2, 4, 6},
			expected: 1,
		},
		{
			name:     "zero magnitude yields zero",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 2, 3},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Cosine returned error: %v", err)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCosineSymmetric(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5, 0.01}
	b := []float32{2.2, 0.7, -0.4, 1.9}

	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine(a, b) error: %v", err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatalf("Cosine(b, a) error: %v", err)
	}
	if math.Abs(ab-ba) > 1e-12 {
		t.Errorf("Cosine not symmetric: %v vs %v", ab, ba)
	}
}

func TestCosineLengthMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	if err != ErrLengthMismatch {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.14159, -0.0001}
	out := FromBytes(ToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("roundtrip length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("roundtrip[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestFromBytesInvalidLength(t *testing.T) {
	if got := FromBytes([]byte{1, 2, 3}); got != nil {
		t.Errorf("FromBytes on truncated input = %v, want nil", got)
	}
}
