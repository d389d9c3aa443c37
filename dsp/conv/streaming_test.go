package conv

import (
	"errors"
	"math"
	"testing"
)

func mustNewStreaming(t *testing.T, kernel []float64, maxBlock int) *Streaming {
	t.Helper()

	s, err := NewStreaming(kernel, maxBlock)
	if err != nil {
		t.Fatalf("NewStreaming: %v", err)
	}

	return s
}

func TestStreamingMatchesDirect(t *testing.T) {
	t.Parallel()

	kernel := []float64{1, 0.5, 0.25, -0.125, 0.0625}
	signal := make([]float64, 100)
	for i := range signal {
		signal[i] = math.Sin(float64(i)*0.37) + 0.1*float64(i%3)
	}

	want := direct(signal, kernel)

	// Irregular block lengths, including ones shorter than the kernel.
	sizes := []int{16, 3, 1, 16, 7, 2, 16, 16, 16, 7}
	s := mustNewStreaming(t, kernel, 16)

	got := append([]float64(nil), signal...)
	pos := 0
	for _, n := range sizes {
		if err := s.ProcessInPlace(got[pos : pos+n]); err != nil {
			t.Fatalf("ProcessInPlace: %v", err)
		}
		pos += n
	}
	if pos != len(signal) {
		t.Fatalf("test sizes cover %d samples, want %d", pos, len(signal))
	}

	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStreamingRejectsOversizedBlock(t *testing.T) {
	t.Parallel()

	s := mustNewStreaming(t, []float64{1}, 4)
	if err := s.ProcessInPlace(make([]float64, 5)); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("err = %v, want ErrLengthMismatch", err)
	}
}

func TestStreamingConstructorErrors(t *testing.T) {
	t.Parallel()

	if _, err := NewStreaming(nil, 8); !errors.Is(err, ErrEmptyKernel) {
		t.Fatalf("empty kernel err = %v", err)
	}
	if _, err := NewStreaming([]float64{1}, 0); !errors.Is(err, ErrInvalidBlockSize) {
		t.Fatalf("zero block err = %v", err)
	}
}

func TestStreamingReset(t *testing.T) {
	t.Parallel()

	s := mustNewStreaming(t, []float64{0, 1}, 4)
	buf := []float64{1, 2, 3, 4}
	if err := s.ProcessInPlace(buf); err != nil {
		t.Fatal(err)
	}
	s.Reset()

	next := make([]float64, 4)
	if err := s.ProcessInPlace(next); err != nil {
		t.Fatal(err)
	}
	for i, v := range next {
		if math.Abs(v) > 1e-12 {
			t.Fatalf("next[%d] = %v after Reset, want 0", i, v)
		}
	}
}

// direct is the O(N*M) linear convolution the streaming output is checked
// against.
func direct(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, x := range a {
		for j, h := range b {
			out[i+j] += x * h
		}
	}

	return out
}
