package testutil

import (
	"testing"
)

func TestDeterministicNoiseReproducible(t *testing.T) {
	t.Parallel()

	a := DeterministicNoise(3, 1, 32)
	b := DeterministicNoise(3, 1, 32)
	RequireSliceNearlyEqual(t, a, b, 0)

	c := DeterministicNoise(4, 1, 32)
	if d, _ := MaxAbsDiff(a, c); d == 0 {
		t.Fatal("different seeds produced identical noise")
	}
}

func TestImpulse(t *testing.T) {
	t.Parallel()

	x := Impulse(4, 2)
	if x[2] != 1 || x[0] != 0 {
		t.Fatalf("Impulse = %v", x)
	}
	if y := Impulse(4, 9); y[3] != 0 {
		t.Fatal("out-of-range impulse should be silent")
	}
}

func TestNoiseAudioChannelsDiffer(t *testing.T) {
	t.Parallel()

	a := NoiseAudio(1, 2, 16)
	if a.Channels() != 2 || a.Frames() != 16 {
		t.Fatalf("shape = %dx%d", a.Channels(), a.Frames())
	}
	if d, _ := MaxAbsDiff(a.Channel(0), a.Channel(1)); d == 0 {
		t.Fatal("channels should carry independent noise")
	}
	RequireAudioEqual(t, a.Clone(), a)
}

func TestBlocks(t *testing.T) {
	t.Parallel()

	stream := make([]float32, 2*10)
	blocks := Blocks(stream, 2, 4)
	if len(blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(blocks))
	}
	if len(blocks[2]) != 4 {
		t.Fatalf("tail block = %d samples, want 4", len(blocks[2]))
	}
}

func TestMaxAbsDiffLengthMismatch(t *testing.T) {
	t.Parallel()

	if _, err := MaxAbsDiff([]float64{1}, []float64{1, 2}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
