package buffer

import "testing"

func TestNewZeroFilled(t *testing.T) {
	t.Parallel()

	a := New(2, 8)
	if a.Channels() != 2 || a.Frames() != 8 || a.Cap() != 8 {
		t.Fatalf("shape = %dx%d cap %d, want 2x8 cap 8", a.Channels(), a.Frames(), a.Cap())
	}
	for ch := range a.Channels() {
		for i, v := range a.Channel(ch) {
			if v != 0 {
				t.Fatalf("Channel(%d)[%d] = %v, want 0", ch, i, v)
			}
		}
	}
}

func TestNewNegativeShape(t *testing.T) {
	t.Parallel()

	a := New(-1, -1)
	if a.Channels() != 0 || a.Cap() != 0 {
		t.Fatalf("shape = %d cap %d, want empty", a.Channels(), a.Cap())
	}
}

func TestChannelsDoNotAlias(t *testing.T) {
	t.Parallel()

	a := New(2, 4)
	a.SetFrames(4)
	left := a.Channel(0)
	left = append(left, 1) // must reallocate, not spill into channel 1
	_ = left
	if a.Channel(1)[0] != 0 {
		t.Fatal("append on channel 0 overwrote channel 1")
	}
}

func TestSetFramesWithinCapacity(t *testing.T) {
	t.Parallel()

	a := New(1, 16)
	if !a.SetFrames(4) {
		t.Fatal("SetFrames(4) = false, want true")
	}
	if len(a.Channel(0)) != 4 {
		t.Fatalf("len = %d, want 4", len(a.Channel(0)))
	}
	if a.SetFrames(17) {
		t.Fatal("SetFrames beyond capacity succeeded")
	}
	if a.Frames() != 4 {
		t.Fatalf("Frames() = %d after failed resize, want 4", a.Frames())
	}
	if !a.SetFrames(16) || a.Frames() != 16 {
		t.Fatal("SetFrames back to capacity failed")
	}
}

func TestFromChannelsSharesMemory(t *testing.T) {
	t.Parallel()

	l := []float64{1, 2, 3}
	r := []float64{4, 5, 6}
	a := FromChannels(l, r)
	a.Channel(1)[0] = 99
	if r[0] != 99 {
		t.Fatal("FromChannels should share underlying memory")
	}
}

func TestCopyFromAndEqual(t *testing.T) {
	t.Parallel()

	src := FromChannels([]float64{1, 2}, []float64{3, 4})
	dst := New(2, 2)
	if n := dst.CopyFrom(src); n != 2 {
		t.Fatalf("CopyFrom = %d, want 2", n)
	}
	if !dst.Equal(src) {
		t.Fatal("copy differs from source")
	}
	dst.Channel(0)[1] = 0
	if dst.Equal(src) {
		t.Fatal("Equal ignored a differing sample")
	}
	if c := src.Clone(); !c.Equal(src) {
		t.Fatal("Clone differs from source")
	}
}

func TestInterleaveRoundTrip(t *testing.T) {
	t.Parallel()

	in := []float32{0.1, -0.1, 0.2, -0.2, 0.3, -0.3}
	a := New(2, 4)
	if !a.Deinterleave(in) {
		t.Fatal("Deinterleave failed")
	}
	if a.Frames() != 3 {
		t.Fatalf("Frames() = %d, want 3", a.Frames())
	}
	if a.Channel(1)[2] != float64(float32(-0.3)) {
		t.Fatalf("right[2] = %v", a.Channel(1)[2])
	}

	out := make([]float32, len(in))
	if n := a.Interleave(out); n != 3 {
		t.Fatalf("Interleave = %d, want 3", n)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDeinterleaveTooLong(t *testing.T) {
	t.Parallel()

	a := New(1, 2)
	if a.Deinterleave([]float32{1, 2, 3}) {
		t.Fatal("Deinterleave beyond capacity succeeded")
	}
}

func TestDeinterleaveAllocs(t *testing.T) {
	in := make([]float32, 512)
	out := make([]float32, 512)
	a := New(2, 256)
	allocs := testing.AllocsPerRun(100, func() {
		a.Deinterleave(in)
		a.Interleave(out)
	})
	if allocs != 0 {
		t.Fatalf("allocs = %v, want 0", allocs)
	}
}
