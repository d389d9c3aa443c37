package buffer

// Audio is a planar block of float64 samples: one slice per channel, all of
// the same length.
type Audio struct {
	channels [][]float64
	frames   int
}

// New returns a zero-filled block with the given channel count and frame
// capacity. The block starts with frames == capacity.
func New(channels, capacity int) *Audio {
	if channels < 0 {
		channels = 0
	}
	if capacity < 0 {
		capacity = 0
	}

	backing := make([]float64, channels*capacity)
	a := &Audio{channels: make([][]float64, channels), frames: capacity}
	for ch := range a.channels {
		a.channels[ch] = backing[ch*capacity : (ch+1)*capacity : (ch+1)*capacity]
	}

	return a
}

// FromChannels wraps existing channel slices without copying. All slices
// should have the same length; the shortest one wins otherwise and sets
// the capacity.
func FromChannels(channels ...[]float64) *Audio {
	frames := 0
	for i, ch := range channels {
		if i == 0 || len(ch) < frames {
			frames = len(ch)
		}
	}

	a := &Audio{channels: make([][]float64, len(channels)), frames: frames}
	for i, ch := range channels {
		a.channels[i] = ch[:frames:frames]
	}

	return a
}

// Channels returns the channel count.
func (a *Audio) Channels() int {
	return len(a.channels)
}

// Frames returns the number of valid frames per channel.
func (a *Audio) Frames() int {
	return a.frames
}

// Cap returns the frame capacity.
func (a *Audio) Cap() int {
	if len(a.channels) == 0 {
		return 0
	}

	return cap(a.channels[0])
}

// Channel returns the samples of channel ch, limited to Frames().
func (a *Audio) Channel(ch int) []float64 {
	return a.channels[ch][:a.frames]
}

// SetFrames changes the valid frame count within capacity. It reports
// false, leaving the block unchanged, when n exceeds Cap().
func (a *Audio) SetFrames(n int) bool {
	if n < 0 || n > a.Cap() {
		return false
	}

	a.frames = n
	for ch := range a.channels {
		a.channels[ch] = a.channels[ch][:n]
	}

	return true
}

// Zero silences all valid frames.
func (a *Audio) Zero() {
	for _, ch := range a.channels {
		clear(ch[:a.frames])
	}
}

// CopyFrom copies the overlapping region of src into a and returns the
// number of frames copied per channel.
func (a *Audio) CopyFrom(src *Audio) int {
	n := min(a.frames, src.frames)
	chans := min(len(a.channels), len(src.channels))
	for ch := range chans {
		copy(a.channels[ch][:n], src.channels[ch][:n])
	}

	return n
}

// Equal reports whether a and b hold bit-identical samples.
func (a *Audio) Equal(b *Audio) bool {
	if a.frames != b.frames || len(a.channels) != len(b.channels) {
		return false
	}

	for ch := range a.channels {
		x, y := a.channels[ch][:a.frames], b.channels[ch][:b.frames]
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
	}

	return true
}

// Clone returns a deep copy with capacity equal to Frames().
func (a *Audio) Clone() *Audio {
	c := New(len(a.channels), a.frames)
	c.CopyFrom(a)

	return c
}
