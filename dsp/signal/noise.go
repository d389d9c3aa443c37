package signal

import "math/rand"

// Noise is a seeded white noise source for feeding a live stream block by
// block. The same seed yields the same sequence; it does not allocate
// after construction.
type Noise struct {
	rng       *rand.Rand
	seed      int64
	amplitude float64
}

// NewNoise returns a noise source in [-amplitude, amplitude].
func NewNoise(amplitude float64, seed int64) *Noise {
	return &Noise{rng: rand.New(rand.NewSource(seed)), seed: seed, amplitude: amplitude}
}

// Next returns the next sample.
func (n *Noise) Next() float64 {
	return (n.rng.Float64()*2 - 1) * n.amplitude
}

// FillInterleaved writes the same sample to every channel of each frame in
// dst. A trailing partial frame is left untouched.
func (n *Noise) FillInterleaved(dst []float32, channels int) {
	if channels <= 0 {
		return
	}

	frames := len(dst) / channels
	for i := range frames {
		y := float32(n.Next())
		for ch := range channels {
			dst[i*channels+ch] = y
		}
	}
}

// Reset restarts the sequence from the seed.
func (n *Noise) Reset() {
	n.rng.Seed(n.seed)
}
