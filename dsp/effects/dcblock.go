package effects

import "math"

// DCBlocker is a one-pole, one-zero highpass: y = x - x1 + R*y1.
type DCBlocker struct {
	r      float64
	x1, y1 float64
}

// NewDCBlocker returns a blocker with its pole placed for a cutoff of
// cutoffHz at sampleRate. A non-positive cutoff uses 10 Hz.
func NewDCBlocker(cutoffHz, sampleRate float64) *DCBlocker {
	d := &DCBlocker{}
	d.SetCutoff(cutoffHz, sampleRate)

	return d
}

// SetCutoff moves the pole without clearing state.
func (d *DCBlocker) SetCutoff(cutoffHz, sampleRate float64) {
	if cutoffHz <= 0 {
		cutoffHz = 10
	}
	if sampleRate <= 0 {
		sampleRate = 48000
	}

	d.r = math.Exp(-2 * math.Pi * cutoffHz / sampleRate)
}

// ProcessInPlace filters buf in place.
func (d *DCBlocker) ProcessInPlace(buf []float64) {
	x1, y1, r := d.x1, d.y1, d.r
	for i, x := range buf {
		y := x - x1 + r*y1
		x1, y1 = x, y
		buf[i] = y
	}

	if math.Abs(y1) < 1e-30 {
		y1 = 0
	}

	d.x1, d.y1 = x1, y1
}

// Reset clears the filter state.
func (d *DCBlocker) Reset() {
	d.x1, d.y1 = 0, 0
}
