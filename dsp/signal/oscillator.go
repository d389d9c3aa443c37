package signal

import "math"

// Oscillator is a phase-continuous sine source for feeding a live stream
// block by block. It does not allocate.
type Oscillator struct {
	phase     float64
	step      float64
	amplitude float64
}

// NewOscillator returns a sine oscillator at freqHz.
func NewOscillator(freqHz, amplitude, sampleRate float64) *Oscillator {
	o := &Oscillator{amplitude: amplitude}
	o.SetFrequency(freqHz, sampleRate)

	return o
}

// SetFrequency changes pitch without resetting phase.
func (o *Oscillator) SetFrequency(freqHz, sampleRate float64) {
	if sampleRate <= 0 {
		o.step = 0
		return
	}

	o.step = 2 * math.Pi * freqHz / sampleRate
}

// Next returns the next sample.
func (o *Oscillator) Next() float64 {
	y := o.amplitude * math.Sin(o.phase)
	o.phase += o.step
	if o.phase >= 2*math.Pi {
		o.phase -= 2 * math.Pi
	}

	return y
}

// FillInterleaved writes the same sample to every channel of each frame in
// dst. A trailing partial frame is left untouched.
func (o *Oscillator) FillInterleaved(dst []float32, channels int) {
	if channels <= 0 {
		return
	}

	frames := len(dst) / channels
	for i := range frames {
		y := float32(o.Next())
		for ch := range channels {
			dst[i*channels+ch] = y
		}
	}
}

// Reset returns the phase to zero.
func (o *Oscillator) Reset() {
	o.phase = 0
}
