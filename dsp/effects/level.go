package effects

// Level applies a gain that glides to its target over one block, so control
// changes made between blocks never step the waveform.
type Level struct {
	current float64
	target  float64
}

// NewLevel returns a Level fixed at gain.
func NewLevel(gain float64) *Level {
	return &Level{current: gain, target: gain}
}

// SetTarget schedules gain to be reached at the end of the next block.
func (l *Level) SetTarget(gain float64) {
	l.target = gain
}

// Target returns the scheduled gain.
func (l *Level) Target() float64 {
	return l.target
}

// ProcessInPlace scales buf, ramping linearly when the target moved.
func (l *Level) ProcessInPlace(buf []float64) {
	if l.current == l.target || len(buf) == 0 {
		g := l.target
		for i := range buf {
			buf[i] *= g
		}

		return
	}

	step := (l.target - l.current) / float64(len(buf))
	g := l.current
	for i := range buf {
		g += step
		buf[i] *= g
	}

	l.current = l.target
}

// Reset snaps the current gain to the target.
func (l *Level) Reset() {
	l.current = l.target
}
