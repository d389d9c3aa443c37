// Package meter provides a block level meter that the audio goroutine
// feeds and control goroutines read without locking.
package meter

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-abtest/dsp/buffer"
	"github.com/cwbudde/algo-abtest/dsp/core"
)

const defaultHoldDecay = 0.95

// Reading is one published meter value.
type Reading struct {
	Peak     float64 // absolute peak of the last block
	RMS      float64 // RMS over all channels of the last block
	PeakHold float64 // peak with per-block exponential release
}

// PeakDB returns the peak in dBFS.
func (r Reading) PeakDB() float64 { return core.LinearToDB(r.Peak) }

// RMSDB returns the RMS level in dBFS.
func (r Reading) RMSDB() float64 { return core.LinearToDB(r.RMS) }

// Option configures a Meter.
type Option func(*Meter)

// WithHoldDecay sets the per-block factor applied to the held peak.
// Values outside (0, 1) are ignored.
func WithHoldDecay(decay float64) Option {
	return func(m *Meter) {
		if decay > 0 && decay < 1 {
			m.decay = decay
		}
	}
}

// Meter measures peak and RMS per block. Process is called from a single
// goroutine and does not allocate; Read may be called from any goroutine.
type Meter struct {
	decay   float64
	squares []float64
	hold    float64

	peak     atomic.Uint64
	rms      atomic.Uint64
	peakHold atomic.Uint64
}

// New returns a meter with scratch space for blocks of up to maxBlock frames.
func New(maxBlock int, opts ...Option) *Meter {
	m := &Meter{decay: defaultHoldDecay}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.Resize(maxBlock)

	return m
}

// Resize reallocates scratch space. It must not run concurrently with Process.
func (m *Meter) Resize(maxBlock int) {
	m.squares = make([]float64, max(maxBlock, 0))
}

// Process measures buf and publishes the result. Blocks longer than the
// scratch space are measured on their leading frames only.
func (m *Meter) Process(buf *buffer.Audio) {
	n := min(buf.Frames(), len(m.squares))
	if n == 0 || buf.Channels() == 0 {
		return
	}

	sq := m.squares[:n]
	peak, sum := 0.0, 0.0

	for ch := range buf.Channels() {
		x := buf.Channel(ch)[:n]
		vecmath.MulBlock(sq, x, x)

		for i, v := range sq {
			sum += v
			if a := math.Abs(x[i]); a > peak {
				peak = a
			}
		}
	}

	m.hold = math.Max(peak, m.hold*m.decay)

	m.peak.Store(math.Float64bits(peak))
	m.rms.Store(math.Float64bits(math.Sqrt(sum / float64(n*buf.Channels()))))
	m.peakHold.Store(math.Float64bits(m.hold))
}

// Read returns the most recently published values.
func (m *Meter) Read() Reading {
	return Reading{
		Peak:     math.Float64frombits(m.peak.Load()),
		RMS:      math.Float64frombits(m.rms.Load()),
		PeakHold: math.Float64frombits(m.peakHold.Load()),
	}
}

// Reset clears the held peak and published values. It must not run
// concurrently with Process.
func (m *Meter) Reset() {
	m.hold = 0
	m.peak.Store(0)
	m.rms.Store(0)
	m.peakHold.Store(0)
}
