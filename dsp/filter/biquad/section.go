package biquad

import (
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-abtest/dsp/core"
)

// Coefficients holds the transfer function coefficients for a single
// second-order section. a0 is normalized to 1 and not stored.
//
// The sign convention follows Direct Form II Transposed:
//
//	y  = B0*x + d0
//	d0 = B1*x - A1*y + d1
//	d1 = B2*x - A2*y
type Coefficients struct {
	B0, B1, B2 float64 // feedforward (numerator)
	A1, A2     float64 // feedback (denominator)
}

// Identity returns unity-gain pass-through coefficients.
func Identity() Coefficients {
	return Coefficients{B0: 1}
}

// Response evaluates H(e^jw) at freq for the given sample rate.
func (c Coefficients) Response(freq, sampleRate float64) complex128 {
	w := 2 * math.Pi * freq / sampleRate
	z1 := cmplx.Exp(complex(0, -w))
	z2 := z1 * z1
	num := complex(c.B0, 0) + complex(c.B1, 0)*z1 + complex(c.B2, 0)*z2
	den := 1 + complex(c.A1, 0)*z1 + complex(c.A2, 0)*z2

	return num / den
}

// MagnitudeDB returns |H| in dB at freq.
func (c Coefficients) MagnitudeDB(freq, sampleRate float64) float64 {
	return core.LinearToDB(cmplx.Abs(c.Response(freq, sampleRate)))
}

// Section is a single biquad filter with coefficients and internal state.
type Section struct {
	Coefficients

	d0, d1 float64
}

// NewSection returns a Section initialized with the given coefficients
// and zero state.
func NewSection(c Coefficients) *Section {
	return &Section{Coefficients: c}
}

// SetCoefficients swaps the transfer function while keeping the delay line,
// so control changes do not click.
func (s *Section) SetCoefficients(c Coefficients) {
	s.Coefficients = c
}

// ProcessSample filters one input sample and returns the output.
func (s *Section) ProcessSample(x float64) float64 {
	y := s.B0*x + s.d0
	s.d0 = s.B1*x - s.A1*y + s.d1
	s.d1 = s.B2*x - s.A2*y

	return y
}

// ProcessBlock filters a block of samples in place. Zero-alloc.
func (s *Section) ProcessBlock(buf []float64) {
	b0, b1, b2 := s.B0, s.B1, s.B2
	a1, a2 := s.A1, s.A2
	d0, d1 := s.d0, s.d1

	i := 0
	n := len(buf)
	for ; i+1 < n; i += 2 {
		x0 := buf[i]
		y0 := b0*x0 + d0
		d0n := b1*x0 - a1*y0 + d1
		d1n := b2*x0 - a2*y0

		x1 := buf[i+1]
		y1 := b0*x1 + d0n
		d0 = b1*x1 - a1*y1 + d1n
		d1 = b2*x1 - a2*y1

		buf[i] = y0
		buf[i+1] = y1
	}

	if i < n {
		x := buf[i]
		y := b0*x + d0
		d0 = b1*x - a1*y + d1
		d1 = b2*x - a2*y
		buf[i] = y
	}

	s.d0, s.d1 = core.FlushDenormals(d0), core.FlushDenormals(d1)
}

// Reset clears the delay line to zero.
func (s *Section) Reset() {
	s.d0, s.d1 = 0, 0
}

// State returns the current delay-line state [d0, d1].
func (s *Section) State() [2]float64 {
	return [2]float64{s.d0, s.d1}
}
