package conv

import (
	"errors"
	"fmt"
	"math/bits"

	algofft "github.com/MeKo-Christian/algo-fft"
)

var (
	// ErrEmptyKernel is returned for a zero-length impulse response.
	ErrEmptyKernel = errors.New("conv: empty kernel")
	// ErrInvalidBlockSize is returned for a non-positive maximum block.
	ErrInvalidBlockSize = errors.New("conv: invalid block size")
	// ErrLengthMismatch is returned for blocks above the maximum.
	ErrLengthMismatch = errors.New("conv: block exceeds maximum")
)

// Streaming implements block-by-block FFT convolution using overlap-add.
// All buffers are allocated up front; ProcessInPlace does not allocate.
type Streaming struct {
	kernelFFT []complex128

	kernelLen int
	maxBlock  int
	fftSize   int

	plan *algofft.Plan[complex128]

	work []complex128
	tail []float64
}

// NewStreaming creates a convolver for kernel that accepts blocks of up to
// maxBlock samples.
func NewStreaming(kernel []float64, maxBlock int) (*Streaming, error) {
	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}
	if maxBlock <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, maxBlock)
	}

	fftSize := 1 << bits.Len(uint(maxBlock+len(kernel)-2))

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("conv: failed to create FFT plan: %w", err)
	}

	s := &Streaming{
		kernelFFT: make([]complex128, fftSize),
		kernelLen: len(kernel),
		maxBlock:  maxBlock,
		fftSize:   fftSize,
		plan:      plan,
		work:      make([]complex128, fftSize),
		tail:      make([]float64, len(kernel)-1),
	}

	padded := make([]complex128, fftSize)
	for i, v := range kernel {
		padded[i] = complex(v, 0)
	}

	if err := plan.Forward(s.kernelFFT, padded); err != nil {
		return nil, fmt.Errorf("conv: failed to compute kernel FFT: %w", err)
	}

	return s, nil
}

// ProcessInPlace convolves buf with the kernel, carrying the overlap tail
// into the next call. len(buf) must not exceed the maximum block size.
func (s *Streaming) ProcessInPlace(buf []float64) error {
	n := len(buf)
	if n > s.maxBlock {
		return fmt.Errorf("%w: block of %d exceeds %d", ErrLengthMismatch, n, s.maxBlock)
	}
	if n == 0 {
		return nil
	}

	for i := range s.work {
		if i < n {
			s.work[i] = complex(buf[i], 0)
		} else {
			s.work[i] = 0
		}
	}

	if err := s.plan.Forward(s.work, s.work); err != nil {
		return fmt.Errorf("conv: forward FFT failed: %w", err)
	}

	for i := range s.work {
		s.work[i] *= s.kernelFFT[i]
	}

	if err := s.plan.Inverse(s.work, s.work); err != nil {
		return fmt.Errorf("conv: inverse FFT failed: %w", err)
	}

	// Full result spans n+K-1 samples; the previous tail overlaps its head.
	tailLen := len(s.tail)
	for i := range tailLen {
		s.work[i] += complex(s.tail[i], 0)
	}

	for i := range n {
		buf[i] = real(s.work[i])
	}

	for i := range tailLen {
		s.tail[i] = real(s.work[n+i])
	}

	return nil
}

// Reset clears the overlap tail.
func (s *Streaming) Reset() {
	clear(s.tail)
}

// MaxBlock returns the largest accepted block length.
func (s *Streaming) MaxBlock() int {
	return s.maxBlock
}

// KernelLen returns the kernel length.
func (s *Streaming) KernelLen() int {
	return s.kernelLen
}

// FFTSize returns the FFT size.
func (s *Streaming) FFTSize() int {
	return s.fftSize
}
