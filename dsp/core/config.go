package core

import (
	"errors"
	"fmt"
)

// Limits accepted by ProcessorConfig.Validate.
const (
	MinSampleRate = 8000.0
	MaxSampleRate = 384000.0
	MaxBlockSize  = 8192
	MaxChannels   = 2
)

// ErrInvalidConfig is returned by ProcessorConfig.Validate.
var ErrInvalidConfig = errors.New("core: invalid processor config")

// ProcessorConfig describes the stream a processor is prepared for.
type ProcessorConfig struct {
	SampleRate float64
	BlockSize  int
	Channels   int
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig)

// DefaultProcessorConfig returns the device defaults used when nothing else
// is known: stereo, 48 kHz, 256 frames.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		SampleRate: 48000,
		BlockSize:  256,
		Channels:   2,
	}
}

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithBlockSize sets the maximum frames per block.
func WithBlockSize(blockSize int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if blockSize > 0 {
			cfg.BlockSize = blockSize
		}
	}
}

// WithChannels sets the channel count.
func WithChannels(channels int) ProcessorOption {
	return func(cfg *ProcessorConfig) {
		if channels > 0 {
			cfg.Channels = channels
		}
	}
}

// ApplyProcessorOptions applies zero or more options to the default config.
func ApplyProcessorOptions(opts ...ProcessorOption) ProcessorConfig {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

// Validate reports whether cfg describes a stream the harness can run.
func (c ProcessorConfig) Validate() error {
	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %g outside [%g, %g]", ErrInvalidConfig, c.SampleRate, MinSampleRate, MaxSampleRate)
	}

	if c.BlockSize <= 0 || c.BlockSize > MaxBlockSize {
		return fmt.Errorf("%w: block size %d outside [1, %d]", ErrInvalidConfig, c.BlockSize, MaxBlockSize)
	}

	if c.Channels <= 0 || c.Channels > MaxChannels {
		return fmt.Errorf("%w: channel count %d outside [1, %d]", ErrInvalidConfig, c.Channels, MaxChannels)
	}

	return nil
}
