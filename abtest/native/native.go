// Package native implements processor.Processor for DSP graphs compiled
// from schematic files.
package native

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
	"github.com/cwbudde/algo-abtest/dsp/core"
)

// DefaultBypassControl is the control id that bypasses the whole graph
// when it is at or above one half.
const DefaultBypassControl = "bypass"

// Option configures a native processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithBypassControl changes which control id acts as the bypass switch.
// An empty id disables the behavior.
func WithBypassControl(id string) Option {
	return func(p *Processor) { p.bypassID = id }
}

// Processor runs a compiled kernel. Parameter writes are staged and reach
// the kernel at the start of the next block.
type Processor struct {
	id       string
	name     string
	kernel   Kernel
	params   *processor.ParamSet
	controls []int // param index -> kernel control index
	logger   *slog.Logger
	bypassID string

	prepared atomic.Bool
	closed   atomic.Bool
	cfg      core.ProcessorConfig

	// Audio goroutine only.
	bypassIndex int
	bypassed    bool
}

// Load compiles path with compiler and returns a loaded processor. Errors
// are *processor.LoadError values.
func Load(ctx context.Context, path string, compiler Compiler, opts ...Option) (*Processor, error) {
	compiled, err := compiler.Compile(ctx, path)
	if err != nil {
		return nil, processor.NewLoadError(processor.KindNativeDSP, path, err)
	}

	return New(processor.StableID(processor.KindNativeDSP, path), compiled, opts...), nil
}

// New wraps an already compiled kernel.
func New(id string, compiled *Compiled, opts ...Option) *Processor {
	p := &Processor{
		id:          id,
		name:        compiled.Name,
		kernel:      compiled.Kernel,
		logger:      slog.New(slog.DiscardHandler),
		bypassID:    DefaultBypassControl,
		bypassIndex: -1,
	}
	for _, opt := range opts {
		opt(p)
	}

	specs := make([]processor.Parameter, len(compiled.Controls))
	for i, c := range compiled.Controls {
		specs[i] = processor.Parameter{ID: c.ID, Name: c.Name, Default: c.Default, Label: c.Label}
	}

	p.params = processor.NewParamSet(specs, p.logger.With("processor", p.name))
	p.controls = make([]int, p.params.Len())
	for i := range p.controls {
		p.controls[i] = -1
	}

	for ci, c := range compiled.Controls {
		if i, ok := p.params.Lookup(c.ID); ok && p.controls[i] < 0 {
			p.controls[i] = ci
		}
	}

	if i, ok := p.params.Lookup(p.bypassID); ok && p.bypassID != "" {
		p.bypassIndex = i
	}

	return p
}

func (p *Processor) ID() string { return p.id }

func (p *Processor) Name() string { return p.name }

func (p *Processor) Kind() processor.Kind { return processor.KindNativeDSP }

func (p *Processor) Loaded() bool { return !p.closed.Load() }

func (p *Processor) Prepared() bool { return p.prepared.Load() }

// Prepare builds kernel state for the stream.
func (p *Processor) Prepare(sampleRate float64, blockSize, channels int) error {
	if p.closed.Load() {
		return processor.ErrClosed
	}

	cfg := core.ProcessorConfig{SampleRate: sampleRate, BlockSize: blockSize, Channels: channels}
	if p.prepared.Load() && cfg == p.cfg {
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", processor.ErrPreparationFailed, err)
	}

	p.Release()

	if err := p.kernel.Prepare(sampleRate, blockSize, channels); err != nil {
		p.kernel.Release()
		return fmt.Errorf("%w: %w", processor.ErrPreparationFailed, err)
	}

	p.cfg = cfg
	p.bypassed = false
	p.params.Invalidate()
	p.prepared.Store(true)

	p.logger.Debug("native processor prepared", "processor", p.name,
		"sample_rate", sampleRate, "block_size", blockSize, "channels", channels)

	return nil
}

// Process absorbs staged parameter changes, then runs the kernel over buf.
func (p *Processor) Process(buf *buffer.Audio, _ *midi.Buffer) error {
	if !p.prepared.Load() || buf.Frames() > p.cfg.BlockSize || buf.Channels() != p.cfg.Channels {
		return nil
	}

	if p.params.Pending() {
		for i := range p.params.Len() {
			v, changed := p.params.Changed(i)
			if !changed {
				continue
			}

			if i == p.bypassIndex {
				p.bypassed = v >= 0.5
			}

			p.kernel.SetControl(p.controls[i], v)
		}
	}

	if p.bypassed {
		return nil
	}

	p.kernel.Process(buf)

	return nil
}

// Release drops kernel state; the processor stays loaded.
func (p *Processor) Release() {
	if p.prepared.Swap(false) {
		p.kernel.Release()
		p.cfg = core.ProcessorConfig{}
	}
}

// Close releases the processor for good.
func (p *Processor) Close() error {
	p.Release()
	p.closed.Store(true)

	return nil
}

func (p *Processor) Parameters() []processor.Parameter {
	return p.params.Parameters()
}

func (p *Processor) GetParameter(id string) float64 {
	return p.params.Get(id)
}

func (p *Processor) SetParameter(id string, value float64) error {
	return p.params.Set(id, value)
}

var _ processor.Processor = (*Processor)(nil)
