// Package hosted implements processor.Processor for third-party plugin
// binaries reached through a Loader.
package hosted

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
	"github.com/cwbudde/algo-abtest/dsp/core"
)

// Option configures a hosted processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// Processor adapts a Plugin. Parameter ids are assigned once at load and
// mapped to plugin indices here; callers never see indices.
type Processor struct {
	id      string
	plugin  Plugin
	name    string
	params  *processor.ParamSet
	index   []int // param -> plugin index
	byIndex []int // plugin index -> param, -1 if hidden
	logger  *slog.Logger

	prepared atomic.Bool
	closed   atomic.Bool
	cfg      core.ProcessorConfig

	notify atomic.Pointer[func(id string, value float64)]

	// pushing holds, per plugin index, the bits of the value being sent at
	// block start, or noPush.
	pushing []atomic.Uint64
}

var noPush = math.Float64bits(math.NaN())

// Load instantiates path with loader. Errors are *processor.LoadError
// values.
func Load(ctx context.Context, path string, loader Loader, opts ...Option) (*Processor, error) {
	plugin, err := loader.Load(ctx, path)
	if err != nil {
		return nil, processor.NewLoadError(processor.KindHostedBinary, path, err)
	}

	if err := ctx.Err(); err != nil {
		_ = plugin.Close()
		return nil, processor.NewLoadError(processor.KindHostedBinary, path, err)
	}

	return New(processor.StableID(processor.KindHostedBinary, path), plugin, opts...), nil
}

// New wraps an instantiated plugin.
func New(id string, plugin Plugin, opts ...Option) *Processor {
	p := &Processor{
		id:     id,
		plugin: plugin,
		name:   plugin.Name(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}

	infos := plugin.Parameters()
	ids := assignIDs(infos)
	specs := make([]processor.Parameter, len(infos))

	for i, info := range infos {
		name := info.Name
		if name == "" {
			name = ids[i]
		}

		specs[i] = processor.Parameter{ID: ids[i], Name: name, Default: info.Default, Label: info.Label}
	}

	p.params = processor.NewParamSet(specs, p.logger.With("processor", p.name))
	p.index = make([]int, p.params.Len())
	p.byIndex = make([]int, len(infos))
	p.pushing = make([]atomic.Uint64, len(infos))

	for i, id := range ids {
		p.byIndex[i] = -1
		p.pushing[i].Store(noPush)
		if pi, ok := p.params.Lookup(id); ok {
			p.index[pi] = i
			p.byIndex[i] = pi
			p.params.Store(pi, core.Clamp01(plugin.GetParameter(i)))
		}
	}

	if l, ok := plugin.(Listener); ok {
		l.SetParameterListener(p.pluginChanged)
	}

	return p
}

func (p *Processor) ID() string { return p.id }

func (p *Processor) Name() string { return p.name }

func (p *Processor) Kind() processor.Kind { return processor.KindHostedBinary }

func (p *Processor) Loaded() bool { return !p.closed.Load() }

func (p *Processor) Prepared() bool { return p.prepared.Load() }

// Prepare forwards the stream configuration to the plugin. A plugin that
// refuses stays Loaded and passes audio through.
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

	if err := p.plugin.Prepare(sampleRate, blockSize, channels); err != nil {
		p.logger.Warn("plugin refused preparation", "processor", p.name, "error", err)
		return fmt.Errorf("%w: %w", processor.ErrPreparationFailed, err)
	}

	p.cfg = cfg
	p.params.Invalidate()
	p.prepared.Store(true)

	return nil
}

// Process pushes staged parameter values to the plugin, then lets it
// transform buf.
func (p *Processor) Process(buf *buffer.Audio, events *midi.Buffer) error {
	if !p.prepared.Load() || buf.Frames() > p.cfg.BlockSize || buf.Channels() != p.cfg.Channels {
		return nil
	}

	if p.params.Pending() {
		for i := range p.params.Len() {
			if v, changed := p.params.Changed(i); changed {
				idx := p.index[i]
				p.pushing[idx].Store(math.Float64bits(v))
				p.plugin.SetParameter(idx, v)
				p.pushing[idx].Store(noPush)
			}
		}
	}

	if err := p.plugin.Process(buf, events); err != nil {
		return processor.ErrProcessingFault
	}

	return nil
}

func (p *Processor) Release() {
	if p.prepared.Swap(false) {
		p.plugin.Release()
		p.cfg = core.ProcessorConfig{}
	}
}

// Close releases and destroys the plugin instance.
func (p *Processor) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	p.Release()

	if l, ok := p.plugin.(Listener); ok {
		l.SetParameterListener(nil)
	}

	if err := p.plugin.Close(); err != nil {
		return fmt.Errorf("hosted: close %s: %w", p.name, err)
	}

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

// OnParameterChange registers fn for changes made by the plugin's editor.
// Echoes of values set through SetParameter are not reported.
func (p *Processor) OnParameterChange(fn func(id string, value float64)) {
	if fn == nil {
		p.notify.Store(nil)
		return
	}

	p.notify.Store(&fn)
}

// HasEditor reports whether the plugin provides an editor.
func (p *Processor) HasEditor() bool {
	e, ok := p.plugin.(Editor)
	return ok && e.HasEditor()
}

// OpenEditor opens the plugin's editor.
func (p *Processor) OpenEditor() error {
	if !p.HasEditor() {
		return ErrNoEditor
	}

	return p.plugin.(Editor).OpenEditor()
}

// CloseEditor closes the plugin's editor if it has one.
func (p *Processor) CloseEditor() {
	if p.HasEditor() {
		p.plugin.(Editor).CloseEditor()
	}
}

func (p *Processor) pluginChanged(index int, value float64) {
	if index < 0 || index >= len(p.byIndex) {
		return
	}

	pi := p.byIndex[index]
	if pi < 0 {
		return
	}

	value = core.Clamp01(value)

	// The plugin echoing the value pushed at block start.
	if p.pushing[index].Load() == math.Float64bits(value) {
		return
	}

	if p.params.Load(pi) == value {
		return
	}

	p.params.Store(pi, value)

	if fn := p.notify.Load(); fn != nil {
		(*fn)(p.params.ID(pi), value)
	}
}

var (
	_ processor.Processor = (*Processor)(nil)
	_ processor.Notifier  = (*Processor)(nil)
)
