package effectchain

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-abtest/dsp/buffer"
	"github.com/cwbudde/algo-abtest/dsp/core"
)

// Errors returned by Compile.
var (
	ErrUnknownControl = errors.New("effectchain: binding references unknown control")
	ErrUnboundParam   = errors.New("effectchain: node does not accept bound parameter")
)

// trialContext is used to configure every node once during Compile.
var trialContext = Context{SampleRate: 48000, MaxBlock: 64}

type target struct {
	node int
	key  string
	bind Binding
}

// Program is a validated, compiled schematic. It is immutable and may
// create any number of kernels.
type Program struct {
	Name     string
	Controls []ControlSpec

	graph    *compiledGraph
	registry *Registry
	targets  [][]target
}

// Compile validates s against registry and resolves its control bindings.
// A nil registry uses DefaultRegistry.
func Compile(s *Schematic, registry *Registry) (*Program, error) {
	if registry == nil {
		registry = DefaultRegistry()
	}

	g, err := parseGraph(s)
	if err != nil {
		return nil, err
	}

	p := &Program{
		Name:     s.Name,
		Controls: append([]ControlSpec(nil), s.Controls...),
		graph:    g,
		registry: registry,
		targets:  make([][]target, len(s.Controls)),
	}

	for i, node := range g.Nodes {
		for key, b := range node.Bind {
			ci, ok := s.ControlIndex(b.Control)
			if !ok {
				return nil, fmt.Errorf("%w: node %q param %q -> %q", ErrUnknownControl, node.ID, key, b.Control)
			}

			p.targets[ci] = append(p.targets[ci], target{node: i, key: key, bind: b})
		}
	}

	trial, err := newChain(trialContext, g, registry)
	if err != nil {
		return nil, err
	}

	for ci, ts := range p.targets {
		for _, t := range ts {
			if !trial.setParam(t.node, t.key, t.bind.Map(p.Controls[ci].Default)) {
				return nil, fmt.Errorf("%w: node %q param %q", ErrUnboundParam, g.Nodes[t.node].ID, t.key)
			}
		}
	}

	return p, nil
}

// NewKernel returns an unprepared kernel with every control at its default.
func (p *Program) NewKernel() *Kernel {
	values := make([]float64, len(p.Controls))
	for i, c := range p.Controls {
		values[i] = c.Default
	}

	return &Kernel{prog: p, values: values}
}

// Kernel is one runnable instance of a Program: a chain per channel plus
// the current normalized control values.
type Kernel struct {
	prog   *Program
	values []float64
	ctx    Context
	chains []*Chain
}

// Prepare builds fresh per-channel chains for the stream and applies the
// current control values. Node state starts cleared.
func (k *Kernel) Prepare(sampleRate float64, maxBlock, channels int) error {
	ctx := Context{SampleRate: sampleRate, MaxBlock: maxBlock}
	chains := make([]*Chain, channels)

	for ch := range chains {
		c, err := newChain(ctx, k.prog.graph, k.prog.registry)
		if err != nil {
			return err
		}

		chains[ch] = c
	}

	k.ctx = ctx
	k.chains = chains

	for i, v := range k.values {
		k.apply(i, v)
	}

	k.Reset()

	return nil
}

// Prepared reports whether Prepare succeeded since the last Release.
func (k *Kernel) Prepared() bool {
	return k.chains != nil
}

// SetControl sets control i to the normalized value v, clamped to [0, 1].
// Out-of-range indices are ignored.
func (k *Kernel) SetControl(i int, v float64) {
	if i < 0 || i >= len(k.values) {
		return
	}

	v = core.Clamp01(v)
	k.values[i] = v
	k.apply(i, v)
}

// Control returns the normalized value of control i.
func (k *Kernel) Control(i int) float64 {
	if i < 0 || i >= len(k.values) {
		return 0
	}

	return k.values[i]
}

func (k *Kernel) apply(i int, v float64) {
	for _, t := range k.prog.targets[i] {
		mapped := t.bind.Map(v)
		for _, c := range k.chains {
			c.setParam(t.node, t.key, mapped)
		}
	}
}

// Process runs each channel of buf through its chain. Blocks with more
// frames than the prepared maximum, and channels without a chain, pass
// through unchanged.
func (k *Kernel) Process(buf *buffer.Audio) {
	if buf.Frames() > k.ctx.MaxBlock {
		return
	}

	for ch, c := range k.chains {
		if ch >= buf.Channels() {
			break
		}

		c.Process(buf.Channel(ch))
	}
}

// Reset clears node state without touching control values.
func (k *Kernel) Reset() {
	for _, c := range k.chains {
		c.Reset()
	}
}

// Release drops the per-channel chains.
func (k *Kernel) Release() {
	k.chains = nil
	k.ctx = Context{}
}
