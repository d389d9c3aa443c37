// Package device drives a session from a host audio backend: a PortAudio
// duplex stream, an Oto playback stream fed by a synthetic input, or a
// headless ticker. Build with the headless tag to drop the cgo backends.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/dsp/signal"
	"github.com/cwbudde/algo-abtest/internal/config"
)

// ErrUnavailable is returned when a backend cannot be opened.
var ErrUnavailable = errors.New("device: backend unavailable")

// Callback processes one block of interleaved frames. It runs on the
// audio goroutine.
type Callback interface {
	ProcessInterleaved(in, out []float32, events *midi.Buffer)
}

// Stream runs a backend until its context is cancelled.
type Stream interface {
	Run(ctx context.Context) error
	Blocks() uint64
}

// Source synthesizes input for backends without a capture side.
type Source interface {
	FillInterleaved(dst []float32, channels int)
}

// Option configures a stream.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	queue   *midi.Queue
	source  Source
	monitor func(out []float32)
}

// WithLogger sets the stream logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMIDI drains q into the event buffer at every block start.
func WithMIDI(q *midi.Queue) Option {
	return func(o *options) { o.queue = q }
}

// WithSource replaces the input built from the device configuration.
func WithSource(src Source) Option {
	return func(o *options) { o.source = src }
}

// WithMonitor calls fn with every processed output block on the audio
// goroutine. fn must not block or retain out.
func WithMonitor(fn func(out []float32)) Option {
	return func(o *options) { o.monitor = fn }
}

// NewSource returns the synthetic input named by cfg.Input. Capture and
// silence both yield silence.
func NewSource(cfg config.Device) Source {
	switch cfg.Input {
	case config.InputSine:
		return signal.NewOscillator(cfg.InputHz, cfg.InputLevel, cfg.SampleRate)
	case config.InputNoise:
		return signal.NewNoise(cfg.InputLevel, cfg.Seed)
	default:
		return silence{}
	}
}

type silence struct{}

func (silence) FillInterleaved(dst []float32, _ int) { clear(dst) }

// Open returns a stream for cfg.Backend. Nothing touches the host audio
// system until Run.
func Open(cfg config.Device, cb Callback, opts ...Option) (Stream, error) {
	if cb == nil {
		return nil, errors.New("device: nil callback")
	}

	e := newEngine(cfg, cb, opts)

	switch cfg.Backend {
	case config.BackendHeadless:
		return &Headless{engine: e, out: make([]float32, len(e.in))}, nil
	case config.BackendOto:
		return newOto(e)
	case config.BackendPortAudio:
		return newPortAudio(e)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnavailable, cfg.Backend)
	}
}

// engine is the per-block driver shared by every backend.
type engine struct {
	cfg     config.Device
	cb      Callback
	logger  *slog.Logger
	queue   *midi.Queue
	events  *midi.Buffer
	source  Source
	monitor func([]float32)
	in      []float32
	blocks  atomic.Uint64
}

func newEngine(cfg config.Device, cb Callback, opts []Option) *engine {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if o.source == nil {
		o.source = NewSource(cfg)
	}

	return &engine{
		cfg:     cfg,
		cb:      cb,
		logger:  o.logger,
		queue:   o.queue,
		events:  midi.NewBuffer(midi.DefaultCapacity),
		source:  o.source,
		monitor: o.monitor,
		in:      make([]float32, cfg.BlockSize*cfg.Channels),
	}
}

// Blocks returns the number of blocks processed.
func (e *engine) Blocks() uint64 {
	return e.blocks.Load()
}

// period is the wall-clock length of one block.
func (e *engine) period() time.Duration {
	return time.Duration(float64(time.Second) * float64(e.cfg.BlockSize) / e.cfg.SampleRate)
}

// process runs one block of captured input.
func (e *engine) process(in, out []float32) {
	e.events.Clear()
	if e.queue != nil {
		e.queue.Drain(e.events)
	}

	e.cb.ProcessInterleaved(in, out, e.events)

	if e.monitor != nil {
		e.monitor(out)
	}

	e.blocks.Add(1)
}

// render runs one block of synthetic input. Blocks longer than the
// configured size come out silent.
func (e *engine) render(out []float32) {
	if len(out) > len(e.in) {
		clear(out)
		return
	}

	in := e.in[:len(out)]
	e.source.FillInterleaved(in, e.cfg.Channels)
	e.process(in, out)
}

// Headless clocks blocks from a ticker and discards the output. It needs
// no audio hardware.
type Headless struct {
	*engine
	out []float32
}

// Step processes one block immediately.
func (h *Headless) Step() {
	h.render(h.out)
}

// Run steps once per block period until ctx is done.
func (h *Headless) Run(ctx context.Context) error {
	h.logger.Info("headless stream started", "period", h.period())

	t := time.NewTicker(h.period())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("headless stream stopped", "blocks", h.Blocks())
			return nil
		case <-t.C:
			h.Step()
		}
	}
}
