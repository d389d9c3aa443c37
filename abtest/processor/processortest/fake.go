// Package processortest provides a scriptable in-memory Processor for
// tests of the router, synchronizer and session controller.
package processortest

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
)

// Fault selects how Process misbehaves.
type Fault int32

const (
	FaultNone Fault = iota
	FaultError
	FaultPanic
	// FaultScribble corrupts the buffer and then returns an error.
	FaultScribble
)

// GainParam is the parameter id that scales the Fake's output.
const GainParam = "gain"

// Fake multiplies audio by a fixed gain times its "gain" parameter (when
// declared) and counts lifecycle calls.
type Fake struct {
	id    string
	name  string
	kind  processor.Kind
	gain  float64
	specs []processor.Parameter

	params *processor.ParamSet

	prepared atomic.Bool
	closed   atomic.Bool
	fault    atomic.Int32

	PrepareErr error

	PrepareCalls atomic.Int64
	ReleaseCalls atomic.Int64
	CloseCalls   atomic.Int64
	ProcessCalls atomic.Int64
	EventsSeen   atomic.Int64

	sampleRate float64
	blockSize  int
	channels   int
	paramGain  float64
	gainIndex  int

	mu       sync.Mutex
	listener func(id string, value float64)
	onSet    func(id string, value float64)
}

// Option configures a Fake.
type Option func(*Fake)

// WithGain sets the fixed output gain (default 1).
func WithGain(g float64) Option {
	return func(f *Fake) { f.gain = g }
}

// WithKind sets the reported kind (default native).
func WithKind(k processor.Kind) Option {
	return func(f *Fake) { f.kind = k }
}

// WithParams declares the parameter list.
func WithParams(params ...processor.Parameter) Option {
	return func(f *Fake) { f.specs = params }
}

// WithOnSet installs a hook that runs after every successful
// SetParameter, on the caller's goroutine.
func WithOnSet(fn func(id string, value float64)) Option {
	return func(f *Fake) { f.onSet = fn }
}

// New returns a loaded, unprepared Fake.
func New(id string, opts ...Option) *Fake {
	f := &Fake{id: id, name: id, kind: processor.KindNativeDSP, gain: 1, gainIndex: -1}
	for _, opt := range opts {
		opt(f)
	}

	f.params = processor.NewParamSet(f.specs, nil)
	if i, ok := f.params.Lookup(GainParam); ok {
		f.gainIndex = i
	}

	return f
}

// P is shorthand for a parameter spec.
func P(id, name string, def float64) processor.Parameter {
	return processor.Parameter{ID: id, Name: name, Default: def}
}

func (f *Fake) ID() string { return f.id }

func (f *Fake) Name() string { return f.name }

func (f *Fake) Kind() processor.Kind { return f.kind }

func (f *Fake) Loaded() bool { return !f.closed.Load() }

func (f *Fake) Prepared() bool { return f.prepared.Load() }

// Closed reports whether Close ran.
func (f *Fake) Closed() bool { return f.closed.Load() }

// SetFault makes subsequent Process calls misbehave.
func (f *Fake) SetFault(fault Fault) { f.fault.Store(int32(fault)) }

// SampleRate returns the prepared sample rate.
func (f *Fake) SampleRate() float64 { return f.sampleRate }

// BlockSize returns the prepared block size.
func (f *Fake) BlockSize() int { return f.blockSize }

func (f *Fake) Parameters() []processor.Parameter { return f.params.Parameters() }

func (f *Fake) Prepare(sampleRate float64, blockSize, channels int) error {
	if f.closed.Load() {
		return processor.ErrClosed
	}

	if f.prepared.Load() && f.sampleRate == sampleRate && f.blockSize == blockSize && f.channels == channels {
		return nil
	}

	f.PrepareCalls.Add(1)

	if f.PrepareErr != nil {
		f.prepared.Store(false)
		return fmt.Errorf("%w: %w", processor.ErrPreparationFailed, f.PrepareErr)
	}

	f.sampleRate, f.blockSize, f.channels = sampleRate, blockSize, channels
	f.params.Invalidate()
	f.prepared.Store(true)

	return nil
}

func (f *Fake) Release() {
	if f.prepared.Swap(false) {
		f.ReleaseCalls.Add(1)
	}
}

func (f *Fake) Close() error {
	f.Release()
	if f.closed.Swap(true) {
		return nil
	}

	f.CloseCalls.Add(1)

	return nil
}

var errInjected = errors.New("injected fault")

func (f *Fake) Process(buf *buffer.Audio, events *midi.Buffer) error {
	if !f.prepared.Load() || buf.Frames() > f.blockSize || buf.Channels() > f.channels {
		return nil
	}

	f.ProcessCalls.Add(1)
	f.EventsSeen.Add(int64(events.Len()))

	switch Fault(f.fault.Load()) {
	case FaultError:
		return fmt.Errorf("%w: %w", processor.ErrProcessingFault, errInjected)
	case FaultPanic:
		panic("processortest: injected panic")
	case FaultScribble:
		for ch := range buf.Channels() {
			for i := range buf.Channel(ch) {
				buf.Channel(ch)[i] = 1e9
			}
		}

		return processor.ErrProcessingFault
	}

	if f.params.Pending() {
		for i := range f.params.Len() {
			if v, ok := f.params.Changed(i); ok && i == f.gainIndex {
				f.paramGain = v
			}
		}
	}

	g := f.gain
	if f.gainIndex >= 0 {
		g *= f.paramGain
	}

	for ch := range buf.Channels() {
		x := buf.Channel(ch)
		for i := range x {
			x[i] *= g
		}
	}

	return nil
}

func (f *Fake) GetParameter(id string) float64 {
	return f.params.Get(id)
}

func (f *Fake) SetParameter(id string, value float64) error {
	err := f.params.Set(id, value)
	if err != nil && !errors.Is(err, processor.ErrDomainViolation) {
		return err
	}

	if f.onSet != nil {
		f.onSet(id, f.params.Get(id))
	}

	return err
}

// OnParameterChange implements processor.Notifier.
func (f *Fake) OnParameterChange(fn func(id string, value float64)) {
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
}

// EditorChange simulates the processor's own surface changing a parameter:
// the value is stored and the registered listener is called.
func (f *Fake) EditorChange(id string, value float64) {
	if err := f.params.Set(id, value); err != nil && !errors.Is(err, processor.ErrDomainViolation) {
		return
	}

	f.mu.Lock()
	fn := f.listener
	f.mu.Unlock()

	if fn != nil {
		fn(id, f.params.Get(id))
	}
}

var (
	_ processor.Processor = (*Fake)(nil)
	_ processor.Notifier  = (*Fake)(nil)
)
