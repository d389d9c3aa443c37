// Package router dispatches each audio block to the selected one of two
// processors. The audio side never locks or allocates: processors are
// published through atomic pointers and the selection is an atomic word
// read once per block, so a switch always lands on a block boundary.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
	"github.com/cwbudde/algo-abtest/dsp/core"
	"github.com/cwbudde/algo-abtest/measure/meter"
)

// ErrInvalidSlot is returned for slot values other than A and B.
var ErrInvalidSlot = errors.New("router: invalid slot")

// Slot names one of the two processor positions.
type Slot int32

const (
	SlotA Slot = iota
	SlotB
)

func (s Slot) String() string {
	switch s {
	case SlotA:
		return "A"
	case SlotB:
		return "B"
	default:
		return fmt.Sprintf("slot(%d)", int32(s))
	}
}

// Valid reports whether s is A or B.
func (s Slot) Valid() bool { return s == SlotA || s == SlotB }

// Other returns the opposite slot.
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}

	return SlotA
}

// Stats are cumulative block counters.
type Stats struct {
	Blocks      uint64 // blocks seen
	PassThrough uint64 // blocks emitted unprocessed because no usable processor was selected
	Faults      uint64 // blocks whose processor failed or panicked; the dry input was emitted
	Switches    uint64 // block boundaries at which the audible slot changed
	Crossfades  uint64 // switches rendered as a one-block crossfade
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger used on control goroutines.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithCrossfade enables a one-block linear crossfade on every switch.
func WithCrossfade(enabled bool) Option {
	return func(r *Router) { r.crossfade.Store(enabled) }
}

// WithMeterOptions passes options to the input and output meters.
func WithMeterOptions(opts ...meter.Option) Option {
	return func(r *Router) { r.meterOpts = opts }
}

type slotRef struct {
	p processor.Processor
}

// scratch is the per-stream working set. Prepare swaps in a new one so an
// in-flight block keeps using the set it loaded.
type scratch struct {
	channels int
	dry      *buffer.Audio
	old      *buffer.Audio
	up       []float64
	down     []float64
	rampLen  int
	in       *meter.Meter
	out      *meter.Meter
}

// Router owns the selection and the published processor pair.
type Router struct {
	logger    *slog.Logger
	meterOpts []meter.Option

	slots     [2]atomic.Pointer[slotRef]
	selection atomic.Int32
	crossfade atomic.Bool
	seq       atomic.Uint64 // odd while ProcessBlock runs
	work      atomic.Pointer[scratch]

	// Audio goroutine only.
	active Slot

	blocks      atomic.Uint64
	passThrough atomic.Uint64
	faults      atomic.Uint64
	switches    atomic.Uint64
	crossfades  atomic.Uint64

	mu       sync.Mutex
	attached [2]processor.Processor
	cfg      core.ProcessorConfig
}

// New returns a router selecting A with scratch sized for the defaults.
func New(opts ...Option) *Router {
	r := &Router{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(r)
	}

	cfg := core.ApplyProcessorOptions()
	r.cfg = cfg
	r.work.Store(r.newScratch(cfg.BlockSize, cfg.Channels))

	return r
}

func (r *Router) newScratch(blockSize, channels int) *scratch {
	return &scratch{
		channels: channels,
		dry:      buffer.New(channels, blockSize),
		old:      buffer.New(channels, blockSize),
		up:       make([]float64, blockSize),
		down:     make([]float64, blockSize),
		in:       meter.New(blockSize, r.meterOpts...),
		out:      meter.New(blockSize, r.meterOpts...),
	}
}

// Prepare sizes the router for the stream and prepares every attached
// processor. Failures are joined; a processor that fails stays attached
// and is passed through until prepared again.
func (r *Router) Prepare(sampleRate float64, blockSize, channels int) error {
	cfg := core.ProcessorConfig{SampleRate: sampleRate, BlockSize: blockSize, Channels: channels}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("router: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg != r.cfg {
		r.work.Store(r.newScratch(blockSize, channels))
		r.cfg = cfg
	}

	var errs []error

	for i, p := range r.attached {
		if p == nil {
			continue
		}

		if err := p.Prepare(sampleRate, blockSize, channels); err != nil {
			r.logger.Warn("prepare failed", "slot", Slot(i), "processor", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("slot %s: %w", Slot(i), err))
		}
	}

	return errors.Join(errs...)
}

// Config returns the stream configuration of the last Prepare.
func (r *Router) Config() core.ProcessorConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cfg
}

// Attach sets the processor for slot without publishing it. A nil
// processor detaches.
func (r *Router) Attach(slot Slot, p processor.Processor) error {
	if !slot.Valid() {
		return ErrInvalidSlot
	}

	r.mu.Lock()
	r.attached[slot] = p
	r.mu.Unlock()

	return nil
}

// Attached returns the processor attached to slot.
func (r *Router) Attached(slot Slot) processor.Processor {
	if !slot.Valid() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.attached[slot]
}

// Publish makes the attached pair visible to the audio goroutine.
func (r *Router) Publish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, p := range r.attached {
		if p == nil {
			r.slots[i].Store(nil)
			continue
		}

		r.slots[i].Store(&slotRef{p: p})
	}
}

// Unpublish hides both processors from the audio goroutine and waits until
// no block that could still hold them is running. After it returns the
// caller may release or close the processors.
func (r *Router) Unpublish(ctx context.Context) error {
	r.slots[SlotA].Store(nil)
	r.slots[SlotB].Store(nil)

	return r.Quiesce(ctx)
}

// Quiesce waits for the block running at call time, if any, to finish.
func (r *Router) Quiesce(ctx context.Context) error {
	s := r.seq.Load()
	if s%2 == 0 {
		return nil
	}

	ticker := time.NewTicker(50 * time.Microsecond)
	defer ticker.Stop()

	for r.seq.Load() == s {
		select {
		case <-ctx.Done():
			return fmt.Errorf("router: quiesce: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	return nil
}

// Select makes slot audible from the next block.
func (r *Router) Select(slot Slot) error {
	if !slot.Valid() {
		return ErrInvalidSlot
	}

	r.selection.Store(int32(slot))

	return nil
}

// Selection returns the requested slot.
func (r *Router) Selection() Slot {
	return Slot(r.selection.Load())
}

// Toggle flips the selection and returns the new slot.
func (r *Router) Toggle() Slot {
	for {
		cur := r.selection.Load()
		next := int32(Slot(cur).Other())
		if r.selection.CompareAndSwap(cur, next) {
			return Slot(next)
		}
	}
}

// SetCrossfade enables or disables the switch crossfade.
func (r *Router) SetCrossfade(enabled bool) {
	r.crossfade.Store(enabled)
}

// Crossfade reports whether switches are crossfaded.
func (r *Router) Crossfade() bool {
	return r.crossfade.Load()
}

// Stats returns the block counters.
func (r *Router) Stats() Stats {
	return Stats{
		Blocks:      r.blocks.Load(),
		PassThrough: r.passThrough.Load(),
		Faults:      r.faults.Load(),
		Switches:    r.switches.Load(),
		Crossfades:  r.crossfades.Load(),
	}
}

// Meters returns the input and output readings of the last block.
func (r *Router) Meters() (in, out meter.Reading) {
	w := r.work.Load()
	return w.in.Read(), w.out.Read()
}
