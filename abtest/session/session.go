// Package session owns the two processor slots and drives the router and
// parameter synchronizer through the PreConfigured/Configured phases.
//
// The controller is Configured exactly when both slots hold a loaded
// processor. Entering Configured prepares each processor once at the
// device settings, rebuilds the parameter surface once and publishes the
// pair to the audio goroutine. Anything that removes a processor first
// unpublishes and waits for the audio goroutine to leave the current block.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/abtest/paramsync"
	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/abtest/router"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
	"github.com/cwbudde/algo-abtest/dsp/core"
)

var (
	// ErrNotConfigured is returned by Select and Toggle unless both slots
	// are loaded.
	ErrNotConfigured = errors.New("session: not configured")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session: closed")
)

// Phase is the controller state.
type Phase int32

const (
	PhasePreConfigured Phase = iota
	PhaseConfigured
)

func (p Phase) String() string {
	if p == PhaseConfigured {
		return "configured"
	}

	return "pre-configured"
}

// Device describes the host audio stream.
type Device struct {
	SampleRate float64
	BlockSize  int
	Channels   int
}

func (d Device) config() core.ProcessorConfig {
	return core.ProcessorConfig{SampleRate: d.SampleRate, BlockSize: d.BlockSize, Channels: d.Channels}
}

// Loader builds loaded processors from source paths. *factory.Factory
// implements it.
type Loader interface {
	Load(ctx context.Context, path string) (processor.Processor, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger for the controller and the router and
// synchronizer it creates.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDevice sets the initial device configuration (default 48 kHz, 256
// frames, stereo).
func WithDevice(d Device) Option {
	return func(c *Controller) { c.device = d }
}

// WithRouterOptions passes options to the router.
func WithRouterOptions(opts ...router.Option) Option {
	return func(c *Controller) { c.routerOpts = append(c.routerOpts, opts...) }
}

// WithSyncOptions passes options to the synchronizer.
func WithSyncOptions(opts ...paramsync.Option) Option {
	return func(c *Controller) { c.syncOpts = append(c.syncOpts, opts...) }
}

// bridge is the interleaved-to-planar scratch for one device setting.
type bridge struct {
	buf *buffer.Audio
}

// Controller is safe for concurrent use by control goroutines.
// ProcessInterleaved is the audio callback and runs on one goroutine.
type Controller struct {
	logger     *slog.Logger
	loader     Loader
	router     *router.Router
	params     *paramsync.Synchronizer
	routerOpts []router.Option
	syncOpts   []paramsync.Option

	mu         sync.Mutex
	slots      [2]processor.Processor
	gen        [2]uint64
	cancels    [2]context.CancelFunc
	phase      Phase
	device     Device
	closed     bool
	observers  map[uint64]func(Phase)
	nextObsID  uint64
	prepareErr error

	bridge atomic.Pointer[bridge]
}

// New returns a PreConfigured controller.
func New(loader Loader, opts ...Option) (*Controller, error) {
	def := core.ApplyProcessorOptions()

	c := &Controller{
		logger:    slog.New(slog.DiscardHandler),
		loader:    loader,
		device:    Device{SampleRate: def.SampleRate, BlockSize: def.BlockSize, Channels: def.Channels},
		observers: map[uint64]func(Phase){},
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.device.config().Validate(); err != nil {
		return nil, fmt.Errorf("session: device: %w", err)
	}

	c.router = router.New(append([]router.Option{router.WithLogger(c.logger)}, c.routerOpts...)...)
	c.params = paramsync.New(append([]paramsync.Option{paramsync.WithLogger(c.logger)}, c.syncOpts...)...)

	if err := c.router.Prepare(c.device.SampleRate, c.device.BlockSize, c.device.Channels); err != nil {
		return nil, err
	}

	c.bridge.Store(&bridge{buf: buffer.New(c.device.Channels, c.device.BlockSize)})

	return c, nil
}

// Router exposes the router for meters, stats and crossfade control.
func (c *Controller) Router() *router.Router { return c.router }

// Synchronizer exposes the unified parameter surface.
func (c *Controller) Synchronizer() *paramsync.Synchronizer { return c.params }

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase
}

// Device returns the current device configuration.
func (c *Controller) Device() Device {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.device
}

// Processor returns the processor in slot, or nil.
func (c *Controller) Processor(slot router.Slot) processor.Processor {
	if !slot.Valid() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.slots[slot]
}

// OnPhaseChange registers fn, called after each phase transition on the
// goroutine that caused it.
func (c *Controller) OnPhaseChange(fn func(Phase)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextObsID++
	id := c.nextObsID
	c.observers[id] = fn

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// unlock releases mu and reports a phase change relative to before.
func (c *Controller) unlock(before Phase) {
	after := c.phase

	var fns []func(Phase)
	if after != before {
		for _, fn := range c.observers {
			fns = append(fns, fn)
		}
	}

	c.mu.Unlock()

	if after != before {
		c.logger.Info("phase changed", "phase", after)
	}

	for _, fn := range fns {
		fn(after)
	}
}

// LoadIntoSlot loads path and installs it in slot, replacing and closing
// any previous occupant. Clearing the slot or starting another load into
// it cancels this one; the half-built processor is then closed and the
// error wraps context.Canceled.
func (c *Controller) LoadIntoSlot(ctx context.Context, slot router.Slot, path string) error {
	if !slot.Valid() {
		return router.ErrInvalidSlot
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if c.cancels[slot] != nil {
		c.cancels[slot]()
	}

	c.gen[slot]++
	gen := c.gen[slot]
	lctx, cancel := context.WithCancel(ctx)
	c.cancels[slot] = cancel
	c.mu.Unlock()

	defer cancel()

	c.logger.Info("loading", "slot", slot, "path", path)

	p, err := c.loader.Load(lctx, path)
	if err != nil {
		c.logger.Warn("load failed", "slot", slot, "path", path, "error", err)
		return fmt.Errorf("session: load into slot %s: %w", slot, err)
	}

	c.mu.Lock()
	before := c.phase
	defer c.unlock(before)

	if c.gen[slot] != gen || lctx.Err() != nil || c.closed {
		_ = p.Close()
		c.logger.Info("load cancelled", "slot", slot, "path", path)

		return fmt.Errorf("session: load into slot %s: %w", slot, context.Canceled)
	}

	c.cancels[slot] = nil

	if err := c.leaveConfigured(ctx); err != nil {
		_ = p.Close()
		return err
	}

	if old := c.slots[slot]; old != nil {
		closeProcessor(old)
	}

	c.slots[slot] = p
	c.logger.Info("loaded", "slot", slot, "processor", p.Name(), "kind", p.Kind(), "params", len(p.Parameters()))

	return c.settle()
}

// LoadBoth loads a and b concurrently. If either fails the other is
// cancelled.
func (c *Controller) LoadBoth(ctx context.Context, a, b string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.LoadIntoSlot(gctx, router.SlotA, a) })
	g.Go(func() error { return c.LoadIntoSlot(gctx, router.SlotB, b) })

	return g.Wait()
}

// ClearSlot cancels any load into slot and closes its processor.
func (c *Controller) ClearSlot(ctx context.Context, slot router.Slot) error {
	if !slot.Valid() {
		return router.ErrInvalidSlot
	}

	c.mu.Lock()
	before := c.phase
	defer c.unlock(before)

	c.gen[slot]++
	if c.cancels[slot] != nil {
		c.cancels[slot]()
		c.cancels[slot] = nil
	}

	old := c.slots[slot]
	if old == nil {
		return nil
	}

	if err := c.leaveConfigured(ctx); err != nil {
		return err
	}

	c.slots[slot] = nil
	closeProcessor(old)
	c.logger.Info("slot cleared", "slot", slot)

	return c.settle()
}

// Select makes slot audible from the next block.
func (c *Controller) Select(slot router.Slot) error {
	if c.Phase() != PhaseConfigured {
		return ErrNotConfigured
	}

	return c.router.Select(slot)
}

// Toggle switches to the other slot.
func (c *Controller) Toggle() (router.Slot, error) {
	if c.Phase() != PhaseConfigured {
		return c.router.Selection(), ErrNotConfigured
	}

	return c.router.Toggle(), nil
}

// OnDeviceChanged re-prepares everything for a new stream configuration.
// The pair is unpublished while processors are re-prepared.
func (c *Controller) OnDeviceChanged(ctx context.Context, d Device) error {
	if err := d.config().Validate(); err != nil {
		return fmt.Errorf("session: device: %w", err)
	}

	c.mu.Lock()
	before := c.phase
	defer c.unlock(before)

	if d == c.device {
		return nil
	}

	if err := c.leaveConfigured(ctx); err != nil {
		return err
	}

	c.device = d
	c.bridge.Store(&bridge{buf: buffer.New(d.Channels, d.BlockSize)})

	if err := c.router.Prepare(d.SampleRate, d.BlockSize, d.Channels); err != nil {
		return err
	}

	c.logger.Info("device changed", "sample_rate", d.SampleRate, "block_size", d.BlockSize, "channels", d.Channels)

	return c.settle()
}

// ProcessInterleaved is the device callback: in and out hold interleaved
// float32 frames for the device channel count. Blocks that do not fit the
// prepared device, or hold a partial frame, are copied through.
func (c *Controller) ProcessInterleaved(in, out []float32, events *midi.Buffer) {
	br := c.bridge.Load()
	if len(in) != len(out) || len(in)%br.buf.Channels() != 0 || !br.buf.Deinterleave(in) {
		n := copy(out, in)
		clear(out[n:])

		return
	}

	c.router.ProcessBlock(br.buf, events)
	br.buf.Interleave(out)
}

// Close cancels pending loads, unpublishes and closes both processors.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	before := c.phase
	defer c.unlock(before)

	if c.closed {
		return nil
	}

	c.closed = true

	for i := range c.cancels {
		c.gen[i]++
		if c.cancels[i] != nil {
			c.cancels[i]()
			c.cancels[i] = nil
		}
	}

	err := c.leaveConfigured(ctx)

	for i, p := range c.slots {
		if p != nil {
			closeProcessor(p)
			c.slots[i] = nil
		}
	}

	return errors.Join(err, c.params.SetProcessors(nil, nil))
}

// PrepareError returns the preparation failure of the last transition to
// Configured, if any. Processors that failed to prepare pass audio
// through.
func (c *Controller) PrepareError() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.prepareErr
}

// leaveConfigured must hold mu. It unpublishes the pair and waits for the
// audio goroutine before any processor may be released.
func (c *Controller) leaveConfigured(ctx context.Context) error {
	if c.phase != PhaseConfigured {
		return nil
	}

	if err := c.router.Unpublish(ctx); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	_ = c.router.Attach(router.SlotA, nil)
	_ = c.router.Attach(router.SlotB, nil)
	c.phase = PhasePreConfigured

	return nil
}

// settle must hold mu with the pair unpublished. It rebuilds the surface
// for the current slots and enters Configured when both are loaded.
func (c *Controller) settle() error {
	a, b := c.slots[router.SlotA], c.slots[router.SlotB]
	if a == nil || b == nil {
		return c.params.SetProcessors(a, b)
	}

	d := c.device
	_ = c.router.Attach(router.SlotA, a)
	_ = c.router.Attach(router.SlotB, b)

	c.prepareErr = c.router.Prepare(d.SampleRate, d.BlockSize, d.Channels)
	if c.prepareErr != nil {
		c.logger.Warn("entering configured with unprepared processor", "error", c.prepareErr)
	}

	err := c.params.SetProcessors(a, b)

	c.router.Publish()
	c.phase = PhaseConfigured

	return err
}

func closeProcessor(p processor.Processor) {
	p.Release()
	_ = p.Close()
}
