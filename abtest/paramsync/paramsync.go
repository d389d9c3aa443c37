// Package paramsync presents one parameter surface over processors A and
// B and keeps their shared parameters equal.
//
// Writes fan out to every processor holding the id, then observers run
// synchronously on the writer's goroutine. An observer that writes back
// would loop, so each dispatch carries its nesting depth in the context:
// observers only run for top-level writes, and nested writes with notify
// set are counted as suppressed instead of dispatched.
package paramsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/abtest/router"
)

// maxInFlight bounds concurrent or nested observer dispatches, catching
// observers that write back with a fresh context.
const maxInFlight = 16

// Origin says where a write came from.
type Origin int

const (
	// OriginOperator is the unified surface.
	OriginOperator Origin = iota
	// OriginA is processor A's own editor.
	OriginA
	// OriginB is processor B's own editor.
	OriginB
	// OriginSync is the synchronizer itself (copy, reset, alignment).
	OriginSync
)

func (o Origin) String() string {
	switch o {
	case OriginOperator:
		return "operator"
	case OriginA:
		return "A"
	case OriginB:
		return "B"
	case OriginSync:
		return "sync"
	default:
		return fmt.Sprintf("origin(%d)", int(o))
	}
}

// MergedParameter is one entry of the unified surface.
type MergedParameter struct {
	ID      string
	Name    string
	Label   string
	Value   float64
	Default float64
	InA     bool
	InB     bool
}

// Shared reports whether both processors hold the parameter.
func (m MergedParameter) Shared() bool { return m.InA && m.InB }

// Change is delivered to observers.
type Change struct {
	ID     string
	Value  float64
	Origin Origin
}

// Observer receives changes. ctx carries the dispatch depth and must be
// passed to any Set the observer makes.
type Observer func(ctx context.Context, c Change)

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExclude hides parameters for which pred returns true from the
// merged surface. They stay reachable on the processors directly.
func WithExclude(pred func(processor.Parameter) bool) Option {
	return func(s *Synchronizer) { s.exclude = pred }
}

type depthKey struct{}

func depth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

type observerEntry struct {
	id uint64
	fn Observer
}

// Synchronizer owns the merged surface. It holds non-owning references to
// the processors; callers swap them with SetProcessors.
type Synchronizer struct {
	logger  *slog.Logger
	exclude func(processor.Parameter) bool

	// writeMu serializes processor writes with the snapshot update so A
	// and B never diverge under concurrent writers.
	writeMu sync.Mutex
	procs   [2]processor.Processor
	merged  []MergedParameter
	index   map[string]int
	warned  map[string]bool

	obsMu     sync.Mutex
	observers []observerEntry
	nextObs   uint64

	unlinked   atomic.Bool
	inFlight   atomic.Int32
	suppressed atomic.Uint64
}

// New returns an empty synchronizer in linked mode.
func New(opts ...Option) *Synchronizer {
	s := &Synchronizer{
		logger: slog.New(slog.DiscardHandler),
		index:  map[string]int{},
		warned: map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SetProcessor replaces the processor in slot and rebuilds the surface.
func (s *Synchronizer) SetProcessor(slot router.Slot, p processor.Processor) error {
	if !slot.Valid() {
		return router.ErrInvalidSlot
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	procs := s.procs
	procs[slot] = p

	return s.install(procs)
}

// SetProcessors replaces both processors with a single rebuild. Shared
// parameters of b are aligned to a's values.
func (s *Synchronizer) SetProcessors(a, b processor.Processor) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.install([2]processor.Processor{a, b})
}

// Processor returns the processor held for slot.
func (s *Synchronizer) Processor(slot router.Slot) processor.Processor {
	if !slot.Valid() {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.procs[slot]
}

// install must hold writeMu.
func (s *Synchronizer) install(procs [2]processor.Processor) error {
	for i, old := range s.procs {
		if old != nil && old != procs[i] {
			if n, ok := old.(processor.Notifier); ok {
				n.OnParameterChange(nil)
			}
		}
	}

	prev := s.procs
	s.procs = procs
	s.rebuild()

	var errs []error

	a, b := procs[router.SlotA], procs[router.SlotB]
	if a != nil && b != nil {
		for i := range s.merged {
			m := &s.merged[i]
			if !m.Shared() {
				continue
			}

			if err := b.SetParameter(m.ID, m.Value); err != nil && !errors.Is(err, processor.ErrDomainViolation) {
				errs = append(errs, fmt.Errorf("paramsync: align %q: %w", m.ID, err))
			}
		}
	}

	origins := [2]Origin{OriginA, OriginB}
	for i, p := range procs {
		if p == nil || p == prev[i] {
			continue
		}

		if n, ok := p.(processor.Notifier); ok {
			origin := origins[i]
			n.OnParameterChange(func(id string, v float64) {
				if err := s.Set(context.Background(), id, v, origin, true); err != nil {
					s.logger.Debug("editor change not applied", "param", id, "origin", origin, "error", err)
				}
			})
		}
	}

	s.logger.Debug("parameter surface rebuilt", "params", len(s.merged))

	return errors.Join(errs...)
}

// rebuild derives the merged list: shared ids in A order, then A-only in
// A order, then B-only in B order.
func (s *Synchronizer) rebuild() {
	var pa, pb []processor.Parameter
	if a := s.procs[router.SlotA]; a != nil {
		pa = s.visible(a.Parameters())
	}

	if b := s.procs[router.SlotB]; b != nil {
		pb = s.visible(b.Parameters())
	}

	inB := make(map[string]processor.Parameter, len(pb))
	for _, p := range pb {
		inB[p.ID] = p
	}

	inA := make(map[string]struct{}, len(pa))
	merged := make([]MergedParameter, 0, len(pa)+len(pb))

	for _, p := range pa {
		inA[p.ID] = struct{}{}
		if _, shared := inB[p.ID]; shared {
			merged = append(merged, fromParam(p, true, true))
		}
	}

	for _, p := range pa {
		if _, shared := inB[p.ID]; !shared {
			merged = append(merged, fromParam(p, true, false))
		}
	}

	for _, p := range pb {
		if _, ok := inA[p.ID]; !ok {
			merged = append(merged, fromParam(p, false, true))
		}
	}

	index := make(map[string]int, len(merged))
	for i, m := range merged {
		index[m.ID] = i
	}

	s.merged = merged
	s.index = index
	s.warned = make(map[string]bool, len(merged))
}

func (s *Synchronizer) visible(params []processor.Parameter) []processor.Parameter {
	if s.exclude == nil {
		return params
	}

	out := params[:0:0]
	for _, p := range params {
		if !s.exclude(p) {
			out = append(out, p)
		}
	}

	return out
}

func fromParam(p processor.Parameter, inA, inB bool) MergedParameter {
	name := p.Name
	if name == "" {
		name = p.ID
	}

	return MergedParameter{
		ID:      p.ID,
		Name:    name,
		Label:   p.Label,
		Value:   p.Value,
		Default: p.Default,
		InA:     inA,
		InB:     inB,
	}
}

// MergedParameters returns a copy of the surface.
func (s *Synchronizer) MergedParameters() []MergedParameter {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return append([]MergedParameter(nil), s.merged...)
}

// Get returns the surface value of id. Ids hidden from the surface are
// read live from A, then B; unknown ids read as 0.
func (s *Synchronizer) Get(id string) float64 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if i, ok := s.index[id]; ok {
		return s.merged[i].Value
	}

	for _, p := range s.procs {
		if p != nil && exposes(p, id) {
			return p.GetParameter(id)
		}
	}

	return 0
}

func exposes(p processor.Processor, id string) bool {
	for _, param := range p.Parameters() {
		if param.ID == id {
			return true
		}
	}

	return false
}

// SetLinked switches propagation. Unlinked, editor writes from A or B stay
// on their own processor; operator writes still reach both.
func (s *Synchronizer) SetLinked(linked bool) {
	s.unlinked.Store(!linked)
}

// Linked reports whether writes propagate to both processors.
func (s *Synchronizer) Linked() bool {
	return !s.unlinked.Load()
}

// Suppressed returns how many nested notifications were dropped.
func (s *Synchronizer) Suppressed() uint64 {
	return s.suppressed.Load()
}

// Observe registers fn and returns a function that removes it.
func (s *Synchronizer) Observe(fn Observer) (cancel func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.nextObs++
	id := s.nextObs
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()

		for i, e := range s.observers {
			if e.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}
