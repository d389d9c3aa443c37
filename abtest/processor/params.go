package processor

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-abtest/dsp/core"
)

// ParamSet stores a processor's parameters in atomic cells. Control
// goroutines write with Set; the audio goroutine collects changed values at
// block start with Pending and Changed. Neither side blocks.
type ParamSet struct {
	specs   []Parameter
	index   map[string]int
	cells   []atomic.Uint64
	warned  []atomic.Bool
	version atomic.Uint64
	logger  *slog.Logger

	// Audio goroutine only.
	applied []float64
	seen    uint64
}

// NewParamSet creates a set from specs, whose Value fields are ignored;
// every parameter starts at its Default. Duplicate ids keep the first.
func NewParamSet(specs []Parameter, logger *slog.Logger) *ParamSet {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &ParamSet{
		specs:  make([]Parameter, 0, len(specs)),
		index:  make(map[string]int, len(specs)),
		logger: logger,
	}

	for _, p := range specs {
		if _, dup := s.index[p.ID]; dup || p.ID == "" {
			continue
		}

		p.Default = core.Clamp01(p.Default)
		p.Value = p.Default
		s.index[p.ID] = len(s.specs)
		s.specs = append(s.specs, p)
	}

	s.cells = make([]atomic.Uint64, len(s.specs))
	s.warned = make([]atomic.Bool, len(s.specs))
	s.applied = make([]float64, len(s.specs))

	for i, p := range s.specs {
		s.cells[i].Store(math.Float64bits(p.Default))
	}

	s.Invalidate()

	return s
}

// Len returns the number of parameters.
func (s *ParamSet) Len() int {
	return len(s.specs)
}

// Lookup returns the index of id.
func (s *ParamSet) Lookup(id string) (int, bool) {
	i, ok := s.index[id]
	return i, ok
}

// ID returns the id at index i.
func (s *ParamSet) ID(i int) string {
	return s.specs[i].ID
}

// Parameters returns a snapshot in declaration order with current values.
func (s *ParamSet) Parameters() []Parameter {
	out := make([]Parameter, len(s.specs))
	for i, p := range s.specs {
		p.Value = s.Load(i)
		out[i] = p
	}

	return out
}

// Get returns the current value of id, or 0 if unknown.
func (s *ParamSet) Get(id string) float64 {
	i, ok := s.index[id]
	if !ok {
		return 0
	}

	return s.Load(i)
}

// Load returns the current value at index i.
func (s *ParamSet) Load(i int) float64 {
	return math.Float64frombits(s.cells[i].Load())
}

// Set stores value for id. Values outside [0, 1] are clamped and stored;
// the returned error then wraps ErrDomainViolation, and the first
// violation per parameter is logged.
func (s *ParamSet) Set(id string, value float64) error {
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, id)
	}

	if core.InUnitRange(value) {
		s.Store(i, value)
		return nil
	}

	clamped := core.Clamp01(value)
	s.Store(i, clamped)

	if s.warned[i].CompareAndSwap(false, true) {
		s.logger.Warn("parameter value clamped", "param", id, "value", value, "clamped", clamped)
	}

	return fmt.Errorf("%w: %q = %g, clamped to %g", ErrDomainViolation, id, value, clamped)
}

// Store writes an already valid value at index i.
func (s *ParamSet) Store(i int, value float64) {
	s.cells[i].Store(math.Float64bits(value))
	s.version.Add(1)
}

// Pending reports whether any Store happened since the previous call that
// returned true. Audio goroutine only.
func (s *ParamSet) Pending() bool {
	v := s.version.Load()
	if v == s.seen {
		return false
	}

	s.seen = v

	return true
}

// Changed returns the value at index i and whether it differs from the
// value last returned for i. Audio goroutine only.
func (s *ParamSet) Changed(i int) (float64, bool) {
	v := s.Load(i)
	if v == s.applied[i] {
		return v, false
	}

	s.applied[i] = v

	return v, true
}

// Invalidate forgets what the audio goroutine has applied so the next
// Pending/Changed pass reports every parameter. It must not run
// concurrently with the audio goroutine.
func (s *ParamSet) Invalidate() {
	for i := range s.applied {
		s.applied[i] = math.NaN()
	}

	s.version.Add(1)
}
