package paramsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/abtest/router"
	"github.com/cwbudde/algo-abtest/dsp/core"
)

// Set writes value to every processor that should receive it and, when
// notify is set and ctx is not already inside a dispatch, runs the
// observers before returning. Values outside [0, 1] are clamped and
// applied; the error then wraps processor.ErrDomainViolation, and the first
// violation per id since the surface was last rebuilt is logged.
func (s *Synchronizer) Set(ctx context.Context, id string, value float64, origin Origin, notify bool) error {
	clamped := core.Clamp01(value)

	violation := !core.InUnitRange(value)

	first, err := s.write(id, clamped, origin, violation)
	if err != nil {
		return err
	}

	var domainErr error
	if violation {
		domainErr = fmt.Errorf("%w: %q = %g, clamped to %g", processor.ErrDomainViolation, id, value, clamped)
		if first {
			s.logger.Warn("parameter value clamped", "param", id, "value", value, "clamped", clamped, "origin", origin)
		}
	}

	if notify {
		s.dispatch(ctx, Change{ID: id, Value: clamped, Origin: origin})
	}

	return domainErr
}

// write reports whether violation is the first one recorded for id.
func (s *Synchronizer) write(id string, value float64, origin Origin, violation bool) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false, fmt.Errorf("%w: %q", processor.ErrUnknownParameter, id)
	}

	first := violation && !s.warned[id]
	if first {
		s.warned[id] = true
	}

	m := &s.merged[i]
	toA, toB := m.InA, m.InB

	if s.unlinked.Load() {
		switch origin {
		case OriginA:
			toB = false
		case OriginB:
			toA = false
		}
	}

	var errs []error

	if toA {
		if err := s.procs[router.SlotA].SetParameter(id, value); err != nil {
			errs = append(errs, fmt.Errorf("slot A: %w", err))
		}
	}

	if toB {
		if err := s.procs[router.SlotB].SetParameter(id, value); err != nil {
			errs = append(errs, fmt.Errorf("slot B: %w", err))
		}
	}

	m.Value = value

	return first, errors.Join(errs...)
}

func (s *Synchronizer) dispatch(ctx context.Context, c Change) {
	d := depth(ctx) + 1
	if d > 1 || s.inFlight.Load() >= maxInFlight {
		s.suppressed.Add(1)
		s.logger.Debug("nested notification suppressed", "param", c.ID, "origin", c.Origin, "depth", d)

		return
	}

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	s.obsMu.Lock()
	observers := make([]Observer, len(s.observers))
	for i, e := range s.observers {
		observers[i] = e.fn
	}
	s.obsMu.Unlock()

	ctx = context.WithValue(ctx, depthKey{}, d)
	for _, fn := range observers {
		fn(ctx, c)
	}
}

// CopyAToB writes A's value of every shared parameter to B.
func (s *Synchronizer) CopyAToB(ctx context.Context) error {
	return s.copyShared(ctx, router.SlotA, router.SlotB)
}

// CopyBToA writes B's value of every shared parameter to A.
func (s *Synchronizer) CopyBToA(ctx context.Context) error {
	return s.copyShared(ctx, router.SlotB, router.SlotA)
}

func (s *Synchronizer) copyShared(ctx context.Context, from, to router.Slot) error {
	var (
		changes []Change
		errs    []error
	)

	s.writeMu.Lock()

	src, dst := s.procs[from], s.procs[to]
	if src != nil && dst != nil {
		for i := range s.merged {
			m := &s.merged[i]
			if !m.Shared() {
				continue
			}

			v := core.Clamp01(src.GetParameter(m.ID))
			if err := dst.SetParameter(m.ID, v); err != nil {
				errs = append(errs, fmt.Errorf("%q: %w", m.ID, err))
				continue
			}

			if m.Value != v {
				m.Value = v
				changes = append(changes, Change{ID: m.ID, Value: v, Origin: OriginSync})
			}
		}
	}

	s.writeMu.Unlock()

	for _, c := range changes {
		s.dispatch(ctx, c)
	}

	return errors.Join(errs...)
}

// ResetDefaults writes every surface parameter's default to its holders.
func (s *Synchronizer) ResetDefaults(ctx context.Context) error {
	var errs []error

	for _, m := range s.MergedParameters() {
		if err := s.Set(ctx, m.ID, m.Default, OriginSync, true); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
