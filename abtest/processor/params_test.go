package processor

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSpecs() []Parameter {
	return []Parameter{
		{ID: "drive", Name: "Drive", Default: 0.5},
		{ID: "tone", Name: "Tone", Default: 0.25, Label: "%"},
		{ID: "drive", Name: "Duplicate", Default: 0.9},
		{ID: "", Name: "Anonymous"},
		{ID: "level", Name: "Level", Default: 1.7},
	}
}

func TestParamSetDefaults(t *testing.T) {
	t.Parallel()

	s := NewParamSet(testSpecs(), nil)
	require.Equal(t, 3, s.Len(), "duplicates and empty ids are dropped")

	params := s.Parameters()
	require.Equal(t, []string{"drive", "tone", "level"}, []string{params[0].ID, params[1].ID, params[2].ID})
	require.Equal(t, "Drive", params[0].Name)
	require.Equal(t, 0.25, params[1].Value)
	require.Equal(t, "%", params[1].Label)
	require.Equal(t, 1.0, params[2].Default, "defaults are clamped")
}

func TestParamSetSetGet(t *testing.T) {
	t.Parallel()

	s := NewParamSet(testSpecs(), nil)
	require.NoError(t, s.Set("tone", 0.75))
	require.Equal(t, 0.75, s.Get("tone"))
	require.Equal(t, 0.0, s.Get("missing"))

	err := s.Set("missing", 0.1)
	require.ErrorIs(t, err, ErrUnknownParameter)
}

func TestParamSetClampsAndWarnsOnce(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	s := NewParamSet(testSpecs(), logger)

	err := s.Set("drive", 1.5)
	require.ErrorIs(t, err, ErrDomainViolation)
	require.Equal(t, 1.0, s.Get("drive"))

	err = s.Set("drive", -2)
	require.True(t, errors.Is(err, ErrDomainViolation))
	require.Equal(t, 0.0, s.Get("drive"))

	require.ErrorIs(t, s.Set("drive", math.NaN()), ErrDomainViolation)
	require.Equal(t, 0.0, s.Get("drive"))

	require.Equal(t, 1, strings.Count(logs.String(), "parameter value clamped"))

	require.ErrorIs(t, s.Set("tone", 2), ErrDomainViolation)
	require.Equal(t, 2, strings.Count(logs.String(), "parameter value clamped"))
}

func TestParamSetPendingAndChanged(t *testing.T) {
	t.Parallel()

	s := NewParamSet(testSpecs(), nil)

	require.True(t, s.Pending(), "a fresh set reports everything once")
	for i := range s.Len() {
		_, changed := s.Changed(i)
		require.True(t, changed)
	}
	require.False(t, s.Pending())

	require.NoError(t, s.Set("tone", 0.3))
	require.True(t, s.Pending())

	v, changed := s.Changed(1)
	require.True(t, changed)
	require.Equal(t, 0.3, v)

	_, changed = s.Changed(0)
	require.False(t, changed)

	s.Invalidate()
	require.True(t, s.Pending())
	_, changed = s.Changed(0)
	require.True(t, changed)
}

func TestParamSetConcurrentWriters(t *testing.T) {
	t.Parallel()

	s := NewParamSet(testSpecs(), nil)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 1000 {
				_ = s.Set("tone", float64((i+w)%100)/100)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		if s.Pending() {
			v, _ := s.Changed(1)
			require.True(t, v >= 0 && v <= 1)
		}

		select {
		case <-done:
			return
		default:
		}
	}
}

func TestParamSetAudioSideAllocs(t *testing.T) {
	s := NewParamSet(testSpecs(), nil)
	allocs := testing.AllocsPerRun(100, func() {
		s.Store(0, 0.1)
		if s.Pending() {
			for i := range s.Len() {
				s.Changed(i)
			}
		}
	})
	require.Zero(t, allocs)
}

func TestStableID(t *testing.T) {
	t.Parallel()

	a := StableID(KindNativeDSP, "x/../y.schx")
	b := StableID(KindNativeDSP, "y.schx")
	require.Equal(t, a, b)
	require.True(t, strings.HasPrefix(a, "native:"))
	require.NotEqual(t, a, StableID(KindHostedBinary, "y.schx"))
}

func TestLoadErrorUnwraps(t *testing.T) {
	t.Parallel()

	err := NewLoadError(KindHostedBinary, "/p.so", ErrSourceMissing)
	require.ErrorIs(t, err, ErrSourceMissing)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.Equal(t, "/p.so", le.Path)
	require.Contains(t, err.Error(), "hosted")
}
