package native

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
	"github.com/cwbudde/algo-abtest/dsp/effectchain"
	"github.com/cwbudde/algo-abtest/internal/testutil"
)

const gainSchematic = `{
  "name": "Clean Boost",
  "controls": [
    {"id": "level", "name": "Level", "default": 0.5},
    {"id": "bypass", "name": "Bypass", "default": 0}
  ],
  "nodes": [
    {"id": "g", "type": "gain", "params": {"gain": {"control": "level", "min": 0, "max": 2}}}
  ],
  "connections": [
    {"from": "_input", "to": "g"},
    {"from": "g", "to": "_output"}
  ]
}`

const driveSchematic = `
name: Crunch
controls:
  - {id: drive, name: Drive, default: 0.3}
  - {id: tone, name: Tone, default: 0.6}
nodes:
  - id: hp
    type: highpass
    params: {freqHz: 40}
  - id: d
    type: drive
    params:
      mode: tanh
      gain: {control: drive, min: 1, max: 20, taper: log}
  - id: lp
    type: lowpass
    params:
      freqHz: {control: tone, min: 800, max: 12000, taper: log}
connections:
  - {from: _input, to: hp}
  - {from: hp, to: d}
  - {from: d, to: lp}
  - {from: lp, to: _output}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func load(t *testing.T, name, body string, opts ...Option) *Processor {
	t.Helper()

	p, err := Load(context.Background(), writeFile(t, name, body), SchematicCompiler{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	return p
}

func dc(channels, frames int, v float64) *buffer.Audio {
	buf := buffer.New(channels, frames)
	for ch := range channels {
		for i := range buf.Channel(ch) {
			buf.Channel(ch)[i] = v
		}
	}

	return buf
}

func TestLoadReportsIdentity(t *testing.T) {
	t.Parallel()

	p := load(t, "boost.json", gainSchematic)

	require.Equal(t, "Clean Boost", p.Name())
	require.Equal(t, processor.KindNativeDSP, p.Kind())
	require.True(t, p.Loaded())
	require.False(t, p.Prepared())
	require.NotEmpty(t, p.ID())

	params := p.Parameters()
	require.Len(t, params, 2)
	require.Equal(t, "level", params[0].ID)
	require.Equal(t, "Level", params[0].Name)
	require.InDelta(t, 0.5, params[0].Value, 0)
}

func TestLoadNameFallsBackToFileName(t *testing.T) {
	t.Parallel()

	p := load(t, "crunch-v2.yaml", "controls: []\nnodes: []\nconnections: [{from: _input, to: _output}]\n")
	require.Equal(t, "crunch-v2", p.Name())
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "malformed json", body: `{"nodes": [`, want: processor.ErrSourceMalformed},
		{name: "cycle", body: `{"nodes": [{"id": "a", "type": "gain"}, {"id": "b", "type": "gain"}],
		  "connections": [{"from": "_input", "to": "a"}, {"from": "a", "to": "b"}, {"from": "b", "to": "a"}, {"from": "b", "to": "_output"}]}`,
			want: processor.ErrSourceMalformed},
		{name: "unknown effect", body: `{"nodes": [{"id": "x", "type": "flanger"}],
		  "connections": [{"from": "_input", "to": "x"}, {"from": "x", "to": "_output"}]}`,
			want: processor.ErrInstantiationFailed},
		{name: "unknown control", body: `{"nodes": [{"id": "g", "type": "gain", "params": {"gain": {"control": "nope"}}}],
		  "connections": [{"from": "_input", "to": "g"}, {"from": "g", "to": "_output"}]}`,
			want: processor.ErrInstantiationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := writeFile(t, "s.json", tt.body)
			_, err := Load(context.Background(), path, SchematicCompiler{})
			require.ErrorIs(t, err, tt.want)

			var le *processor.LoadError
			require.True(t, errors.As(err, &le))
			require.Equal(t, path, le.Path)
			require.Equal(t, processor.KindNativeDSP, le.Kind)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "gone.json"), SchematicCompiler{})
	require.ErrorIs(t, err, processor.ErrSourceMissing)
}

func TestLoadHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, writeFile(t, "boost.json", gainSchematic), SchematicCompiler{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessBeforePrepareIsPassThrough(t *testing.T) {
	t.Parallel()

	p := load(t, "boost.json", gainSchematic)
	require.NoError(t, p.SetParameter("level", 1))

	buf := dc(2, 32, 0.25)
	require.NoError(t, p.Process(buf, nil))
	testutil.RequireAudioEqual(t, buf, dc(2, 32, 0.25))
}

func TestParameterAppliesAtNextBlock(t *testing.T) {
	t.Parallel()

	p := load(t, "boost.json", gainSchematic)
	require.NoError(t, p.Prepare(48000, 64, 2))

	buf := dc(2, 64, 0.25)
	require.NoError(t, p.Process(buf, nil))
	testutil.RequireSliceNearlyEqual(t, buf.Channel(0), dc(1, 64, 0.25).Channel(0), 1e-12)

	require.NoError(t, p.SetParameter("level", 1))
	require.InDelta(t, 1.0, p.GetParameter("level"), 0)

	// The gain node ramps over one block; the block after settles at 2x.
	for range 2 {
		buf = dc(2, 64, 0.25)
		require.NoError(t, p.Process(buf, nil))
	}

	testutil.RequireSliceNearlyEqual(t, buf.Channel(1), dc(1, 64, 0.5).Channel(0), 1e-12)
}

func TestSetParameterDomain(t *testing.T) {
	t.Parallel()

	p := load(t, "boost.json", gainSchematic)

	err := p.SetParameter("level", 1.5)
	require.ErrorIs(t, err, processor.ErrDomainViolation)
	require.InDelta(t, 1.0, p.GetParameter("level"), 0)

	require.ErrorIs(t, p.SetParameter("nope", 0.5), processor.ErrUnknownParameter)
	require.InDelta(t, 0.0, p.GetParameter("nope"), 0)
}

func TestBypassControlPassesThrough(t *testing.T) {
	t.Parallel()

	p := load(t, "boost.json", gainSchematic)
	require.NoError(t, p.Prepare(48000, 32, 1))
	require.NoError(t, p.SetParameter("level", 1))
	require.NoError(t, p.SetParameter("bypass", 1))

	buf := dc(1, 32, 0.1)
	require.NoError(t, p.Process(buf, nil))
	testutil.RequireAudioEqual(t, buf, dc(1, 32, 0.1))

	require.NoError(t, p.SetParameter("bypass", 0))

	for range 2 {
		buf = dc(1, 32, 0.1)
		require.NoError(t, p.Process(buf, nil))
	}

	require.InDelta(t, 0.2, buf.Channel(0)[31], 1e-12)
}

func TestBypassControlCanBeDisabled(t *testing.T) {
	t.Parallel()

	p := load(t, "boost.json", gainSchematic, WithBypassControl(""))
	require.NoError(t, p.Prepare(48000, 32, 1))
	require.NoError(t, p.SetParameter("bypass", 1))
	require.NoError(t, p.SetParameter("level", 0))

	for range 2 {
		buf := dc(1, 32, 0.1)
		require.NoError(t, p.Process(buf, nil))

		if buf.Channel(0)[31] == 0 {
			return
		}
	}

	t.Fatal("graph should still run with the bypass control disabled")
}

func TestOversizedAndMismatchedBlocksPassThrough(t *testing.T) {
	t.Parallel()

	p := load(t, "boost.json", gainSchematic)
	require.NoError(t, p.Prepare(48000, 16, 2))
	require.NoError(t, p.SetParameter("level", 1))

	big := dc(2, 17, 0.3)
	require.NoError(t, p.Process(big, nil))
	testutil.RequireAudioEqual(t, big, dc(2, 17, 0.3))

	mono := dc(1, 16, 0.3)
	require.NoError(t, p.Process(mono, nil))
	testutil.RequireAudioEqual(t, mono, dc(1, 16, 0.3))
}

func TestPrepareLifecycle(t *testing.T) {
	t.Parallel()

	p := load(t, "crunch.yaml", driveSchematic)

	require.ErrorIs(t, p.Prepare(1000, 64, 2), processor.ErrPreparationFailed)
	require.False(t, p.Prepared())

	require.NoError(t, p.Prepare(48000, 64, 2))
	require.NoError(t, p.Prepare(48000, 64, 2))
	require.True(t, p.Prepared())

	require.NoError(t, p.Prepare(44100, 128, 1))
	require.True(t, p.Prepared())

	p.Release()
	require.False(t, p.Prepared())
	require.True(t, p.Loaded())

	require.NoError(t, p.Close())
	require.False(t, p.Loaded())
	require.ErrorIs(t, p.Prepare(48000, 64, 2), processor.ErrClosed)
}

func TestMatchesDirectKernel(t *testing.T) {
	t.Parallel()

	p := load(t, "crunch.yaml", driveSchematic)
	require.NoError(t, p.Prepare(48000, 128, 2))

	s, err := effectchain.ParseYAML([]byte(driveSchematic))
	require.NoError(t, err)
	prog, err := effectchain.Compile(s, nil)
	require.NoError(t, err)

	k := prog.NewKernel()
	require.NoError(t, k.Prepare(48000, 128, 2))

	for block := range 6 {
		if block == 3 {
			require.NoError(t, p.SetParameter("drive", 0.9))
			k.SetControl(0, 0.9)
		}

		in := testutil.NoiseAudio(int64(block), 2, 128)
		want := in.Clone()
		k.Process(want)

		require.NoError(t, p.Process(in, nil))
		testutil.RequireAudioEqual(t, in, want)
	}
}

func TestProcessAllocs(t *testing.T) {
	p := load(t, "crunch.yaml", driveSchematic)
	require.NoError(t, p.Prepare(48000, 128, 2))

	buf := testutil.NoiseAudio(9, 2, 128)
	v := 0.0
	allocs := testing.AllocsPerRun(100, func() {
		v += 0.013
		_ = p.SetParameter("tone", v-float64(int(v)))
		_ = p.Process(buf, nil)
	})
	require.Zero(t, allocs)
}
