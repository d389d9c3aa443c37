package pluginabi

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cwbudde/algo-abtest/abtest/hosted"
	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
)

// fakeLib is an in-process stand-in for a loaded library: a gain plugin
// with two parameters.
type fakeLib struct {
	created   int
	destroyed int
	unloaded  int
	prepared  [3]int
	failRC    int32
	values    [2]float64
	midi      [][4]int32
}

func (f *fakeLib) symbols() *symbols {
	s := &symbols{}

	s.create = func() uintptr {
		f.created++
		return 0xBEEF
	}
	s.destroy = func(uintptr) { f.destroyed++ }
	s.name = func(uintptr) string { return "Fake Gain" }
	s.prepare = func(_ uintptr, sr float64, bs, ch int32) int32 {
		f.prepared = [3]int{int(sr), int(bs), int(ch)}
		return 0
	}
	s.release = func(uintptr) {}
	s.process = func(_ uintptr, planar *float32, ch, frames int32) int32 {
		if f.failRC != 0 {
			return f.failRC
		}

		data := unsafe.Slice(planar, int(ch*frames))
		for i := range data {
			data[i] *= float32(2 * f.values[0])
		}

		return 0
	}
	s.paramCount = func(uintptr) int32 { return 2 }
	s.paramInfo = func(_ uintptr, index int32, id, name, label *byte, size int32, def *float64) int32 {
		put := func(dst *byte, v string) {
			copy(unsafe.Slice(dst, int(size)), v)
		}

		switch index {
		case 0:
			put(id, "gain")
			put(name, "Gain")
			put(label, "dB")
			*def = 0.5
		case 1:
			put(name, "Tone Knob")
			*def = 0.25
		}

		return 0
	}
	s.getParam = func(_ uintptr, index int32) float64 { return f.values[index] }
	s.setParam = func(_ uintptr, index int32, v float64) { f.values[index] = v }
	s.midi = func(_ uintptr, offset, status, d1, d2 int32) {
		f.midi = append(f.midi, [4]int32{offset, status, d1, d2})
	}

	return s
}

func newFake(t *testing.T) (*fakeLib, *Plugin) {
	t.Helper()

	f := &fakeLib{values: [2]float64{0.5, 0.25}}
	p, err := newPlugin(f.symbols(), func() error { f.unloaded++; return nil })
	require.NoError(t, err)

	return f, p
}

func TestNewPluginReadsParameterTable(t *testing.T) {
	t.Parallel()

	_, p := newFake(t)

	require.Equal(t, "Fake Gain", p.Name())
	require.Equal(t, []hosted.ParameterInfo{
		{ID: "gain", Name: "Gain", Label: "dB", Default: 0.5},
		{Name: "Tone Knob", Default: 0.25},
	}, p.Parameters())
}

func TestNewPluginFailures(t *testing.T) {
	t.Parallel()

	f := &fakeLib{}
	sym := f.symbols()
	sym.create = func() uintptr { return 0 }
	_, err := newPlugin(sym, nil)
	require.ErrorIs(t, err, processor.ErrInstantiationFailed)

	sym = f.symbols()
	sym.paramInfo = func(uintptr, int32, *byte, *byte, *byte, int32, *float64) int32 { return -1 }
	_, err = newPlugin(sym, nil)
	require.ErrorIs(t, err, processor.ErrInstantiationFailed)
	require.Equal(t, 1, f.destroyed)
}

func TestProcessRoundTripsFloat32(t *testing.T) {
	t.Parallel()

	f, p := newFake(t)
	require.NoError(t, p.Prepare(48000, 4, 2))
	require.Equal(t, [3]int{48000, 4, 2}, f.prepared)

	p.SetParameter(0, 1)
	require.InDelta(t, 1.0, p.GetParameter(0), 0)

	buf := buffer.FromChannels([]float64{0.5, -0.25, 0, 1}, []float64{0.125, 0, 0, 0})
	events := midi.NewBuffer(4)
	require.True(t, events.Add(2, gomidi.NoteOn(1, 60, 100)))

	require.NoError(t, p.Process(buf, events))
	require.Equal(t, []float64{1, -0.5, 0, 2}, buf.Channel(0))
	require.Equal(t, []float64{0.25, 0, 0, 0}, buf.Channel(1))
	require.Equal(t, [][4]int32{{2, 0x91, 60, 100}}, f.midi)
}

func TestProcessErrors(t *testing.T) {
	t.Parallel()

	f, p := newFake(t)
	require.NoError(t, p.Prepare(48000, 4, 1))

	require.ErrorIs(t, p.Process(buffer.New(2, 4), nil), errShape)
	require.ErrorIs(t, p.Process(buffer.New(1, 8), nil), errShape)

	buf := buffer.FromChannels([]float64{0.5, 0.5})
	f.failRC = 3
	require.ErrorIs(t, p.Process(buf, nil), errProcess)
	require.Equal(t, []float64{0.5, 0.5}, buf.Channel(0), "failed block is left as is")
}

func TestParameterIndexBounds(t *testing.T) {
	t.Parallel()

	f, p := newFake(t)
	p.SetParameter(5, 1)
	p.SetParameter(-1, 1)
	require.Equal(t, [2]float64{0.5, 0.25}, f.values)
	require.Zero(t, p.GetParameter(2))
}

func TestCloseOnce(t *testing.T) {
	t.Parallel()

	f, p := newFake(t)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	require.Equal(t, 1, f.destroyed)
	require.Equal(t, 1, f.unloaded)
}

func TestHostedProcessorOverABI(t *testing.T) {
	t.Parallel()

	f, plugin := newFake(t)
	p := hosted.New("hosted:/fake.so", plugin)

	ids := make([]string, 0, 2)
	for _, prm := range p.Parameters() {
		ids = append(ids, prm.ID)
	}
	require.Equal(t, []string{"gain", "tone_knob"}, ids)

	require.NoError(t, p.Prepare(48000, 2, 1))
	require.NoError(t, p.SetParameter("gain", 0.75))

	buf := buffer.FromChannels([]float64{1, 1})
	require.NoError(t, p.Process(buf, nil))
	require.InDelta(t, 0.75, f.values[0], 0)
	require.Equal(t, []float64{1.5, 1.5}, buf.Channel(0))

	require.NoError(t, p.Close())
	require.Equal(t, 1, f.unloaded)
}
