package effectchain

import (
	"github.com/cwbudde/algo-abtest/dsp/filter/biquad"
	"github.com/cwbudde/algo-abtest/dsp/filter/design"
)

const (
	nodeTypeLowpass  = "lowpass"
	nodeTypeHighpass = "highpass"
	nodeTypePeak     = "peak"
	nodeTypeTone     = "tone"
)

// filterRuntime handles the lowpass, highpass and peak node types.
type filterRuntime struct {
	kind   string
	sr     float64
	freq   float64
	q      float64
	gainDB float64
	sec    *biquad.Section
}

func newFilterRuntime(kind string) Factory {
	return func(Context) (Runtime, error) {
		return &filterRuntime{kind: kind}, nil
	}
}

func (f *filterRuntime) Configure(ctx Context, p Params) error {
	def := 1000.0
	switch f.kind {
	case nodeTypeLowpass:
		def = 8000
	case nodeTypeHighpass:
		def = 80
	}

	f.sr = ctx.SampleRate
	f.freq = p.GetNum("freqHz", def)
	f.q = p.GetNum("q", design.DefaultQ)
	f.gainDB = p.GetNum("gainDb", 0)
	f.update()

	return nil
}

func (f *filterRuntime) SetParam(key string, value float64) bool {
	switch key {
	case "freqHz":
		f.freq = value
	case "q":
		f.q = value
	case "gainDb":
		f.gainDB = value
	default:
		return false
	}

	f.update()

	return true
}

func (f *filterRuntime) update() {
	var c biquad.Coefficients

	switch f.kind {
	case nodeTypeLowpass:
		c = design.Lowpass(f.freq, f.q, f.sr)
	case nodeTypeHighpass:
		c = design.Highpass(f.freq, f.q, f.sr)
	default:
		c = design.Peak(f.freq, f.gainDB, f.q, f.sr)
	}

	if f.sec == nil {
		f.sec = biquad.NewSection(c)
		return
	}

	f.sec.SetCoefficients(c)
}

func (f *filterRuntime) Process(block []float64) {
	f.sec.ProcessBlock(block)
}

func (f *filterRuntime) Reset() {
	f.sec.Reset()
}

// toneRuntime is a tilt EQ: a low shelf and a high shelf around a pivot,
// moved in opposite directions by a single normalized tone value.
type toneRuntime struct {
	sr      float64
	pivot   float64
	rangeDB float64
	tone    float64
	low     *biquad.Section
	high    *biquad.Section
}

func (t *toneRuntime) Configure(ctx Context, p Params) error {
	t.sr = ctx.SampleRate
	t.pivot = p.GetNum("freqHz", 800)
	t.rangeDB = p.GetNum("rangeDb", 12)
	t.tone = p.GetNum("tone", 0.5)
	t.update()

	return nil
}

func (t *toneRuntime) SetParam(key string, value float64) bool {
	switch key {
	case "tone":
		t.tone = value
	case "freqHz":
		t.pivot = value
	case "rangeDb":
		t.rangeDB = value
	default:
		return false
	}

	t.update()

	return true
}

func (t *toneRuntime) update() {
	tilt := (t.tone - 0.5) * t.rangeDB
	low := design.LowShelf(t.pivot, -tilt, design.DefaultQ, t.sr)
	high := design.HighShelf(t.pivot, tilt, design.DefaultQ, t.sr)

	if t.low == nil {
		t.low, t.high = biquad.NewSection(low), biquad.NewSection(high)
		return
	}

	t.low.SetCoefficients(low)
	t.high.SetCoefficients(high)
}

func (t *toneRuntime) Process(block []float64) {
	t.low.ProcessBlock(block)
	t.high.ProcessBlock(block)
}

func (t *toneRuntime) Reset() {
	t.low.Reset()
	t.high.Reset()
}
