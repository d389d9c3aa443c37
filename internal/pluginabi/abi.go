// Package pluginabi loads plugin binaries that export the abtester C ABI
// and adapts them to hosted.Plugin. The library must export:
//
//	void*  abt_create(void);
//	void   abt_destroy(void* h);
//	char*  abt_name(void* h);
//	int32  abt_prepare(void* h, double sample_rate, int32 block_size, int32 channels);
//	void   abt_release(void* h);
//	int32  abt_process(void* h, float* planar, int32 channels, int32 frames);
//	int32  abt_param_count(void* h);
//	int32  abt_param_info(void* h, int32 index, char* id, char* name, char* label, int32 size, double* def);
//	double abt_get_param(void* h, int32 index);
//	void   abt_set_param(void* h, int32 index, double value);
//
// and may export
//
//	void   abt_midi(void* h, int32 offset, int32 status, int32 data1, int32 data2);
//
// Non-zero int32 results are failures. abt_process receives channel ch at
// planar[ch*frames:]. Strings written by abt_param_info are NUL terminated
// within size bytes. Parameter values are normalized to [0, 1].
package pluginabi

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-abtest/abtest/hosted"
	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
)

// infoSize is the byte capacity of each string passed to abt_param_info.
const infoSize = 128

var (
	errProcess = errors.New("pluginabi: abt_process failed")
	errShape   = errors.New("pluginabi: block exceeds prepared shape")
)

// symbols are the bound entry points of one library.
type symbols struct {
	create     func() uintptr
	destroy    func(h uintptr)
	name       func(h uintptr) string
	prepare    func(h uintptr, sampleRate float64, blockSize, channels int32) int32
	release    func(h uintptr)
	process    func(h uintptr, planar *float32, channels, frames int32) int32
	paramCount func(h uintptr) int32
	paramInfo  func(h uintptr, index int32, id, name, label *byte, size int32, def *float64) int32
	getParam   func(h uintptr, index int32) float64
	setParam   func(h uintptr, index int32, value float64)
	midi       func(h uintptr, offset, status, data1, data2 int32)
}

// Plugin is one instance created through the C ABI.
type Plugin struct {
	sym    *symbols
	h      uintptr
	name   string
	params []hosted.ParameterInfo
	unload func() error

	planar   []float32
	channels int
	frames   int
	closed   bool
}

var _ hosted.Plugin = (*Plugin)(nil)

// newPlugin creates an instance and reads its parameter table. unload is
// called once the instance is destroyed.
func newPlugin(sym *symbols, unload func() error) (*Plugin, error) {
	h := sym.create()
	if h == 0 {
		return nil, fmt.Errorf("%w: abt_create returned null", processor.ErrInstantiationFailed)
	}

	p := &Plugin{sym: sym, h: h, unload: unload}
	p.name = sym.name(h)

	n := int(sym.paramCount(h))
	if n < 0 {
		sym.destroy(h)
		return nil, fmt.Errorf("%w: abt_param_count returned %d", processor.ErrInstantiationFailed, n)
	}

	id := make([]byte, infoSize)
	name := make([]byte, infoSize)
	label := make([]byte, infoSize)

	p.params = make([]hosted.ParameterInfo, n)
	for i := range p.params {
		clear(id)
		clear(name)
		clear(label)

		var def float64
		if rc := sym.paramInfo(h, int32(i), &id[0], &name[0], &label[0], infoSize, &def); rc != 0 {
			sym.destroy(h)
			return nil, fmt.Errorf("%w: abt_param_info(%d) returned %d", processor.ErrInstantiationFailed, i, rc)
		}

		p.params[i] = hosted.ParameterInfo{ID: cstring(id), Name: cstring(name), Label: cstring(label), Default: def}
	}

	return p, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	return string(b)
}

func (p *Plugin) Name() string { return p.name }

func (p *Plugin) Parameters() []hosted.ParameterInfo {
	return append([]hosted.ParameterInfo(nil), p.params...)
}

// Prepare sizes the float32 exchange buffer and forwards to abt_prepare.
func (p *Plugin) Prepare(sampleRate float64, blockSize, channels int) error {
	if need := blockSize * channels; cap(p.planar) < need {
		p.planar = make([]float32, need)
	}

	p.channels, p.frames = channels, blockSize

	if rc := p.sym.prepare(p.h, sampleRate, int32(blockSize), int32(channels)); rc != 0 {
		return fmt.Errorf("pluginabi: abt_prepare returned %d", rc)
	}

	return nil
}

func (p *Plugin) Release() { p.sym.release(p.h) }

// Process converts buf to float32, forwards events, and converts back.
func (p *Plugin) Process(buf *buffer.Audio, events *midi.Buffer) error {
	frames := buf.Frames()
	if buf.Channels() != p.channels || frames > p.frames {
		return errShape
	}

	planar := p.planar[:frames*p.channels]
	for ch := range p.channels {
		dst := planar[ch*frames : (ch+1)*frames]
		for i, v := range buf.Channel(ch) {
			dst[i] = float32(v)
		}
	}

	if p.sym.midi != nil {
		for i := range events.Len() {
			e := events.At(i)
			var d [3]int32
			for j := range int(e.Len) {
				d[j] = int32(e.Data[j])
			}
			p.sym.midi(p.h, int32(e.Offset), d[0], d[1], d[2])
		}
	}

	if frames == 0 {
		return nil
	}

	if rc := p.sym.process(p.h, &planar[0], int32(p.channels), int32(frames)); rc != 0 {
		return errProcess
	}

	for ch := range p.channels {
		src := planar[ch*frames : (ch+1)*frames]
		dst := buf.Channel(ch)
		for i, v := range src {
			dst[i] = float64(v)
		}
	}

	return nil
}

func (p *Plugin) SetParameter(index int, value float64) {
	if index < 0 || index >= len(p.params) {
		return
	}

	p.sym.setParam(p.h, int32(index), value)
}

func (p *Plugin) GetParameter(index int) float64 {
	if index < 0 || index >= len(p.params) {
		return 0
	}

	return p.sym.getParam(p.h, int32(index))
}

// Close destroys the instance and unloads the library. Later calls are
// no-ops.
func (p *Plugin) Close() error {
	if p.closed {
		return nil
	}

	p.closed = true
	p.sym.destroy(p.h)
	p.h = 0

	if p.unload != nil {
		return p.unload()
	}

	return nil
}
