package hosted

import (
	"context"
	"errors"

	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
)

// ErrNoEditor is returned when the plugin has no editor of its own.
var ErrNoEditor = errors.New("hosted: plugin has no editor")

// ParameterInfo describes the plugin parameter at one index.
type ParameterInfo struct {
	// ID is the plugin's own stable identifier. It may be empty, in which
	// case the processor derives one from Name.
	ID      string
	Name    string
	Label   string
	Default float64
}

// Plugin is one instantiated plugin binary. Parameter indices follow the
// order of Parameters. Process and SetParameter are called from the audio
// goroutine; everything else from control goroutines.
type Plugin interface {
	Name() string
	Parameters() []ParameterInfo
	Prepare(sampleRate float64, blockSize, channels int) error
	Release()
	Process(buf *buffer.Audio, events *midi.Buffer) error
	SetParameter(index int, value float64)
	GetParameter(index int) float64
	Close() error
}

// Listener is implemented by plugins that report parameter changes made
// by their own editor. fn may be called from any goroutine, including
// synchronously from inside SetParameter.
type Listener interface {
	SetParameterListener(fn func(index int, value float64))
}

// Editor is implemented by plugins with a native editor window.
type Editor interface {
	HasEditor() bool
	OpenEditor() error
	CloseEditor()
}

// Loader instantiates plugins from binaries on disk. Errors should wrap
// processor.ErrSourceMissing, ErrSourceUnsupported or
// ErrInstantiationFailed.
type Loader interface {
	Load(ctx context.Context, path string) (Plugin, error)
}
