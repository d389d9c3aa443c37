// Package processor defines the contract shared by every audio processor
// the harness can compare, along with the parameter model and the error
// taxonomy for loading and running processors.
//
// Two variants implement the contract: a hosted binary plugin
// (abtest/hosted) and a native DSP graph compiled from a schematic
// (abtest/native). The router, synchronizer and session controller only
// see this interface.
package processor

import (
	"fmt"
	"path/filepath"

	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
)

// Kind tags the processor variant.
type Kind int

const (
	// KindUnknown is reported for sources whose kind could not be detected.
	KindUnknown Kind = iota
	// KindHostedBinary is a plugin loaded from a binary.
	KindHostedBinary
	// KindNativeDSP is a processor compiled from a schematic.
	KindNativeDSP
)

func (k Kind) String() string {
	switch k {
	case KindHostedBinary:
		return "hosted"
	case KindNativeDSP:
		return "native"
	case KindUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Parameter describes one normalized parameter. Value and Default lie in
// [0, 1]; Label is an optional unit string.
type Parameter struct {
	ID      string
	Name    string
	Value   float64
	Default float64
	Label   string
}

// Processor transforms audio blocks in place.
//
// Lifecycle: a factory returns a Loaded processor; Prepare makes it
// Prepared; Release returns it to Loaded; Close destroys it. Prepare,
// Release and Close run on control goroutines and never concurrently with
// Process. Process runs on the audio goroutine, must not allocate or
// block, and only ever sees values staged by SetParameter at block start.
type Processor interface {
	ID() string
	Name() string
	Kind() Kind
	Loaded() bool
	Prepared() bool

	// Prepare allocates per-stream state. Repeating it with identical
	// arguments is a no-op; different arguments release the previous
	// preparation first. Failure leaves the processor Loaded.
	Prepare(sampleRate float64, blockSize, channels int) error

	// Process transforms buf in place. An unprepared processor, or a block
	// whose shape exceeds the preparation, passes audio through unchanged
	// and returns nil. A failure inside the processor returns
	// ErrProcessingFault.
	Process(buf *buffer.Audio, events *midi.Buffer) error

	Release()
	Close() error

	// Parameters returns the parameter list in the processor's own order.
	Parameters() []Parameter
	// GetParameter returns the current normalized value, or 0 for an
	// unknown id.
	GetParameter(id string) float64
	// SetParameter stages a normalized value for the next block.
	SetParameter(id string, value float64) error
}

// Notifier is implemented by processors whose parameters can change from
// their own surface (a plugin editor). The callback runs on whatever
// goroutine the change originated on.
type Notifier interface {
	OnParameterChange(fn func(id string, value float64))
}

// StableID derives a processor identity from its kind and source path.
func StableID(kind Kind, path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	return kind.String() + ":" + filepath.Clean(path)
}
