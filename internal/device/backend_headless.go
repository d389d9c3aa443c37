//go:build headless

package device

import (
	"fmt"
	"log/slog"

	"github.com/cwbudde/algo-abtest/abtest/midi"
)

func newOto(*engine) (Stream, error) {
	return nil, fmt.Errorf("%w: oto not built in", ErrUnavailable)
}

func newPortAudio(*engine) (Stream, error) {
	return nil, fmt.Errorf("%w: portaudio not built in", ErrUnavailable)
}

// OpenMIDI is unavailable in headless builds.
func OpenMIDI(string, *midi.Queue, *slog.Logger) (*MIDIInput, error) {
	return nil, fmt.Errorf("%w: rtmidi not built in", ErrUnavailable)
}
