//go:build !headless

package device

import (
	"fmt"
	"io"
	"log/slog"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/cwbudde/algo-abtest/abtest/midi"
)

// OpenMIDI opens the input port matching port and pushes its messages to
// q from the driver goroutine.
func OpenMIDI(port string, q *midi.Queue, logger *slog.Logger) (*MIDIInput, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("%w: rtmidi: %w", ErrUnavailable, err)
	}

	m := &MIDIInput{closers: []io.Closer{drv}}

	ins, err := drv.Ins()
	if err != nil {
		return nil, joinClose(m, fmt.Errorf("device: list MIDI inputs: %w", err))
	}

	in, err := pickPort(ins, port)
	if err != nil {
		return nil, joinClose(m, err)
	}

	if err := in.Open(); err != nil {
		return nil, joinClose(m, fmt.Errorf("device: open MIDI input %q: %w", in.String(), err))
	}

	m.name = in.String()
	m.closers = append([]io.Closer{in}, m.closers...)

	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
		forward(q, msg)
	}, gomidi.HandleError(func(err error) {
		logger.Warn("MIDI listener error", "port", m.name, "err", err)
	}))
	if err != nil {
		return nil, joinClose(m, fmt.Errorf("device: listen on %q: %w", m.name, err))
	}

	m.stop = stop
	logger.Info("MIDI input connected", "port", m.name)

	return m, nil
}

func joinClose(m *MIDIInput, err error) error {
	if cerr := m.Close(); cerr != nil {
		return fmt.Errorf("%w (close: %w)", err, cerr)
	}

	return err
}
