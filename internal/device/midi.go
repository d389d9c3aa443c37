package device

import (
	"errors"
	"fmt"
	"io"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"

	"github.com/cwbudde/algo-abtest/abtest/midi"
)

// ErrNoPort is returned when no MIDI input matches.
var ErrNoPort = errors.New("device: no matching MIDI input")

// MIDIInput is an open MIDI input port feeding a queue.
type MIDIInput struct {
	name    string
	stop    func()
	closers []io.Closer
}

// Name returns the port name.
func (m *MIDIInput) Name() string {
	return m.name
}

// Close stops listening and closes the port and driver.
func (m *MIDIInput) Close() error {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}

	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}

	m.closers = nil

	return errors.Join(errs...)
}

// pickPort returns the port named exactly want, else the first whose name
// contains want case-insensitively. An empty want picks the first port.
func pickPort[P fmt.Stringer](ports []P, want string) (P, error) {
	var zero P

	if len(ports) == 0 {
		return zero, fmt.Errorf("%w: no inputs", ErrNoPort)
	}

	if want == "" {
		return ports[0], nil
	}

	for _, p := range ports {
		if p.String() == want {
			return p, nil
		}
	}

	lw := strings.ToLower(want)
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), lw) {
			return p, nil
		}
	}

	return zero, fmt.Errorf("%w: %q", ErrNoPort, want)
}

// forward queues msg unless it is a system real-time byte (clock, active
// sensing and the like), which processors never need.
func forward(q *midi.Queue, msg gomidi.Message) bool {
	if len(msg) == 1 && msg[0] >= 0xF8 {
		return false
	}

	return q.Push(msg)
}
