// Package midi carries sample-timestamped MIDI events to processors. Event
// storage is preallocated so the audio goroutine never allocates.
package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// DefaultCapacity is the number of events a Buffer holds per block.
const DefaultCapacity = 256

// Event is a short (at most three byte) channel or system message placed
// at a frame offset within the current block.
type Event struct {
	Offset int
	Data   [3]byte
	Len    uint8
}

// Message returns the raw bytes as a gomidi message. The slice aliases the
// event storage and is valid until the buffer is cleared.
func (e *Event) Message() gomidi.Message {
	return e.Data[:e.Len]
}

// Buffer is a fixed-capacity list of events for one block, ordered by
// insertion.
type Buffer struct {
	events []Event
}

// NewBuffer returns a buffer holding up to capacity events.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Buffer{events: make([]Event, 0, capacity)}
}

// Add appends msg at offset. It reports false when the buffer is full or
// msg is empty or longer than three bytes (SysEx is not carried).
func (b *Buffer) Add(offset int, msg gomidi.Message) bool {
	if len(msg) == 0 || len(msg) > 3 || len(b.events) == cap(b.events) {
		return false
	}

	e := Event{Offset: max(offset, 0), Len: uint8(len(msg))}
	copy(e.Data[:], msg)
	b.events = append(b.events, e)

	return true
}

// Len returns the number of events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}

	return len(b.events)
}

// At returns event i.
func (b *Buffer) At(i int) *Event {
	return &b.events[i]
}

// Clear drops all events, keeping capacity.
func (b *Buffer) Clear() {
	b.events = b.events[:0]
}
