package midi

import (
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Queue hands events from one producer goroutine (a MIDI input driver) to
// the audio goroutine. It is a single-producer single-consumer ring and
// never blocks; Push drops messages when the ring is full.
type Queue struct {
	ring    []Event
	mask    uint64
	head    atomic.Uint64 // next slot to read
	tail    atomic.Uint64 // next slot to write
	dropped atomic.Uint64
}

// NewQueue returns a queue with capacity rounded up to a power of two.
func NewQueue(capacity int) *Queue {
	n := 1
	for n < max(capacity, 2) {
		n <<= 1
	}

	return &Queue{ring: make([]Event, n), mask: uint64(n - 1)}
}

// Push enqueues msg. It reports false, counting a drop, when the ring is
// full or msg cannot be carried.
func (q *Queue) Push(msg gomidi.Message) bool {
	if len(msg) == 0 || len(msg) > 3 {
		q.dropped.Add(1)
		return false
	}

	tail := q.tail.Load()
	if tail-q.head.Load() == uint64(len(q.ring)) {
		q.dropped.Add(1)
		return false
	}

	e := &q.ring[tail&q.mask]
	e.Offset = 0
	e.Len = uint8(len(msg))
	copy(e.Data[:], msg)
	q.tail.Store(tail + 1)

	return true
}

// Drain moves every queued event into dst at offset 0, stopping early if
// dst fills up. It returns the number of events moved.
func (q *Queue) Drain(dst *Buffer) int {
	head := q.head.Load()
	tail := q.tail.Load()

	n := 0
	for ; head != tail; head++ {
		e := &q.ring[head&q.mask]
		if !dst.Add(0, e.Message()) {
			break
		}
		n++
	}

	q.head.Store(head)

	return n
}

// Dropped returns the number of messages rejected by Push.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
