package midi

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestBufferAddAndRead(t *testing.T) {
	t.Parallel()

	b := NewBuffer(2)
	require.True(t, b.Add(5, gomidi.NoteOn(0, 60, 100)))
	require.True(t, b.Add(-3, gomidi.NoteOff(0, 60)))
	require.False(t, b.Add(0, gomidi.NoteOn(0, 61, 1)), "buffer is full")
	require.Equal(t, 2, b.Len())

	var ch, key, vel uint8
	require.True(t, b.At(0).Message().GetNoteOn(&ch, &key, &vel))
	require.Equal(t, uint8(60), key)
	require.Equal(t, uint8(100), vel)
	require.Equal(t, 5, b.At(0).Offset)
	require.Equal(t, 0, b.At(1).Offset, "negative offsets clamp to the block start")

	b.Clear()
	require.Equal(t, 0, b.Len())
}

func TestBufferRejectsSysEx(t *testing.T) {
	t.Parallel()

	b := NewBuffer(4)
	require.False(t, b.Add(0, gomidi.Message{0xF0, 0x7E, 0x7F, 0x09, 0x01, 0xF7}))
	require.False(t, b.Add(0, nil))
}

func TestNilBufferLen(t *testing.T) {
	t.Parallel()

	var b *Buffer
	require.Equal(t, 0, b.Len())
}

func TestQueueFIFOAndOverflow(t *testing.T) {
	t.Parallel()

	q := NewQueue(3) // rounds up to 4
	for i := range 4 {
		require.True(t, q.Push(gomidi.NoteOn(0, uint8(60+i), 1)))
	}
	require.False(t, q.Push(gomidi.NoteOn(0, 70, 1)))
	require.Equal(t, uint64(1), q.Dropped())

	dst := NewBuffer(8)
	require.Equal(t, 4, q.Drain(dst))

	var ch, key, vel uint8
	for i := range 4 {
		require.True(t, dst.At(i).Message().GetNoteOn(&ch, &key, &vel))
		require.Equal(t, uint8(60+i), key)
	}
	require.Equal(t, 0, q.Drain(dst))
}

func TestQueueDrainStopsWhenBufferFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(8)
	for range 3 {
		q.Push(gomidi.NoteOff(1, 10))
	}

	require.Equal(t, 2, q.Drain(NewBuffer(2)))
	require.Equal(t, 1, q.Drain(NewBuffer(2)), "undelivered events stay queued")
}

func TestQueueConcurrentProducer(t *testing.T) {
	t.Parallel()

	const total = 10000
	q := NewQueue(64)
	dst := NewBuffer(64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if q.Push(gomidi.NoteOn(0, uint8(i%128), 1)) {
				i++
			}
		}
	}()

	var ch, key, vel uint8
	received := 0
	for received < total {
		dst.Clear()
		q.Drain(dst)
		for i := range dst.Len() {
			require.True(t, dst.At(i).Message().GetNoteOn(&ch, &key, &vel))
			require.Equal(t, uint8(received%128), key)
			received++
		}
	}

	wg.Wait()
}

func TestBufferAllocs(t *testing.T) {
	b := NewBuffer(16)
	msg := gomidi.NoteOn(0, 60, 100)
	allocs := testing.AllocsPerRun(100, func() {
		b.Clear()
		b.Add(0, msg)
		_ = b.At(0).Message()
	})
	require.Zero(t, allocs)
}
