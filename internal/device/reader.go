package device

import (
	"encoding/binary"
	"math"
)

// blockReader renders whole blocks on demand and serves them as
// little-endian float32 bytes to a pull-based player.
type blockReader struct {
	e   *engine
	out []float32
	buf []byte
	pos int
}

func newBlockReader(e *engine) *blockReader {
	r := &blockReader{
		e:   e,
		out: make([]float32, len(e.in)),
		buf: make([]byte, 4*len(e.in)),
	}
	r.pos = len(r.buf)

	return r
}

// Read fills p completely; it never returns an error.
func (r *blockReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if r.pos == len(r.buf) {
			r.fill()
		}

		c := copy(p[n:], r.buf[r.pos:])
		r.pos += c
		n += c
	}

	return n, nil
}

func (r *blockReader) fill() {
	r.e.render(r.out)

	for i, v := range r.out {
		binary.LittleEndian.PutUint32(r.buf[4*i:], math.Float32bits(v))
	}

	r.pos = 0
}
