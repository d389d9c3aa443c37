package router

import (
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
)

// ProcessBlock routes buf through the published pair. It is the audio
// callback entry point and must only be called from one goroutine.
func (r *Router) ProcessBlock(buf *buffer.Audio, events *midi.Buffer) {
	r.seq.Add(1)

	var a, b processor.Processor
	if ref := r.slots[SlotA].Load(); ref != nil {
		a = ref.p
	}

	if ref := r.slots[SlotB].Load(); ref != nil {
		b = ref.p
	}

	r.Process(buf, events, a, b)
	r.seq.Add(1)
}

// Process routes buf through a or b according to the selection, in place.
// The selection is read once. If the selected processor is absent or
// unprepared the block passes through; if it fails or panics, the dry
// input is restored and the fault counted. The selection is never changed
// by a fault.
func (r *Router) Process(buf *buffer.Audio, events *midi.Buffer, a, b processor.Processor) {
	w := r.work.Load()
	r.blocks.Add(1)
	w.in.Process(buf)

	want := Slot(r.selection.Load())
	prev := r.active

	switched := want != prev
	if switched {
		r.active = want
		r.switches.Add(1)
	}

	target := pick(want, a, b)
	if !usable(target, buf, w) {
		r.passThrough.Add(1)
		w.out.Process(buf)

		return
	}

	w.dry.SetFrames(buf.Frames())
	w.dry.CopyFrom(buf)

	if switched && r.crossfade.Load() {
		if from := pick(prev, a, b); usable(from, buf, w) {
			r.crossfadeBlock(w, buf, events, from, target)
			w.out.Process(buf)

			return
		}
	}

	if !r.run(target, buf, events) {
		buf.CopyFrom(w.dry)
	}

	w.out.Process(buf)
}

// crossfadeBlock renders one block from both processors and blends
// from the outgoing to the incoming one, reaching the incoming signal
// exactly on the last sample.
func (r *Router) crossfadeBlock(w *scratch, buf *buffer.Audio, events *midi.Buffer, from, to processor.Processor) {
	w.old.SetFrames(buf.Frames())
	w.old.CopyFrom(w.dry)

	oldOK := r.run(from, w.old, events)
	if !r.run(to, buf, events) {
		buf.CopyFrom(w.dry)
		return
	}

	if !oldOK {
		return
	}

	n := buf.Frames()
	w.ramp(n)

	for ch := range buf.Channels() {
		dst := buf.Channel(ch)
		old := w.old.Channel(ch)
		vecmath.MulBlockInPlace(dst, w.up[:n])
		vecmath.MulBlockInPlace(old, w.down[:n])
		vecmath.AddBlockInPlace(dst, old)
	}

	r.crossfades.Add(1)
}

// run processes buf with p and reports success. Panics count as faults.
func (r *Router) run(p processor.Processor, buf *buffer.Audio, events *midi.Buffer) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
			r.faults.Add(1)
		}
	}()

	if err := p.Process(buf, events); err != nil {
		r.faults.Add(1)
		return false
	}

	return true
}

// ramp fills up with (i+1)/n and down with its complement.
func (w *scratch) ramp(n int) {
	if w.rampLen == n {
		return
	}

	for i := range n {
		g := float64(i+1) / float64(n)
		w.up[i] = g
		w.down[i] = 1 - g
	}

	w.rampLen = n
}

func pick(s Slot, a, b processor.Processor) processor.Processor {
	if s == SlotB {
		return b
	}

	return a
}

func usable(p processor.Processor, buf *buffer.Audio, w *scratch) bool {
	return p != nil && p.Prepared() && buf.Channels() == w.channels && buf.Frames() <= w.dry.Cap()
}
