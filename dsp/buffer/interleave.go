package buffer

// Deinterleave reads frames from the interleaved slice src into a, sizing a
// to len(src)/Channels() frames. It reports false when the frame count
// exceeds capacity or the block has no channels; a is left unchanged then.
func (a *Audio) Deinterleave(src []float32) bool {
	nch := len(a.channels)
	if nch == 0 {
		return false
	}

	if !a.SetFrames(len(src) / nch) {
		return false
	}

	for ch, dst := range a.channels {
		for i := range dst {
			dst[i] = float64(src[i*nch+ch])
		}
	}

	return true
}

// Interleave writes a into dst, returning the number of frames written.
// Frames beyond len(dst)/Channels() are dropped.
func (a *Audio) Interleave(dst []float32) int {
	nch := len(a.channels)
	if nch == 0 {
		return 0
	}

	n := min(a.frames, len(dst)/nch)
	for ch, src := range a.channels {
		for i := range n {
			dst[i*nch+ch] = float32(src[i])
		}
	}

	return n
}
