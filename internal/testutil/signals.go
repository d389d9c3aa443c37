// Package testutil holds deterministic fixtures and comparison helpers
// shared by the package tests.
package testutil

import (
	"math"
	"math/rand"

	"github.com/cwbudde/algo-abtest/dsp/buffer"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}

	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}

	return out
}

// NoiseAudio returns a planar block whose channels carry independent
// deterministic noise derived from seed.
func NoiseAudio(seed int64, channels, frames int) *buffer.Audio {
	chs := make([][]float64, channels)
	for ch := range chs {
		chs[ch] = DeterministicNoise(seed+int64(ch), 0.5, frames)
	}

	return buffer.FromChannels(chs...)
}

// Interleave flattens a planar block to interleaved float32, as a device
// callback would deliver it.
func Interleave(a *buffer.Audio) []float32 {
	out := make([]float32, a.Frames()*a.Channels())
	a.Interleave(out)

	return out
}

// Blocks splits an interleaved stream into consecutive blocks of frames
// frames each. A trailing partial block is kept.
func Blocks(stream []float32, channels, frames int) [][]float32 {
	step := channels * frames
	var out [][]float32
	for start := 0; start < len(stream); start += step {
		end := min(start+step, len(stream))
		out = append(out, stream[start:end])
	}

	return out
}
