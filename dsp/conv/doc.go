// Package conv provides streaming FFT convolution for impulse-response
// nodes such as speaker cabinets.
//
// A [Streaming] convolver is built once for a kernel and a maximum block
// size and then fed blocks of any length up to that maximum. The overlap
// tail carries across calls, so output is continuous regardless of how the
// host slices the stream.
//
//	c, err := conv.NewStreaming(ir, 512)
//	c.ProcessInPlace(block)
package conv
