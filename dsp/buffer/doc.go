// Package buffer provides the planar multi-channel audio block that flows
// through the A/B harness. A block is allocated once at preparation time and
// resized within its capacity afterwards, so the audio path never allocates.
// Device code speaks interleaved float32; Deinterleave and Interleave bridge
// the two layouts.
package buffer
