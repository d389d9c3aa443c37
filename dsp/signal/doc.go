// Package signal provides streaming test sources: a phase-continuous sine
// oscillator and seeded white noise, both filling interleaved float32
// blocks in place.
package signal
