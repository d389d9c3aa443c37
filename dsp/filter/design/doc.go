// Package design computes biquad coefficients (RBJ audio-EQ cookbook) for
// the schematic filter and tone nodes.
package design
