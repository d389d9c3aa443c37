// Package effects provides the sample-level building blocks behind the
// schematic node types: a waveshaping drive stage, a DC blocker, and a
// smoothed output level. Every type processes in place and keeps its state
// between blocks; none of them allocate after construction.
package effects
