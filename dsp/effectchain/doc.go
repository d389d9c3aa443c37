// Package effectchain compiles a schematic (a small graph of DSP nodes with
// named controls) into a kernel that processes planar audio block by block.
//
// A schematic is read from JSON or YAML:
//
//	name: Distortion+
//	controls:
//	  - {id: drive, name: Drive, default: 0.5}
//	nodes:
//	  - {id: _input, type: _input}
//	  - {id: clip, type: drive, params: {mode: diode, gain: {control: drive, min: 1, max: 60, taper: log}}}
//	  - {id: _output, type: _output}
//	connections:
//	  - {from: _input, to: clip}
//	  - {from: clip, to: _output}
//
// A node parameter is either a literal (number, string, bool, number list)
// or a binding that maps a normalized control value onto [min, max].
// [Compile] validates the graph and trial-configures every node; a
// [Program] then yields independent [Kernel] instances, one chain per
// channel, whose Process path does not allocate.
package effectchain
