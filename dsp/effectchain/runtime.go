package effectchain

// Context provides environmental information that node runtimes need.
type Context struct {
	SampleRate float64
	MaxBlock   int
}

// Runtime is the per-node processing and configuration contract.
type Runtime interface {
	Configure(ctx Context, params Params) error
	Process(block []float64)
}

// Tunable is implemented by runtimes whose parameters can be driven by a
// control. SetParam runs on the audio goroutine between blocks and must
// not allocate; it reports false for keys it does not recognize.
type Tunable interface {
	SetParam(key string, value float64) bool
}

// Resetter is implemented by runtimes that carry state across blocks.
type Resetter interface {
	Reset()
}
