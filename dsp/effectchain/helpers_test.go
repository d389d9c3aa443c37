package effectchain

import (
	"testing"
)

// stubRuntime is a minimal Runtime implementation for testing.
type stubRuntime struct {
	configureErr   error
	configureCalls int
	processCalls   int
	lastCtx        Context
	lastParams     Params
}

func (s *stubRuntime) Configure(ctx Context, params Params) error {
	s.configureCalls++
	s.lastCtx = ctx
	s.lastParams = params

	return s.configureErr
}

func (s *stubRuntime) Process(_ []float64) {
	s.processCalls++
}

// addRuntime adds a constant to every sample.
type addRuntime struct {
	value float64
}

func (a *addRuntime) Configure(_ Context, params Params) error {
	a.value = params.GetNum("value", 0)
	return nil
}

func (a *addRuntime) SetParam(key string, v float64) bool {
	if key != "value" {
		return false
	}

	a.value = v

	return true
}

func (a *addRuntime) Process(block []float64) {
	for i := range block {
		block[i] += a.value
	}
}

func testRegistry() *Registry {
	r := DefaultRegistry()
	r.MustRegister("add", func(Context) (Runtime, error) { return &addRuntime{}, nil })

	return r
}

func mustParseJSON(t *testing.T, src string) *Schematic {
	t.Helper()

	s, err := ParseJSON([]byte(src))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	return s
}

func mustCompile(t *testing.T, src string) *Program {
	t.Helper()

	p, err := Compile(mustParseJSON(t, src), testRegistry())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	return p
}

const linearAdd = `{
  "name": "adder",
  "controls": [{"id": "offset", "name": "Offset", "default": 0.5}],
  "nodes": [
    {"id": "_input", "type": "_input"},
    {"id": "a", "type": "add", "params": {"value": {"control": "offset", "min": 0, "max": 2}}},
    {"id": "_output", "type": "_output"}
  ],
  "connections": [
    {"from": "_input", "to": "a"},
    {"from": "a", "to": "_output"}
  ]
}`
