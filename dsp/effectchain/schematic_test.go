package effectchain

import (
	"errors"
	"testing"
)

const yamlSchematic = `
name: Distortion+
controls:
  - {id: drive, name: Drive, default: 0.5}
  - {id: level, name: Level, default: 0.7, label: dB}
nodes:
  - id: hp
    type: highpass
    params: {freqHz: 40}
  - id: clip
    type: drive
    params:
      mode: diode
      gain: {control: drive, min: 1, max: 60, taper: log}
  - id: out
    type: gain
    params:
      gainDb: {control: level, min: -24, max: 6}
connections:
  - {from: _input, to: hp}
  - {from: hp, to: clip}
  - {from: clip, to: out}
  - {from: out, to: _output}
`

func TestParseYAML(t *testing.T) {
	t.Parallel()

	s, err := Decode("dist.yaml", []byte(yamlSchematic))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Name != "Distortion+" || len(s.Controls) != 2 || len(s.Nodes) != 3 {
		t.Fatalf("decoded %+v", s)
	}

	p := parseNodeParams(s.Nodes[1])
	b, ok := p.Bind["gain"]
	if !ok {
		t.Fatal("gain binding missing")
	}
	if b.Control != "drive" || b.Min != 1 || b.Max != 60 || b.Taper != TaperLog {
		t.Fatalf("binding = %+v", b)
	}
	if p.GetStr("mode", "") != "diode" {
		t.Fatalf("mode = %q", p.GetStr("mode", ""))
	}
	if got := parseNodeParams(s.Nodes[0]).GetNum("freqHz", 0); got != 40 {
		t.Fatalf("freqHz = %v, want 40 (yaml int)", got)
	}

	if _, err := Compile(s, nil); err != nil {
		t.Fatalf("Compile: %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{name: "syntax", src: `{"name": `},
		{name: "control without id", src: `{"controls": [{"name": "x"}]}`},
		{name: "duplicate control", src: `{"controls": [{"id": "a"}, {"id": "a"}]}`},
		{name: "default out of range", src: `{"controls": [{"id": "a", "default": 1.5}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseJSON([]byte(tt.src)); !errors.Is(err, ErrInvalidSchematic) {
				t.Fatalf("err = %v, want ErrInvalidSchematic", err)
			}
		})
	}
}

func TestBindingMap(t *testing.T) {
	t.Parallel()

	lin := Binding{Min: -10, Max: 10}
	if got := lin.Map(0.5); got != 0 {
		t.Fatalf("linear Map(0.5) = %v", got)
	}
	if got := lin.Map(2); got != 10 {
		t.Fatalf("Map clamps input: got %v", got)
	}

	inv := Binding{Min: 0, Max: 1, Taper: TaperInverse}
	if got := inv.Map(1); got != 0 {
		t.Fatalf("inverse Map(1) = %v", got)
	}

	log := Binding{Min: 20, Max: 20000, Taper: parseTaper("log")}
	if got := log.Map(0); got != 20 {
		t.Fatalf("log Map(0) = %v", got)
	}
}
