package effectchain

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSchematic is returned when a schematic cannot be decoded or is
// structurally unusable.
var ErrInvalidSchematic = errors.New("effectchain: invalid schematic")

// Schematic is the decoded source form of a native processor.
type Schematic struct {
	Name        string           `json:"name"        yaml:"name"`
	Controls    []ControlSpec    `json:"controls"    yaml:"controls"`
	Nodes       []NodeSpec       `json:"nodes"       yaml:"nodes"`
	Connections []ConnectionSpec `json:"connections" yaml:"connections"`
}

// ControlSpec declares one operator-facing control. Default is normalized.
type ControlSpec struct {
	ID      string  `json:"id"      yaml:"id"`
	Name    string  `json:"name"    yaml:"name"`
	Label   string  `json:"label"   yaml:"label"`
	Default float64 `json:"default" yaml:"default"`
}

// NodeSpec is one node of the schematic graph.
type NodeSpec struct {
	ID       string         `json:"id"       yaml:"id"`
	Type     string         `json:"type"     yaml:"type"`
	Bypassed bool           `json:"bypassed" yaml:"bypassed"`
	Params   map[string]any `json:"params"   yaml:"params"`
}

// ConnectionSpec is a directed edge between two nodes.
type ConnectionSpec struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to"   yaml:"to"`
}

// Decode parses a schematic, choosing YAML for .yaml/.yml names and JSON
// otherwise.
func Decode(name string, data []byte) (*Schematic, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes a JSON schematic.
func ParseJSON(data []byte) (*Schematic, error) {
	var s Schematic
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchematic, err)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// ParseYAML decodes a YAML schematic.
func ParseYAML(data []byte) (*Schematic, error) {
	var s Schematic
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchematic, err)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

func (s *Schematic) validate() error {
	seen := make(map[string]struct{}, len(s.Controls))
	for i, c := range s.Controls {
		if c.ID == "" {
			return fmt.Errorf("%w: control %d has no id", ErrInvalidSchematic, i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate control %q", ErrInvalidSchematic, c.ID)
		}
		if c.Default < 0 || c.Default > 1 {
			return fmt.Errorf("%w: control %q default %g outside [0, 1]", ErrInvalidSchematic, c.ID, c.Default)
		}

		seen[c.ID] = struct{}{}
	}

	return nil
}

// ControlIndex returns the position of the control with the given id.
func (s *Schematic) ControlIndex(id string) (int, bool) {
	for i, c := range s.Controls {
		if c.ID == id {
			return i, true
		}
	}

	return -1, false
}
