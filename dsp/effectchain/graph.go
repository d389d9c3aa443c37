package effectchain

import (
	"errors"
	"fmt"
)

const (
	// InputNodeID is the reserved node ID for the chain input.
	InputNodeID = "_input"
	// OutputNodeID is the reserved node ID for the chain output.
	OutputNodeID = "_output"

	nodeTypeSplit = "split"
	nodeTypeSum   = "sum"
)

// ErrInvalidGraph is returned for schematics whose node graph cannot be
// scheduled.
var ErrInvalidGraph = errors.New("effectchain: invalid graph")

// compiledGraph is the scheduled form of a schematic: nodes in declaration
// order plus a topological processing order over their indices.
type compiledGraph struct {
	Nodes    []Params
	Index    map[string]int
	Incoming [][]int
	Order    []int
	Input    int
	Output   int
}

// parseGraph validates the node graph and sorts it topologically (Kahn's
// algorithm, seeded in declaration order so the schedule is deterministic).
// The reserved input and output nodes are added when not declared.
//
//nolint:cyclop
func parseGraph(s *Schematic) (*compiledGraph, error) {
	g := &compiledGraph{Index: make(map[string]int, len(s.Nodes)+2)}

	add := func(p Params) error {
		if _, dup := g.Index[p.ID]; dup {
			return fmt.Errorf("%w: duplicate node %q", ErrInvalidGraph, p.ID)
		}

		g.Index[p.ID] = len(g.Nodes)
		g.Nodes = append(g.Nodes, p)

		return nil
	}

	for i, n := range s.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node %d has no id", ErrInvalidGraph, i)
		}

		p := parseNodeParams(n)
		if isReservedNodeID(n.ID) {
			p.Type = n.ID
		} else if n.Type == "" {
			return nil, fmt.Errorf("%w: node %q has no type", ErrInvalidGraph, n.ID)
		}

		if err := add(p); err != nil {
			return nil, err
		}
	}

	for _, id := range []string{InputNodeID, OutputNodeID} {
		if _, ok := g.Index[id]; !ok {
			if err := add(Params{ID: id, Type: id}); err != nil {
				return nil, err
			}
		}
	}

	g.Input = g.Index[InputNodeID]
	g.Output = g.Index[OutputNodeID]
	g.Incoming = make([][]int, len(g.Nodes))

	outgoing := make([][]int, len(g.Nodes))
	indegree := make([]int, len(g.Nodes))

	for _, c := range s.Connections {
		from, ok := g.Index[c.From]
		if !ok {
			return nil, fmt.Errorf("%w: connection from unknown node %q", ErrInvalidGraph, c.From)
		}

		to, ok := g.Index[c.To]
		if !ok {
			return nil, fmt.Errorf("%w: connection to unknown node %q", ErrInvalidGraph, c.To)
		}

		if from == to || to == g.Input || from == g.Output {
			return nil, fmt.Errorf("%w: illegal connection %s -> %s", ErrInvalidGraph, c.From, c.To)
		}

		outgoing[from] = append(outgoing[from], to)
		g.Incoming[to] = append(g.Incoming[to], from)
		indegree[to]++
	}

	if len(g.Incoming[g.Output]) == 0 {
		return nil, fmt.Errorf("%w: output is not connected", ErrInvalidGraph)
	}

	queue := make([]int, 0, len(g.Nodes))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	g.Order = make([]int, 0, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		g.Order = append(g.Order, id)
		for _, to := range outgoing[id] {
			indegree[to]--
			if indegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if len(g.Order) != len(g.Nodes) {
		return nil, fmt.Errorf("%w: contains cycle", ErrInvalidGraph)
	}

	return g, nil
}

func isReservedNodeID(id string) bool {
	return id == InputNodeID || id == OutputNodeID
}

// isStructuralNodeType reports I/O and routing nodes that have no runtime.
func isStructuralNodeType(nodeType string) bool {
	return nodeType == InputNodeID ||
		nodeType == OutputNodeID ||
		nodeType == nodeTypeSplit ||
		nodeType == nodeTypeSum
}
