package effectchain

import "fmt"

// Chain runs one channel through a compiled graph. All buffers are sized
// for ctx.MaxBlock when the chain is built; Process does not allocate.
type Chain struct {
	ctx      Context
	graph    *compiledGraph
	runtimes []Runtime
	bufs     [][]float64
}

func newChain(ctx Context, g *compiledGraph, registry *Registry) (*Chain, error) {
	if ctx.MaxBlock <= 0 {
		ctx.MaxBlock = defaultMaxBlock
	}

	c := &Chain{
		ctx:      ctx,
		graph:    g,
		runtimes: make([]Runtime, len(g.Nodes)),
		bufs:     make([][]float64, len(g.Nodes)),
	}

	for i, node := range g.Nodes {
		c.bufs[i] = make([]float64, ctx.MaxBlock)

		if isStructuralNodeType(node.Type) {
			continue
		}

		rt, err := registry.build(c.ctx, node.Type)
		if err != nil {
			return nil, err
		}

		if err := rt.Configure(ctx, node); err != nil {
			return nil, fmt.Errorf("effectchain: configure node %q (%s): %w", node.ID, node.Type, err)
		}

		c.runtimes[i] = rt
	}

	return c, nil
}

// Process applies the graph to block in place. Blocks longer than the
// prepared maximum are left untouched.
func (c *Chain) Process(block []float64) {
	n := len(block)
	if n == 0 || n > c.ctx.MaxBlock {
		return
	}

	g := c.graph
	for _, id := range g.Order {
		dst := c.bufs[id][:n]

		if id == g.Input {
			copy(dst, block)
			continue
		}

		node := &g.Nodes[id]
		c.mixParents(dst, g.Incoming[id], node.Type == nodeTypeSum)

		if rt := c.runtimes[id]; rt != nil && !node.Bypassed {
			rt.Process(dst)
		}
	}

	copy(block, c.bufs[g.Output][:n])
}

// mixParents writes the parents' outputs into dst. A sum node adds them;
// every other node averages them so a fan-in never changes level.
func (c *Chain) mixParents(dst []float64, parents []int, sum bool) {
	switch len(parents) {
	case 0:
		clear(dst)
		return
	case 1:
		copy(dst, c.bufs[parents[0]][:len(dst)])
		return
	}

	copy(dst, c.bufs[parents[0]][:len(dst)])
	for _, p := range parents[1:] {
		src := c.bufs[p][:len(dst)]
		for i := range dst {
			dst[i] += src[i]
		}
	}

	if sum {
		return
	}

	scale := 1.0 / float64(len(parents))
	for i := range dst {
		dst[i] *= scale
	}
}

// setParam forwards a bound parameter to a node runtime.
func (c *Chain) setParam(node int, key string, value float64) bool {
	t, ok := c.runtimes[node].(Tunable)
	if !ok {
		return false
	}

	return t.SetParam(key, value)
}

// Reset clears the state of every stateful runtime.
func (c *Chain) Reset() {
	for _, rt := range c.runtimes {
		if r, ok := rt.(Resetter); ok {
			r.Reset()
		}
	}
}

// NodeRuntime returns the Runtime for the given node ID, or nil.
func (c *Chain) NodeRuntime(nodeID string) Runtime {
	i, ok := c.graph.Index[nodeID]
	if !ok {
		return nil
	}

	return c.runtimes[i]
}
