package effectchain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownNodeType is returned when a node names a type that is not
// registered.
var ErrUnknownNodeType = errors.New("effectchain: unknown node type")

var errDuplicateType = errors.New("effectchain: node type already registered")

// Factory builds one Runtime for a node of its type.
type Factory func(ctx Context) (Runtime, error)

// Registry maps node type names to factories. It is not safe for
// concurrent registration; compile from a fully populated registry.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds factory under nodeType. Structural types (split, sum and
// the reserved _input/_output) cannot be overridden.
func (r *Registry) Register(nodeType string, factory Factory) error {
	switch {
	case nodeType == "":
		return errors.New("effectchain: empty node type")
	case factory == nil:
		return fmt.Errorf("effectchain: nil factory for %q", nodeType)
	case isStructuralNodeType(nodeType):
		return fmt.Errorf("effectchain: node type %q is structural", nodeType)
	}

	if _, ok := r.factories[nodeType]; ok {
		return fmt.Errorf("%w: %q", errDuplicateType, nodeType)
	}

	r.factories[nodeType] = factory

	return nil
}

// MustRegister is Register for init-time tables; it panics on error.
func (r *Registry) MustRegister(nodeType string, factory Factory) {
	if err := r.Register(nodeType, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for nodeType, or nil.
func (r *Registry) Lookup(nodeType string) Factory {
	return r.factories[nodeType]
}

// Types returns the registered node types in sorted order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

// build instantiates a runtime for nodeType.
func (r *Registry) build(ctx Context, nodeType string) (Runtime, error) {
	factory := r.Lookup(nodeType)
	if factory == nil {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownNodeType, nodeType, strings.Join(r.Types(), ", "))
	}

	rt, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("effectchain: create %s: %w", nodeType, err)
	}

	return rt, nil
}
