package effectchain

// DefaultRegistry returns a registry with every built-in node type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)

	return r
}

// RegisterBuiltins adds the built-in node types to r.
func RegisterBuiltins(r *Registry) {
	r.MustRegister("gain", func(Context) (Runtime, error) { return &gainRuntime{}, nil })
	r.MustRegister("drive", func(Context) (Runtime, error) { return &driveRuntime{}, nil })
	r.MustRegister("dcblock", func(Context) (Runtime, error) { return &dcBlockRuntime{}, nil })
	r.MustRegister("cabinet", func(Context) (Runtime, error) { return &cabinetRuntime{}, nil })
	r.MustRegister(nodeTypeLowpass, newFilterRuntime(nodeTypeLowpass))
	r.MustRegister(nodeTypeHighpass, newFilterRuntime(nodeTypeHighpass))
	r.MustRegister(nodeTypePeak, newFilterRuntime(nodeTypePeak))
	r.MustRegister(nodeTypeTone, func(Context) (Runtime, error) { return &toneRuntime{}, nil })
}
