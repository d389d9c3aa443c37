//go:build darwin || linux || freebsd

package pluginabi

import (
	"errors"
	"fmt"

	"github.com/ebitengine/purego"

	"github.com/cwbudde/algo-abtest/abtest/processor"
)

// open dlopens bin, binds the ABI and creates an instance. The library is
// closed again on any failure.
func open(bin string) (*Plugin, error) {
	lib, err := purego.Dlopen(bin, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("%w: dlopen %s: %w", processor.ErrSourceUnsupported, bin, err)
	}

	unload := func() error { return purego.Dlclose(lib) }

	sym, err := bind(lib)
	if err != nil {
		return nil, errors.Join(err, unload())
	}

	p, err := newPlugin(sym, unload)
	if err != nil {
		return nil, errors.Join(err, unload())
	}

	return p, nil
}

func bind(lib uintptr) (*symbols, error) {
	s := &symbols{}

	required := []struct {
		name string
		fn   any
	}{
		{"abt_create", &s.create},
		{"abt_destroy", &s.destroy},
		{"abt_name", &s.name},
		{"abt_prepare", &s.prepare},
		{"abt_release", &s.release},
		{"abt_process", &s.process},
		{"abt_param_count", &s.paramCount},
		{"abt_param_info", &s.paramInfo},
		{"abt_get_param", &s.getParam},
		{"abt_set_param", &s.setParam},
	}

	for _, r := range required {
		addr, err := purego.Dlsym(lib, r.name)
		if err != nil {
			return nil, fmt.Errorf("%w: missing symbol %s", processor.ErrSourceUnsupported, r.name)
		}

		purego.RegisterFunc(r.fn, addr)
	}

	if addr, err := purego.Dlsym(lib, "abt_midi"); err == nil {
		purego.RegisterFunc(&s.midi, addr)
	}

	return s, nil
}
