package native

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
	"github.com/cwbudde/algo-abtest/dsp/effectchain"
)

// Kernel is a compiled DSP graph. Prepare and Release run on control
// goroutines; Process, SetControl and Reset run on the audio goroutine and
// must not allocate.
type Kernel interface {
	Prepare(sampleRate float64, blockSize, channels int) error
	Process(buf *buffer.Audio)
	SetControl(i int, value float64)
	Reset()
	Release()
}

// Control is one operator-facing control of a compiled schematic.
type Control struct {
	ID      string
	Name    string
	Label   string
	Default float64
}

// Compiled is the product of a Compiler.
type Compiled struct {
	Name     string
	Kernel   Kernel
	Controls []Control
}

// Compiler turns a schematic source into a runnable kernel. Errors should
// wrap processor.ErrSourceMissing, ErrSourceMalformed or
// ErrInstantiationFailed.
type Compiler interface {
	Compile(ctx context.Context, path string) (*Compiled, error)
}

// SchematicCompiler compiles JSON and YAML schematics with effectchain.
type SchematicCompiler struct {
	// Registry supplies node types; nil uses effectchain.DefaultRegistry.
	Registry *effectchain.Registry
}

// Compile reads and compiles the schematic at path.
func (c SchematicCompiler) Compile(ctx context.Context, path string) (*Compiled, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", processor.ErrSourceMissing, err)
		}

		return nil, fmt.Errorf("%w: %w", processor.ErrSourceMalformed, err)
	}

	s, err := effectchain.Decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", processor.ErrSourceMalformed, err)
	}

	prog, err := effectchain.Compile(s, c.Registry)
	if err != nil {
		if errors.Is(err, effectchain.ErrInvalidGraph) {
			return nil, fmt.Errorf("%w: %w", processor.ErrSourceMalformed, err)
		}

		return nil, fmt.Errorf("%w: %w", processor.ErrInstantiationFailed, err)
	}

	name := prog.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	controls := make([]Control, len(prog.Controls))
	for i, ctl := range prog.Controls {
		controls[i] = Control{ID: ctl.ID, Name: ctl.Name, Label: ctl.Label, Default: ctl.Default}
		if controls[i].Name == "" {
			controls[i].Name = ctl.ID
		}
	}

	return &Compiled{Name: name, Kernel: prog.NewKernel(), Controls: controls}, nil
}
