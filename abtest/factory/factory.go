// Package factory turns a source path into a loaded processor, choosing
// the variant from the file extension.
package factory

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cwbudde/algo-abtest/abtest/hosted"
	"github.com/cwbudde/algo-abtest/abtest/native"
	"github.com/cwbudde/algo-abtest/abtest/processor"
)

var (
	hostedExts = []string{".vst3", ".so", ".dylib", ".dll"}
	nativeExts = []string{".schx", ".json", ".yaml", ".yml"}
)

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger passed to every processor built.
func WithLogger(l *slog.Logger) Option {
	return func(f *Factory) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithCompiler replaces the schematic compiler.
func WithCompiler(c native.Compiler) Option {
	return func(f *Factory) { f.compiler = c }
}

// WithLoader sets the plugin loader. Without one, hosted sources fail with
// ErrSourceUnsupported.
func WithLoader(l hosted.Loader) Option {
	return func(f *Factory) { f.loader = l }
}

// Factory builds processors of either kind.
type Factory struct {
	compiler native.Compiler
	loader   hosted.Loader
	logger   *slog.Logger
}

// New returns a factory using native.SchematicCompiler by default.
func New(opts ...Option) *Factory {
	f := &Factory{
		compiler: native.SchematicCompiler{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Detect returns the processor kind for path, or an error wrapping
// ErrSourceUnsupported.
func Detect(path string) (processor.Kind, error) {
	ext := strings.ToLower(filepath.Ext(path))

	for _, e := range hostedExts {
		if ext == e {
			return processor.KindHostedBinary, nil
		}
	}

	for _, e := range nativeExts {
		if ext == e {
			return processor.KindNativeDSP, nil
		}
	}

	return processor.KindUnknown, fmt.Errorf("%w: extension %q", processor.ErrSourceUnsupported, ext)
}

// Load builds a Loaded processor from path. Errors are *processor.LoadError
// values.
func (f *Factory) Load(ctx context.Context, path string) (processor.Processor, error) {
	kind, err := Detect(path)
	if err != nil {
		return nil, processor.NewLoadError(processor.KindUnknown, path, err)
	}

	f.logger.Debug("loading processor", "path", path, "kind", kind)

	switch kind {
	case processor.KindHostedBinary:
		if f.loader == nil {
			return nil, processor.NewLoadError(kind, path,
				fmt.Errorf("%w: no plugin loader available", processor.ErrSourceUnsupported))
		}

		p, err := hosted.Load(ctx, path, f.loader, hosted.WithLogger(f.logger))
		if err != nil {
			return nil, err
		}

		return p, nil
	default:
		p, err := native.Load(ctx, path, f.compiler, native.WithLogger(f.logger))
		if err != nil {
			return nil, err
		}

		return p, nil
	}
}
