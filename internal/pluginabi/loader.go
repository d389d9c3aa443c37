package pluginabi

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/cwbudde/algo-abtest/abtest/hosted"
	"github.com/cwbudde/algo-abtest/abtest/processor"
)

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader logger.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// Loader implements hosted.Loader over dynamic libraries.
type Loader struct {
	logger *slog.Logger
}

var _ hosted.Loader = (*Loader)(nil)

// NewLoader returns a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load opens path, or the binary inside a .vst3 bundle directory, binds
// the ABI and creates one instance.
func (l *Loader) Load(ctx context.Context, path string) (hosted.Plugin, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bin, err := resolveBinary(path)
	if err != nil {
		return nil, err
	}

	p, err := open(bin)
	if err != nil {
		return nil, err
	}

	l.logger.Info("plugin loaded", "path", bin, "name", p.Name(), "params", len(p.params))

	return p, nil
}

// resolveBinary maps a bundle directory to its platform binary.
func resolveBinary(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", processor.ErrSourceMissing, path)
		}

		return "", fmt.Errorf("%w: %w", processor.ErrSourceUnsupported, err)
	}

	if !info.IsDir() {
		return path, nil
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var bin string
	switch runtime.GOOS {
	case "darwin":
		bin = filepath.Join(path, "Contents", "MacOS", base)
	default:
		bin = filepath.Join(path, "Contents", bundleArch()+"-"+runtime.GOOS, base+".so")
	}

	if _, err := os.Stat(bin); err != nil {
		return "", fmt.Errorf("%w: bundle %s has no %s binary", processor.ErrSourceUnsupported, path, runtime.GOOS)
	}

	return bin, nil
}

// bundleArch returns the VST3 bundle architecture folder prefix.
func bundleArch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i386"
	default:
		return runtime.GOARCH
	}
}
