//go:build darwin || linux || freebsd

package pluginabi

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-abtest/abtest/processor"
)

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	text := filepath.Join(dir, "notes.so")
	require.NoError(t, os.WriteFile(text, []byte("not a library"), 0o600))

	bundle := filepath.Join(dir, "Empty.vst3")
	require.NoError(t, os.Mkdir(bundle, 0o755))

	l := NewLoader()

	_, err := l.Load(context.Background(), filepath.Join(dir, "missing.so"))
	require.ErrorIs(t, err, processor.ErrSourceMissing)

	_, err = l.Load(context.Background(), text)
	require.ErrorIs(t, err, processor.ErrSourceUnsupported)

	_, err = l.Load(context.Background(), bundle)
	require.ErrorIs(t, err, processor.ErrSourceUnsupported)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Load(ctx, text)
	require.ErrorIs(t, err, context.Canceled)
}

func TestResolveBundle(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bundle := filepath.Join(dir, "Amp.vst3")

	bin := filepath.Join(bundle, "Contents", bundleArch()+"-"+runtime.GOOS, "Amp.so")
	if runtime.GOOS == "darwin" {
		bin = filepath.Join(bundle, "Contents", "MacOS", "Amp")
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(bin), 0o755))
	require.NoError(t, os.WriteFile(bin, nil, 0o600))

	got, err := resolveBinary(bundle)
	require.NoError(t, err)
	require.Equal(t, bin, got)

	got, err = resolveBinary(bin)
	require.NoError(t, err)
	require.Equal(t, bin, got)
}
