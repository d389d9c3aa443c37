package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-abtest/abtest/hosted"
	"github.com/cwbudde/algo-abtest/abtest/midi"
	"github.com/cwbudde/algo-abtest/abtest/processor"
	"github.com/cwbudde/algo-abtest/dsp/buffer"
)

// loaderFunc adapts a function to Loader.
type loaderFunc func(ctx context.Context, path string) (processor.Processor, error)

func (f loaderFunc) Load(ctx context.Context, path string) (processor.Processor, error) {
	return f(ctx, path)
}

// fixed serves preconstructed processors by path.
func fixed(procs map[string]processor.Processor) Loader {
	return loaderFunc(func(_ context.Context, path string) (processor.Processor, error) {
		p, ok := procs[path]
		if !ok {
			return nil, processor.NewLoadError(processor.KindUnknown, path, processor.ErrSourceMissing)
		}

		return p, nil
	})
}

// firPlugin is a hosted plugin computing y[n] = g*x[n] + g/2*x[n-1] per
// channel, with g = 2*gain so the default gain of 0.5 is unity.
type firPlugin struct {
	gain float64
	prev []float64
}

func (f *firPlugin) Name() string { return "FIR Test Plugin" }

func (f *firPlugin) Parameters() []hosted.ParameterInfo {
	return []hosted.ParameterInfo{{Name: "Gain", Default: 0.5}}
}

func (f *firPlugin) Prepare(_ float64, _, channels int) error {
	f.prev = make([]float64, channels)
	return nil
}

func (f *firPlugin) Release() { f.prev = nil }

func (f *firPlugin) Process(buf *buffer.Audio, _ *midi.Buffer) error {
	g := 2 * f.gain
	for ch := range buf.Channels() {
		x := buf.Channel(ch)
		for i, v := range x {
			x[i] = g*v + 0.5*g*f.prev[ch]
			f.prev[ch] = v
		}
	}

	return nil
}

func (f *firPlugin) SetParameter(_ int, v float64) { f.gain = v }

func (f *firPlugin) GetParameter(int) float64 { return f.gain }

func (f *firPlugin) Close() error { return nil }

type firLoader struct{}

func (firLoader) Load(context.Context, string) (hosted.Plugin, error) {
	return &firPlugin{gain: 0.5}, nil
}

// cabSchematic has the impulse response 0.5, 0.25, 0.125 at its default
// gain and shares the "gain" control with firPlugin.
const cabSchematic = `{
  "name": "Short Cab",
  "controls": [{"id": "gain", "name": "Gain", "default": 0.5}],
  "nodes": [
    {"id": "g", "type": "gain", "params": {"gain": {"control": "gain", "min": 0, "max": 2}}},
    {"id": "cab", "type": "cabinet", "params": {"ir": [0.5, 0.25, 0.125]}}
  ],
  "connections": [
    {"from": "_input", "to": "g"},
    {"from": "g", "to": "cab"},
    {"from": "cab", "to": "_output"}
  ]
}`

func writeSchematic(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

// logBuffer is a goroutine-safe sink for a text handler.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.buf.Write(p)
}

func (l *logBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.buf.String()
}

func (l *logBuffer) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(l, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// impulse returns channels*frames samples with v at frame 0 of every
// channel and zeros elsewhere.
func impulse(channels, frames int, v float32) []float32 {
	buf := make([]float32, channels*frames)
	for ch := range channels {
		buf[ch] = v
	}

	return buf
}

func requireFrame(t *testing.T, out []float32, channels, frame int, want float64) {
	t.Helper()

	for ch := range channels {
		require.InDelta(t, want, float64(out[frame*channels+ch]), 1e-6, fmt.Sprintf("frame %d ch %d", frame, ch))
	}
}
