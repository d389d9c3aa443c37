package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, BackendPortAudio, cfg.Device.Backend)
	require.InDelta(t, 48000.0, cfg.Device.SampleRate, 0)
	require.Equal(t, 256, cfg.Device.BlockSize)
	require.True(t, cfg.Excluded("Bypass", ""))
	require.False(t, cfg.Excluded("drive", "Drive"))
}

func TestExcludedMatchesSubstrings(t *testing.T) {
	t.Parallel()

	cfg := Default()

	tests := []struct {
		id, name string
		want     bool
	}{
		{"drive_mode", "Drive", true},
		{"ampType", "Amp", true},
		{"sel", "Mode Select", true},
		{"BYPASS", "", true},
		{"drive", "Drive", false},
		{"tone", "Tone", false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, cfg.Excluded(tt.id, tt.name), tt.id)
	}

	cfg.Params.Exclude = []string{""}
	require.False(t, cfg.Excluded("drive", "Drive"))
}

func TestParseOverridesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
device:
  backend: oto
  sample_rate: 44100
  frames_per_block: 128
  input: noise
midi:
  enabled: true
  port: launchkey
slots:
  a: presets/crunch.yaml
  b: /opt/plugins/amp.so
routing:
  crossfade: true
  start: b
params:
  unlinked: true
  exclude: [bypass]
log_level: debug
`))
	require.NoError(t, err)

	require.Equal(t, BackendOto, cfg.Device.Backend)
	require.InDelta(t, 44100.0, cfg.Device.SampleRate, 0)
	require.Equal(t, 128, cfg.Device.BlockSize)
	require.Equal(t, 2, cfg.Device.Channels)
	require.Equal(t, InputNoise, cfg.Device.Input)
	require.True(t, cfg.MIDI.Enabled)
	require.Equal(t, 256, cfg.MIDI.QueueCapacity)
	require.Equal(t, "presets/crunch.yaml", cfg.Slots.A)
	require.True(t, cfg.Routing.Crossfade)
	require.True(t, cfg.Params.Unlinked)
	require.False(t, cfg.Excluded("mode", "Mode"))

	level, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown field":   "device: {backnd: oto}",
		"bad yaml":        "device: [",
		"backend":         "device: {backend: jack}",
		"sample rate":     "device: {sample_rate: 100}",
		"block size":      "device: {frames_per_block: 0}",
		"channels":        "device: {channels: 6}",
		"input":           "device: {input: pink}",
		"capture":         "device: {backend: oto, input: capture}",
		"input level":     "device: {input_level: 2}",
		"input frequency": "device: {input_hz: 30000}",
		"queue":           "midi: {queue_capacity: 0}",
		"start slot":      "routing: {start: C}",
		"log level":       "log_level: chatty",
	}

	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(src))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadResolvesRelativeSlots(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slots: {a: crunch.yaml, b: /abs/amp.so}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "crunch.yaml"), cfg.Resolve(cfg.Slots.A))
	require.Equal(t, "/abs/amp.so", cfg.Resolve(cfg.Slots.B))
	require.Empty(t, cfg.Resolve(""))

	require.Equal(t, "rel.yaml", Default().Resolve("rel.yaml"))

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
