// Package config loads the YAML session file of the abtester command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-abtest/dsp/core"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Device backends.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
	BackendHeadless  = "headless"
)

// Device inputs. InputCapture reads the hardware input and needs the
// portaudio backend; the others are synthetic.
const (
	InputCapture = "capture"
	InputSine    = "sine"
	InputNoise   = "noise"
	InputSilence = "silence"
)

// Config is the whole session file.
type Config struct {
	Device   Device `yaml:"device"`
	MIDI     MIDI   `yaml:"midi"`
	Slots    Slots  `yaml:"slots"`
	Routing  Route  `yaml:"routing"`
	Params   Params `yaml:"params"`
	LogLevel string `yaml:"log_level"`

	// dir is the directory of the loaded file; relative slot paths
	// resolve against it.
	dir string
}

// Device selects the audio backend and stream shape.
type Device struct {
	Backend    string  `yaml:"backend"`
	SampleRate float64 `yaml:"sample_rate"`
	BlockSize  int     `yaml:"frames_per_block"`
	Channels   int     `yaml:"channels"`

	// Input selects what the processors hear.
	Input      string  `yaml:"input"`
	InputHz    float64 `yaml:"input_hz"`
	InputLevel float64 `yaml:"input_level"`
	Seed       int64   `yaml:"seed"`
}

// MIDI configures the optional MIDI input port.
type MIDI struct {
	Enabled bool `yaml:"enabled"`

	// Port is matched case-insensitively as a substring of the port name.
	// Empty picks the first port.
	Port          string `yaml:"port"`
	QueueCapacity int    `yaml:"queue_capacity"`
}

// Slots names the sources loaded at startup.
type Slots struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// Route configures switching.
type Route struct {
	Crossfade bool   `yaml:"crossfade"`
	Start     string `yaml:"start"`
}

// Params configures the parameter surface.
type Params struct {
	Unlinked bool     `yaml:"unlinked"`
	Exclude  []string `yaml:"exclude"`
}

// Default returns the built-in configuration.
func Default() Config {
	pc := core.ApplyProcessorOptions()

	return Config{
		Device: Device{
			Backend:    BackendPortAudio,
			SampleRate: pc.SampleRate,
			BlockSize:  pc.BlockSize,
			Channels:   pc.Channels,
			Input:      InputSine,
			InputHz:    220,
			InputLevel: 0.5,
			Seed:       1,
		},
		MIDI:     MIDI{QueueCapacity: 256},
		Routing:  Route{Start: "A"},
		Params:   Params{Exclude: []string{"bypass", "mode", "type"}},
		LogLevel: "info",
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, err
	}

	cfg.dir = filepath.Dir(path)

	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks every field.
func (c Config) Validate() error {
	pc := core.ProcessorConfig{SampleRate: c.Device.SampleRate, BlockSize: c.Device.BlockSize, Channels: c.Device.Channels}
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("%w: device: %w", ErrInvalid, err)
	}

	switch c.Device.Backend {
	case BackendPortAudio, BackendOto, BackendHeadless:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalid, c.Device.Backend)
	}

	switch c.Device.Input {
	case InputSine, InputNoise, InputSilence:
	case InputCapture:
		if c.Device.Backend != BackendPortAudio {
			return fmt.Errorf("%w: input %q needs the %s backend", ErrInvalid, InputCapture, BackendPortAudio)
		}
	default:
		return fmt.Errorf("%w: unknown input %q", ErrInvalid, c.Device.Input)
	}

	if c.Device.InputLevel < 0 || c.Device.InputLevel > 1 {
		return fmt.Errorf("%w: input_level %g outside [0, 1]", ErrInvalid, c.Device.InputLevel)
	}

	if c.Device.InputHz <= 0 || c.Device.InputHz >= c.Device.SampleRate/2 {
		return fmt.Errorf("%w: input_hz %g outside (0, Nyquist)", ErrInvalid, c.Device.InputHz)
	}

	if c.MIDI.QueueCapacity <= 0 {
		return fmt.Errorf("%w: midi queue_capacity must be positive", ErrInvalid)
	}

	if s := strings.ToUpper(c.Routing.Start); s != "A" && s != "B" {
		return fmt.Errorf("%w: routing start %q, want A or B", ErrInvalid, c.Routing.Start)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}

	return l, nil
}

// Resolve returns path unchanged if absolute or empty, otherwise joined
// with the directory of the loaded file.
func (c Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}

	return filepath.Join(c.dir, path)
}

// Excluded reports whether a parameter is hidden from the merged surface:
// its id or name contains an exclude entry, ignoring case.
func (c Config) Excluded(id, name string) bool {
	id, name = strings.ToLower(id), strings.ToLower(name)

	for _, e := range c.Params.Exclude {
		e = strings.ToLower(e)
		if e == "" {
			continue
		}

		if strings.Contains(id, e) || strings.Contains(name, e) {
			return true
		}
	}

	return false
}
