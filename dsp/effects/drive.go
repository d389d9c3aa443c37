package effects

import (
	"fmt"
	"math"
)

const (
	defaultDriveGain  = 1.0
	defaultDriveMix   = 1.0
	defaultDriveLevel = 1.0
	defaultDriveClip  = 1.0

	minDriveGain  = 0.01
	maxDriveGain  = 100.0
	minDriveLevel = 0.0
	maxDriveLevel = 4.0
	minDriveClip  = 0.05
	maxDriveClip  = 1.0
	maxDriveBias  = 0.5
)

// DriveMode selects the transfer curve used by Drive.
type DriveMode int

const (
	// DriveModeSoftClip is a cubic soft clipper that reaches the clip level at 1.5x.
	DriveModeSoftClip DriveMode = iota
	// DriveModeHardClip clips symmetrically at the clip level.
	DriveModeHardClip
	// DriveModeTanh saturates with tanh.
	DriveModeTanh
	// DriveModeDiode models a pair of mismatched clipping diodes, so the
	// negative half clips harder than the positive half.
	DriveModeDiode
)

// ParseDriveMode maps a schematic mode name to a DriveMode.
func ParseDriveMode(name string) (DriveMode, error) {
	switch name {
	case "", "soft", "softclip":
		return DriveModeSoftClip, nil
	case "hard", "hardclip":
		return DriveModeHardClip, nil
	case "tanh":
		return DriveModeTanh, nil
	case "diode":
		return DriveModeDiode, nil
	default:
		return 0, fmt.Errorf("drive mode is invalid: %q", name)
	}
}

// DriveOption mutates construction-time parameters.
type DriveOption func(*driveConfig) error

type driveConfig struct {
	mode  DriveMode
	gain  float64
	mix   float64
	level float64
	clip  float64
	bias  float64
}

func defaultDriveConfig() driveConfig {
	return driveConfig{
		mode:  DriveModeSoftClip,
		gain:  defaultDriveGain,
		mix:   defaultDriveMix,
		level: defaultDriveLevel,
		clip:  defaultDriveClip,
	}
}

// WithDriveMode selects the transfer curve.
func WithDriveMode(mode DriveMode) DriveOption {
	return func(cfg *driveConfig) error {
		if mode < DriveModeSoftClip || mode > DriveModeDiode {
			return fmt.Errorf("drive mode is invalid: %d", mode)
		}

		cfg.mode = mode

		return nil
	}
}

// WithDriveGain sets pre-shape gain in [0.01, 100].
func WithDriveGain(gain float64) DriveOption {
	return func(cfg *driveConfig) error {
		if !inRange(gain, minDriveGain, maxDriveGain) {
			return fmt.Errorf("drive gain must be in [%g, %g]: %f", minDriveGain, maxDriveGain, gain)
		}

		cfg.gain = gain

		return nil
	}
}

// WithDriveMix sets the dry/wet mix in [0, 1].
func WithDriveMix(mix float64) DriveOption {
	return func(cfg *driveConfig) error {
		if !inRange(mix, 0, 1) {
			return fmt.Errorf("drive mix must be in [0, 1]: %f", mix)
		}

		cfg.mix = mix

		return nil
	}
}

// WithDriveLevel sets post-shape output level in [0, 4].
func WithDriveLevel(level float64) DriveOption {
	return func(cfg *driveConfig) error {
		if !inRange(level, minDriveLevel, maxDriveLevel) {
			return fmt.Errorf("drive level must be in [%g, %g]: %f", minDriveLevel, maxDriveLevel, level)
		}

		cfg.level = level

		return nil
	}
}

// WithDriveClip sets the clip threshold in [0.05, 1].
func WithDriveClip(clip float64) DriveOption {
	return func(cfg *driveConfig) error {
		if !inRange(clip, minDriveClip, maxDriveClip) {
			return fmt.Errorf("drive clip level must be in [%g, %g]: %f", minDriveClip, maxDriveClip, clip)
		}

		cfg.clip = clip

		return nil
	}
}

// WithDriveBias adds a DC offset before shaping in [-0.5, 0.5], producing
// even harmonics.
func WithDriveBias(bias float64) DriveOption {
	return func(cfg *driveConfig) error {
		if !inRange(bias, -maxDriveBias, maxDriveBias) {
			return fmt.Errorf("drive bias must be in [%g, %g]: %f", -maxDriveBias, maxDriveBias, bias)
		}

		cfg.bias = bias

		return nil
	}
}

// Drive is a memoryless waveshaper with gain, bias, mix and output level.
type Drive struct {
	driveConfig
}

// NewDrive creates a Drive stage.
func NewDrive(opts ...DriveOption) (*Drive, error) {
	cfg := defaultDriveConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Drive{driveConfig: cfg}, nil
}

// SetGain sets pre-shape gain, clamping into the valid range.
func (d *Drive) SetGain(gain float64) {
	d.gain = clamp(gain, minDriveGain, maxDriveGain)
}

// SetMix sets the dry/wet mix, clamping into [0, 1].
func (d *Drive) SetMix(mix float64) {
	d.mix = clamp(mix, 0, 1)
}

// SetLevel sets post-shape level, clamping into the valid range.
func (d *Drive) SetLevel(level float64) {
	d.level = clamp(level, minDriveLevel, maxDriveLevel)
}

// Gain returns pre-shape gain.
func (d *Drive) Gain() float64 { return d.gain }

// Mix returns the dry/wet mix.
func (d *Drive) Mix() float64 { return d.mix }

// Level returns post-shape level.
func (d *Drive) Level() float64 { return d.level }

// Mode returns the transfer curve.
func (d *Drive) Mode() DriveMode { return d.mode }

// ProcessSample shapes one sample.
func (d *Drive) ProcessSample(input float64) float64 {
	wet := d.shape((input+d.bias)*d.gain) * d.level
	if math.IsNaN(wet) || math.IsInf(wet, 0) {
		wet = 0
	}

	return input*(1-d.mix) + wet*d.mix
}

// ProcessInPlace shapes buf in place.
func (d *Drive) ProcessInPlace(buf []float64) {
	for i, x := range buf {
		buf[i] = d.ProcessSample(x)
	}
}

func (d *Drive) shape(x float64) float64 {
	c := d.clip

	switch d.mode {
	case DriveModeHardClip:
		return clamp(x, -c, c)
	case DriveModeTanh:
		return c * math.Tanh(x/c)
	case DriveModeDiode:
		if x < 0 {
			return -c * 0.8 * math.Tanh(-x/(0.8*c))
		}

		return c * math.Tanh(x/c)
	default:
		// Cubic soft clip: y = c*(u - u^3/6.75) with u = x/c, flat beyond 1.5c.
		u := x / c
		if u >= 1.5 {
			return c
		}
		if u <= -1.5 {
			return -c
		}

		return c * (u - u*u*u/6.75)
	}
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi && !math.IsNaN(v)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
