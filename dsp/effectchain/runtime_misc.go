package effectchain

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-abtest/dsp/conv"
	"github.com/cwbudde/algo-abtest/dsp/core"
	"github.com/cwbudde/algo-abtest/dsp/effects"
)

const defaultMaxBlock = 1024

// gainRuntime handles the "gain" node type. gainDb wins over linear gain.
type gainRuntime struct {
	level *effects.Level
}

func (g *gainRuntime) Configure(_ Context, p Params) error {
	gain := p.GetNum("gain", 1)
	if db, ok := p.Num["gainDb"]; ok {
		gain = core.DBToLinear(db)
	}

	g.level = effects.NewLevel(gain)

	return nil
}

func (g *gainRuntime) SetParam(key string, value float64) bool {
	switch key {
	case "gain":
		g.level.SetTarget(value)
	case "gainDb":
		g.level.SetTarget(core.DBToLinear(value))
	default:
		return false
	}

	return true
}

func (g *gainRuntime) Process(block []float64) {
	g.level.ProcessInPlace(block)
}

func (g *gainRuntime) Reset() {
	g.level.Reset()
}

// driveRuntime handles the "drive" node type.
type driveRuntime struct {
	fx *effects.Drive
}

func (d *driveRuntime) Configure(_ Context, p Params) error {
	mode, err := effects.ParseDriveMode(p.GetStr("mode", ""))
	if err != nil {
		return err
	}

	fx, err := effects.NewDrive(
		effects.WithDriveMode(mode),
		effects.WithDriveGain(p.GetNum("gain", 1)),
		effects.WithDriveMix(p.GetNum("mix", 1)),
		effects.WithDriveLevel(p.GetNum("level", 1)),
		effects.WithDriveClip(p.GetNum("clip", 1)),
		effects.WithDriveBias(p.GetNum("bias", 0)),
	)
	if err != nil {
		return err
	}

	d.fx = fx

	return nil
}

func (d *driveRuntime) SetParam(key string, value float64) bool {
	switch key {
	case "gain":
		d.fx.SetGain(value)
	case "mix":
		d.fx.SetMix(value)
	case "level":
		d.fx.SetLevel(value)
	default:
		return false
	}

	return true
}

func (d *driveRuntime) Process(block []float64) {
	d.fx.ProcessInPlace(block)
}

// dcBlockRuntime handles the "dcblock" node type.
type dcBlockRuntime struct {
	fx *effects.DCBlocker
}

func (d *dcBlockRuntime) Configure(ctx Context, p Params) error {
	d.fx = effects.NewDCBlocker(p.GetNum("cutoffHz", 10), ctx.SampleRate)
	return nil
}

func (d *dcBlockRuntime) Process(block []float64) {
	d.fx.ProcessInPlace(block)
}

func (d *dcBlockRuntime) Reset() {
	d.fx.Reset()
}

var errEmptyIR = errors.New("cabinet node needs a non-empty ir list")

// cabinetRuntime handles the "cabinet" node type: streaming convolution
// with an impulse response given inline as the "ir" list.
type cabinetRuntime struct {
	conv *conv.Streaming
	gain float64
}

func (c *cabinetRuntime) Configure(ctx Context, p Params) error {
	ir := p.Vec["ir"]
	if len(ir) == 0 {
		return errEmptyIR
	}

	maxBlock := ctx.MaxBlock
	if maxBlock <= 0 {
		maxBlock = defaultMaxBlock
	}

	s, err := conv.NewStreaming(ir, maxBlock)
	if err != nil {
		return fmt.Errorf("effectchain: create cabinet convolver: %w", err)
	}

	c.conv = s
	c.gain = core.DBToLinear(p.GetNum("gainDb", 0))

	return nil
}

func (c *cabinetRuntime) Process(block []float64) {
	// The chain never hands out blocks longer than MaxBlock.
	_ = c.conv.ProcessInPlace(block)

	if c.gain != 1 {
		for i := range block {
			block[i] *= c.gain
		}
	}
}

func (c *cabinetRuntime) Reset() {
	c.conv.Reset()
}
