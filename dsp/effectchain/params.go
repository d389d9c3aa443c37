package effectchain

import (
	"math"
	"strings"

	"github.com/cwbudde/algo-abtest/dsp/core"
)

// Taper selects how a normalized control value maps onto a parameter range.
type Taper int

const (
	// TaperLinear maps [0, 1] linearly onto [Min, Max].
	TaperLinear Taper = iota
	// TaperLog maps [0, 1] exponentially, for frequencies and gains.
	TaperLog
	// TaperInverse maps 0 to Max and 1 to Min.
	TaperInverse
)

func parseTaper(s string) Taper {
	switch strings.ToLower(s) {
	case "log", "exp":
		return TaperLog
	case "inv", "inverse":
		return TaperInverse
	default:
		return TaperLinear
	}
}

// Binding ties a node parameter to a schematic control.
type Binding struct {
	Control string
	Min     float64
	Max     float64
	Taper   Taper
}

// Map converts a normalized control value into the parameter's units.
func (b Binding) Map(v float64) float64 {
	v = core.Clamp01(v)

	switch b.Taper {
	case TaperLog:
		return core.ExpLerp(b.Min, b.Max, v)
	case TaperInverse:
		return core.Lerp(b.Max, b.Min, v)
	default:
		return core.Lerp(b.Min, b.Max, v)
	}
}

// Params holds the parsed parameters for a single node.
type Params struct {
	ID       string
	Type     string
	Bypassed bool
	Num      map[string]float64
	Str      map[string]string
	Vec      map[string][]float64
	Bind     map[string]Binding
}

// GetNum safely extracts a numeric parameter, returning def if missing or invalid.
func (p Params) GetNum(key string, def float64) float64 {
	v, ok := p.Num[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}

	return v
}

// GetStr returns a string parameter or def.
func (p Params) GetStr(key, def string) string {
	if v, ok := p.Str[key]; ok {
		return v
	}

	return def
}

func parseNodeParams(n NodeSpec) Params {
	p := Params{
		ID:       n.ID,
		Type:     n.Type,
		Bypassed: n.Bypassed,
		Num:      map[string]float64{},
		Str:      map[string]string{},
		Vec:      map[string][]float64{},
		Bind:     map[string]Binding{},
	}

	for k, v := range n.Params {
		switch t := v.(type) {
		case string:
			p.Str[k] = t
		case bool:
			if t {
				p.Num[k] = 1
			} else {
				p.Num[k] = 0
			}
		case []any:
			p.Vec[k] = numbers(t)
		case map[string]any:
			if b, ok := parseBinding(t); ok {
				p.Bind[k] = b
			}
		default:
			if f, ok := number(t); ok {
				p.Num[k] = f
			}
		}
	}

	return p
}

func parseBinding(m map[string]any) (Binding, bool) {
	ctl, ok := m["control"].(string)
	if !ok || ctl == "" {
		return Binding{}, false
	}

	b := Binding{Control: ctl, Min: 0, Max: 1}
	if f, ok := number(m["min"]); ok {
		b.Min = f
	}
	if f, ok := number(m["max"]); ok {
		b.Max = f
	}
	if s, ok := m["taper"].(string); ok {
		b.Taper = parseTaper(s)
	}

	return b, true
}

func numbers(list []any) []float64 {
	out := make([]float64, 0, len(list))
	for _, v := range list {
		if f, ok := number(v); ok {
			out = append(out, f)
		}
	}

	return out
}

// number accepts the numeric types produced by encoding/json and yaml.v3.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}
