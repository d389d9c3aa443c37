package core

import "math"

const defaultEpsilon = 1e-12

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	switch {
	case value < min:
		return min
	case value > max:
		return max
	default:
		return value
	}
}

// Clamp01 limits value to the normalized range [0, 1]. NaN maps to 0.
func Clamp01(value float64) float64 {
	if math.IsNaN(value) {
		return 0
	}

	return Clamp(value, 0, 1)
}

// InUnitRange reports whether value lies in [0, 1].
func InUnitRange(value float64) bool {
	return value >= 0 && value <= 1
}

// NearlyEqual reports whether a and b are equal within eps, absolute or
// relative to the larger magnitude.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return false
	}

	return diff/largest <= eps
}

// FlushDenormals converts tiny values to exact zero so feedback state in
// recursive filters does not decay into the denormal range.
func FlushDenormals(x float64) float64 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0
	}

	return x
}

// DBToLinear converts dB to linear amplitude (20*log10 convention).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts linear amplitude to dB (20*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearToDB(linear float64) float64 {
	switch {
	case linear < 0:
		return math.NaN()
	case linear == 0:
		return math.Inf(-1)
	default:
		return 20 * math.Log10(linear)
	}
}

// Lerp maps a normalized position t in [0, 1] onto [lo, hi].
func Lerp(lo, hi, t float64) float64 {
	return lo + (hi-lo)*t
}

// ExpLerp maps t in [0, 1] onto [lo, hi] exponentially. Both bounds must be
// positive; otherwise the mapping falls back to Lerp.
func ExpLerp(lo, hi, t float64) float64 {
	if lo <= 0 || hi <= 0 {
		return Lerp(lo, hi, t)
	}

	return lo * math.Pow(hi/lo, t)
}
