package main

import "math"

// AxisBounds are the calibrated raw extents of one axis.
// Min may be greater than Max for axes that report reversed (pedals that
// rest at their maximum value).
type AxisBounds struct {
	Min    int32 `yaml:"min" json:"min"`
	Center int32 `yaml:"center" json:"center"`
	Max    int32 `yaml:"max" json:"max"`
}

// span returns the signed distance from Min to Max.
func (b AxisBounds) span() float64 {
	return float64(b.Max) - float64(b.Min)
}

// Shaping holds the per-channel transforms applied after rescaling.
type Shaping struct {
	Deadzone float64
	Expo     float64
	Trim     float64
	Invert   bool

	// Raw skips deadzone, expo and trim. Inversion still applies.
	Raw bool
}

// Normalize maps a raw bidirectional axis value onto [-1,1].
//
// Calibrated min, center and max map to exactly -1, 0 and +1. The two halves
// are scaled independently so an off-center rest position still reads 0.
func Normalize(raw int32, b AxisBounds, s Shaping) float64 {
	x := rescaleBidirectional(raw, b)
	if !s.Raw {
		x = applyDeadzone(x, s.Deadzone)
		x = expo(x, s.Expo)
		x = clamp(x+s.Trim, -1, 1)
	}
	if s.Invert {
		x = -x
	}
	return x
}

// NormalizeUnidirectional maps a raw pedal-style axis value onto [0,1],
// with Min mapping to 0 and Max to 1. Center is ignored. Inversion mirrors the
// value inside the range.
func NormalizeUnidirectional(raw int32, b AxisBounds, s Shaping) float64 {
	x := rescaleUnidirectional(raw, b)
	if !s.Raw {
		x = applyDeadzone(x, s.Deadzone)
		x = expo(x, s.Expo)
		x = clamp(x+s.Trim, 0, 1)
	}
	if s.Invert {
		x = 1 - x
	}
	return x
}

func rescaleBidirectional(raw int32, b AxisBounds) float64 {
	lo, hi := float64(b.Min), float64(b.Max)
	if lo == hi {
		return 0
	}
	v := clamp(float64(raw), lo, hi)

	c := float64(b.Center)
	// A center on or outside the bounds cannot split the range.
	if c == lo || c == hi || c != clamp(c, lo, hi) {
		c = (lo + hi) / 2
	}

	d := v - c
	switch {
	case d == 0:
		return 0
	case d*(hi-c) > 0:
		return clamp(d/(hi-c), 0, 1)
	default:
		return -clamp(d/(lo-c), 0, 1)
	}
}

func rescaleUnidirectional(raw int32, b AxisBounds) float64 {
	span := b.span()
	if span == 0 {
		return 0
	}
	v := clamp(float64(raw), float64(b.Min), float64(b.Max))
	return clamp((v-float64(b.Min))/span, 0, 1)
}

// applyDeadzone zeroes magnitudes at or below dz and rescales the rest so the
// deadzone edge maps to 0 and full scale stays at full scale.
func applyDeadzone(x, dz float64) float64 {
	if dz <= 0 {
		return x
	}
	if dz >= 1 {
		return 0
	}
	m := math.Abs(x)
	if m <= dz {
		return 0
	}
	return math.Copysign((m-dz)/(1-dz), x)
}
