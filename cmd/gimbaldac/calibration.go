package main

import "math"

// AxisRole names a logical axis independent of the physical code bound to it.
type AxisRole string

const (
	RoleSteering AxisRole = "steering"
	RoleCombined AxisRole = "combined" // split_axis throttle
	RoleForward  AxisRole = "forward"  // axes-mode forward pedal
	RoleReverse  AxisRole = "reverse"  // axes-mode reverse pedal
)

// Calibration is the configured bounds for every logical axis.
type Calibration struct {
	Auto bool

	Steering AxisBounds
	Combined AxisBounds
	Forward  AxisBounds
	Reverse  AxisBounds
}

// Bounds returns the configured bounds for role.
func (c Calibration) Bounds(role AxisRole) AxisBounds {
	switch role {
	case RoleSteering:
		return c.Steering
	case RoleCombined:
		return c.Combined
	case RoleForward:
		return c.Forward
	case RoleReverse:
		return c.Reverse
	default:
		return AxisBounds{}
	}
}

// autoCalMinFraction is the share of the configured span an axis must sweep
// before its observed extents replace the configured ones. Below that a few
// counts of sensor noise would normalize to full deflection.
const autoCalMinFraction = 0.10

type observedRange struct {
	min, max int32
}

// CalibrationTracker learns axis extents from the values an input reports.
//
// This is intended to be called only by the sample loop goroutine (single-owner).
type CalibrationTracker struct {
	seen map[AxisRole]*observedRange
}

func NewCalibrationTracker() *CalibrationTracker {
	return &CalibrationTracker{seen: make(map[AxisRole]*observedRange)}
}

// Observe widens the observed range of role to include v.
func (t *CalibrationTracker) Observe(role AxisRole, v int32) {
	r, ok := t.seen[role]
	if !ok {
		t.seen[role] = &observedRange{min: v, max: v}
		return
	}
	if v < r.min {
		r.min = v
	}
	if v > r.max {
		r.max = v
	}
}

// Bounds returns the learned bounds for role, or configured when the axis has
// not yet moved far enough. The orientation of configured is preserved.
func (t *CalibrationTracker) Bounds(role AxisRole, configured AxisBounds) AxisBounds {
	r, ok := t.seen[role]
	if !ok {
		return configured
	}
	observed := float64(r.max) - float64(r.min)
	if observed <= 0 || observed < autoCalMinFraction*math.Abs(configured.span()) {
		return configured
	}

	out := AxisBounds{Min: r.min, Max: r.max}
	if configured.Min > configured.Max {
		out.Min, out.Max = r.max, r.min
	}
	if configured.Center > r.min && configured.Center < r.max {
		out.Center = configured.Center
	} else {
		out.Center = int32((int64(r.min) + int64(r.max)) / 2)
	}
	return out
}

// Reset forgets everything observed so far.
func (t *CalibrationTracker) Reset() {
	clear(t.seen)
}
