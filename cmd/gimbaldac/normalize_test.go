package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_CalibratedPoints(t *testing.T) {
	cases := []AxisBounds{
		{Min: 0, Center: 1000, Max: 2000},
		{Min: -32768, Center: 0, Max: 32767},
		{Min: 0, Center: 700, Max: 2000}, // off-center rest position
		{Min: 255, Center: 128, Max: 0},  // reversed axis
	}
	for _, b := range cases {
		assert.Equal(t, -1.0, Normalize(b.Min, b, Shaping{}), "%+v min", b)
		assert.Equal(t, 0.0, Normalize(b.Center, b, Shaping{}), "%+v center", b)
		assert.Equal(t, 1.0, Normalize(b.Max, b, Shaping{}), "%+v max", b)
	}
}

func TestNormalize_ClampsOutOfRange(t *testing.T) {
	b := AxisBounds{Min: 0, Center: 1000, Max: 2000}
	assert.Equal(t, -1.0, Normalize(-500, b, Shaping{}))
	assert.Equal(t, 1.0, Normalize(9000, b, Shaping{}))
}

func TestNormalize_DeadzoneScenario(t *testing.T) {
	b := AxisBounds{Min: 0, Center: 1000, Max: 2000}
	s := Shaping{Deadzone: 0.05}

	// Exactly at center.
	assert.Equal(t, 0.0, Normalize(1000, b, s))

	// center + 1% of range (range is 2000 counts) is inside the deadzone.
	assert.Equal(t, 0.0, Normalize(1020, b, s))
	assert.Equal(t, 0.0, Normalize(980, b, s))

	// center + 10% of range: rescaled past the consumed band.
	got := Normalize(1200, b, s)
	assert.InDelta(t, (0.2-0.05)/(1-0.05), got, 1e-12)
	assert.Less(t, got, 0.2)

	// Full scale stays full scale.
	assert.Equal(t, 1.0, Normalize(2000, b, s))
	assert.Equal(t, -1.0, Normalize(0, b, s))
}

func TestNormalize_TrimAndInvert(t *testing.T) {
	b := AxisBounds{Min: 0, Center: 1000, Max: 2000}

	assert.InDelta(t, 0.1, Normalize(1000, b, Shaping{Trim: 0.1}), 1e-12)
	assert.Equal(t, 1.0, Normalize(2000, b, Shaping{Trim: 0.1}), "trim clamps back to range")
	assert.InDelta(t, -0.5, Normalize(1500, b, Shaping{Invert: true}), 1e-12)
	assert.InDelta(t, -0.6, Normalize(1500, b, Shaping{Trim: 0.1, Invert: true}), 1e-12, "invert after trim")
}

func TestNormalize_Expo(t *testing.T) {
	b := AxisBounds{Min: 0, Center: 1000, Max: 2000}
	got := Normalize(1500, b, Shaping{Expo: 1})
	assert.InDelta(t, 0.125, got, 1e-12)
	assert.Equal(t, 1.0, Normalize(2000, b, Shaping{Expo: 1}))
}

func TestNormalize_RawModeIsClampAndRescaleOnly(t *testing.T) {
	b := AxisBounds{Min: 0, Center: 1000, Max: 2000}
	s := Shaping{Deadzone: 0.5, Expo: 1, Trim: 0.3, Raw: true}

	for _, raw := range []int32{-100, 0, 500, 1000, 1010, 1200, 1900, 2000, 5000} {
		assert.Equal(t, rescaleBidirectional(raw, b), Normalize(raw, b, s), "raw %d", raw)
	}
	assert.InDelta(t, 0.01, Normalize(1010, b, s), 1e-12, "deadzone bypassed")
}

func TestNormalize_DegenerateBounds(t *testing.T) {
	assert.Equal(t, 0.0, Normalize(123, AxisBounds{Min: 5, Center: 5, Max: 5}, Shaping{}))

	// A center outside the range falls back to the midpoint.
	b := AxisBounds{Min: 0, Center: 5000, Max: 2000}
	assert.Equal(t, 0.0, Normalize(1000, b, Shaping{}))
	assert.Equal(t, 1.0, Normalize(2000, b, Shaping{}))
}

func TestNormalizeUnidirectional(t *testing.T) {
	b := AxisBounds{Min: 0, Max: 255}
	assert.Equal(t, 0.0, NormalizeUnidirectional(0, b, Shaping{}))
	assert.Equal(t, 1.0, NormalizeUnidirectional(255, b, Shaping{}))
	assert.InDelta(t, 0.5, NormalizeUnidirectional(255/2, b, Shaping{}), 0.01)

	// Pedal resting at max.
	rev := AxisBounds{Min: 255, Max: 0}
	assert.Equal(t, 0.0, NormalizeUnidirectional(255, rev, Shaping{}))
	assert.Equal(t, 1.0, NormalizeUnidirectional(0, rev, Shaping{}))

	assert.Equal(t, 1.0, NormalizeUnidirectional(0, b, Shaping{Invert: true}))
	assert.Equal(t, 0.0, NormalizeUnidirectional(10, b, Shaping{Deadzone: 0.05}))
	assert.Equal(t, 0.0, NormalizeUnidirectional(10, AxisBounds{Min: 3, Max: 3}, Shaping{}))
}

func TestApplyDeadzone(t *testing.T) {
	assert.Equal(t, 0.3, applyDeadzone(0.3, 0))
	assert.Equal(t, 0.0, applyDeadzone(0.3, 1))
	assert.Equal(t, 0.0, applyDeadzone(-0.1, 0.1))
	assert.InDelta(t, -0.5, applyDeadzone(-0.55, 0.1), 1e-12)
}
