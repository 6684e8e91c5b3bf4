package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSnapshot builds a validated snapshot from DefaultConfig with mut applied.
func testSnapshot(t *testing.T, mut func(*Config)) *Snapshot {
	t.Helper()
	cfg := DefaultConfig()
	if mut != nil {
		mut(&cfg)
	}
	require.NoError(t, cfg.Validate())
	return cfg.ToSnapshot()
}

// unsmoothed disables both moving averages.
func unsmoothed(c *Config) {
	c.Processing.SteeringWindow = 1
	c.Processing.ThrottleWindow = 1
}

func connected(axes map[uint16]int32, buttons ...uint16) InputState {
	in := InputState{Axes: axes, Buttons: map[uint16]bool{}, Connected: true}
	if in.Axes == nil {
		in.Axes = map[uint16]int32{}
	}
	for _, b := range buttons {
		in.Buttons[b] = true
	}
	return in
}

func TestProcessor_DisconnectedIsNeutral(t *testing.T) {
	snap := testSnapshot(t, nil)
	p := NewProcessor()
	t0 := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		res := p.Tick(t0.Add(time.Duration(i)*5*time.Millisecond), snap, InputState{})
		assert.Equal(t, OutputSample{Steering: 2048, Throttle: 2048}, res.Sample)
		assert.True(t, res.Neutral)
		assert.False(t, res.Connected)
		assert.Equal(t, ThrottleIdle, res.ThrottleState)
	}
}

func TestProcessor_DisconnectedUnidirectional(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) { c.Throttle.Range = "unidirectional" })
	res := NewProcessor().Tick(time.Unix(1000, 0), snap, InputState{})
	assert.Equal(t, OutputSample{Steering: dacCenterCode, Throttle: 0}, res.Sample)
}

func TestProcessor_SwappedUnidirectionalNeutralMatchesIdle(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Throttle.Range = "unidirectional"
		c.Output.SwapControls = true
	})
	p := NewProcessor()
	now := time.Unix(1000, 0)

	idle := p.Tick(now, snap, connected(nil))
	assert.Equal(t, OutputSample{Steering: 0, Throttle: dacCenterCode}, idle.Sample)

	res := p.Tick(now.Add(5*time.Millisecond), snap, InputState{})
	assert.True(t, res.Neutral)
	assert.Equal(t, idle.Sample, res.Sample, "throttle gimbal stays at zero on disconnect")
	assert.Equal(t, snap.NeutralSample(), res.Sample)
}

func TestProcessor_SteeringFullScale(t *testing.T) {
	snap := testSnapshot(t, unsmoothed)
	p := NewProcessor()
	now := time.Unix(1000, 0)

	res := p.Tick(now, snap, connected(map[uint16]int32{ABS_X: 32767}))
	assert.Equal(t, uint16(dacMaxCode), res.Sample.Steering)
	assert.Equal(t, uint16(dacCenterCode), res.Sample.Throttle)
	assert.Equal(t, ThrottleIdle, res.ThrottleState)

	res = p.Tick(now, snap, connected(map[uint16]int32{ABS_X: -32768}))
	assert.Equal(t, uint16(0), res.Sample.Steering)

	res = p.Tick(now, snap, connected(nil))
	assert.Equal(t, uint16(dacCenterCode), res.Sample.Steering, "unbound axis reads center")
}

func TestProcessor_SwapControls(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Output.SwapControls = true
	})
	res := NewProcessor().Tick(time.Unix(1000, 0), snap, connected(map[uint16]int32{ABS_X: 32767}))
	assert.Equal(t, uint16(dacCenterCode), res.Sample.Steering)
	assert.Equal(t, uint16(dacMaxCode), res.Sample.Throttle)
}

func TestProcessor_ButtonRamp(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Throttle.Curve = "quadratic"
	})
	p := NewProcessor()
	t0 := time.Unix(1000, 0)

	res := p.Tick(t0, snap, connected(nil, BTN_TR))
	assert.Equal(t, ThrottleRamping, res.ThrottleState)
	assert.Equal(t, 0.0, res.Throttle)

	res = p.Tick(t0.Add(500*time.Millisecond), snap, connected(nil, BTN_TR))
	assert.InDelta(t, 0.25, res.Throttle, 1e-9)
	assert.Equal(t, ToCode(0.25, RangeBidirectional, 1), res.Sample.Throttle)

	res = p.Tick(t0.Add(1500*time.Millisecond), snap, connected(nil, BTN_TRIGGER))
	assert.Equal(t, 1.0, res.Throttle, "either bound button keeps the ramp running")
	assert.Equal(t, uint16(dacMaxCode), res.Sample.Throttle)

	res = p.Tick(t0.Add(1600*time.Millisecond), snap, connected(nil))
	assert.Equal(t, 0.0, res.Throttle)
	assert.Equal(t, uint16(dacCenterCode), res.Sample.Throttle)

	// Reverse ramps negative.
	p.Tick(t0.Add(2*time.Second), snap, connected(nil, BTN_TL))
	res = p.Tick(t0.Add(3*time.Second), snap, connected(nil, BTN_TL))
	assert.Equal(t, -1.0, res.Throttle)
	assert.Equal(t, uint16(0), res.Sample.Throttle)

	// Both pedals: interlock.
	res = p.Tick(t0.Add(3100*time.Millisecond), snap, connected(nil, BTN_TL, BTN_TR))
	assert.Equal(t, ThrottleLockedZero, res.ThrottleState)
	assert.Equal(t, 0.0, res.Throttle)
}

func TestProcessor_ButtonRampHalfExpo(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Processing.Expo = 0.5
	})
	p := NewProcessor()
	t0 := time.Unix(1000, 0)

	p.Tick(t0, snap, connected(nil, BTN_TR))
	res := p.Tick(t0.Add(500*time.Millisecond), snap, connected(nil, BTN_TR))
	// expo(0.5, 0.25) = 0.75*0.5 + 0.25*0.125
	assert.InDelta(t, 0.40625, res.Throttle, 1e-9)

	res = p.Tick(t0.Add(1500*time.Millisecond), snap, connected(nil, BTN_TR))
	assert.Equal(t, 1.0, res.Throttle)

	p.Reset()
	p.Tick(t0, snap, connected(nil, BTN_TL))
	res = p.Tick(t0.Add(500*time.Millisecond), snap, connected(nil, BTN_TL))
	assert.InDelta(t, -0.40625, res.Throttle, 1e-9)
}

func TestProcessor_DigitalPedals(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Throttle.AnalogPedalFeel = false
		c.Throttle.Range = "unidirectional"
	})
	res := NewProcessor().Tick(time.Unix(1000, 0), snap, connected(nil, BTN_TR))
	assert.Equal(t, uint16(dacMaxCode), res.Sample.Throttle)
}

func TestProcessor_ThrottleTrimAndInvert(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Throttle.Trim = 0.1
		c.Throttle.Invert = true
	})
	res := NewProcessor().Tick(time.Unix(1000, 0), snap, connected(nil))
	assert.InDelta(t, -0.1, res.Throttle, 1e-12)
}

func TestProcessor_AxesMode(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Throttle.PedalMode = "axes"
	})
	p := NewProcessor()
	now := time.Unix(1000, 0)

	res := p.Tick(now, snap, connected(map[uint16]int32{ABS_RZ: 255, ABS_Z: 0}))
	assert.Equal(t, 1.0, res.Throttle)
	assert.Equal(t, ThrottleRamping, res.ThrottleState)

	res = p.Tick(now, snap, connected(map[uint16]int32{ABS_RZ: 255, ABS_Z: 255}))
	assert.Equal(t, 0.0, res.Throttle, "equal pedals cancel")
	assert.Equal(t, ThrottleIdle, res.ThrottleState)

	res = p.Tick(now, snap, connected(map[uint16]int32{ABS_Z: 255}))
	assert.Equal(t, -1.0, res.Throttle)
}

func TestProcessor_SplitAxisMode(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Throttle.PedalMode = "split_axis"
		c.Throttle.Curve = "exponential"
	})
	p := NewProcessor()
	now := time.Unix(1000, 0)

	res := p.Tick(now, snap, connected(map[uint16]int32{ABS_Z: 0}))
	assert.Equal(t, 0.0, res.Throttle)

	res = p.Tick(now, snap, connected(map[uint16]int32{ABS_Z: -32768}))
	assert.Equal(t, -1.0, res.Throttle)

	// Half deflection, squared by the curve.
	res = p.Tick(now, snap, connected(map[uint16]int32{ABS_Z: 16384}))
	assert.InDelta(t, 0.25, res.Throttle, 1e-3)
}

func TestProcessor_RawGamepadOutput(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		c.Input.Kind = "gamepad"
		c.Processing.RawOutput = true
		c.Processing.Deadzone = 0.5
		c.Steering.Trim = 0.2
		c.Steering.Invert = true
	})
	p := NewProcessor()
	now := time.Unix(1000, 0)

	// A small deflection inside the deadzone still reaches the output,
	// is not smoothed and is inverted.
	res := p.Tick(now, snap, connected(map[uint16]int32{ABS_X: 3277}))
	assert.InDelta(t, -0.1, res.Steering, 1e-3)

	res = p.Tick(now, snap, connected(map[uint16]int32{ABS_X: 32767}))
	assert.Equal(t, -1.0, res.Steering, "no averaging with the previous tick")
}

func TestProcessor_SmoothingAndReset(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		c.Processing.SteeringWindow = 2
	})
	p := NewProcessor()
	now := time.Unix(1000, 0)

	p.Tick(now, snap, connected(map[uint16]int32{ABS_X: 0}))
	res := p.Tick(now, snap, connected(map[uint16]int32{ABS_X: 32767}))
	assert.InDelta(t, 0.5, res.Steering, 1e-9)

	// A disconnect flushes the buffers.
	p.Tick(now, snap, InputState{})
	res = p.Tick(now, snap, connected(map[uint16]int32{ABS_X: 32767}))
	assert.Equal(t, 1.0, res.Steering)
}

func TestProcessor_AutoCalibration(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Calibration.Auto = true
	})
	p := NewProcessor()
	now := time.Unix(1000, 0)

	// The wheel only reports +/-10000; once it has swept that range the
	// observed extents are full scale.
	p.Tick(now, snap, connected(map[uint16]int32{ABS_X: -10000}))
	res := p.Tick(now, snap, connected(map[uint16]int32{ABS_X: 10000}))
	assert.Equal(t, 1.0, res.Steering)

	// A calibration change in the config forgets what was learned.
	snap2 := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Calibration.Auto = true
		c.Calibration.Steering = AxisBounds{Min: -20000, Center: 0, Max: 20000}
	})
	res = p.Tick(now, snap2, connected(map[uint16]int32{ABS_X: 10000}))
	assert.Equal(t, 0.5, res.Steering)
}

func TestProcessor_WindowChangeRebuildsSmoother(t *testing.T) {
	p := NewProcessor()
	snap := testSnapshot(t, func(c *Config) { c.Processing.SteeringWindow = 8 })
	p.Tick(time.Unix(1000, 0), snap, InputState{})
	assert.Equal(t, 8, p.steering.Window())
	assert.Equal(t, defaultThrottleWindow, p.throttle.Window())
}
