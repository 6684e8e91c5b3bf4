package main

import (
	"math"
	"time"
)

// TickResult is everything one pass of the pipeline produced.
type TickResult struct {
	Sample OutputSample

	// Steering and Throttle are the smoothed normalized values that were
	// mapped onto Sample.
	Steering float64
	Throttle float64

	ThrottleState ThrottleState
	Connected     bool

	// Neutral is set when the sample is the safe neutral output rather than
	// a computed one.
	Neutral bool
}

// Processor runs the per-tick signal chain: normalize, throttle timer,
// curve, smoothing and code mapping.
//
// This is intended to be called only by the sample loop goroutine (single-owner).
type Processor struct {
	timer    ThrottleTimer
	steering *Smoother
	throttle *Smoother
	calib    *CalibrationTracker

	lastCalib Calibration
	raw       bool
}

func NewProcessor() *Processor {
	return &Processor{
		steering: NewSmoother(defaultSteeringWindow),
		throttle: NewSmoother(defaultThrottleWindow),
		calib:    NewCalibrationTracker(),
	}
}

// Reset clears timers and smoothing buffers. Learned calibration is kept.
func (p *Processor) Reset() {
	p.timer.Reset()
	p.steering.Reset()
	p.throttle.Reset()
}

// Tick computes one output sample from the current input state.
func (p *Processor) Tick(now time.Time, snap *Snapshot, in InputState) TickResult {
	p.sync(snap)

	if !in.Connected {
		p.Reset()
		return TickResult{
			Sample:        snap.NeutralSample(),
			ThrottleState: ThrottleIdle,
			Neutral:       true,
		}
	}

	steering := p.steeringValue(snap, in)
	throttle, state := p.throttleValue(now, snap, in)

	if !p.raw {
		steering = p.steering.Push(steering)
		throttle = p.throttle.Push(throttle)
	}

	s := OutputSample{
		Steering: ToCode(steering, RangeBidirectional, snap.OutputClamp),
		Throttle: ToCode(throttle, snap.ThrottleRange, snap.OutputClamp),
	}
	if snap.SwapControls {
		s.Steering, s.Throttle = s.Throttle, s.Steering
	}

	return TickResult{
		Sample:        s,
		Steering:      steering,
		Throttle:      throttle,
		ThrottleState: state,
		Connected:     true,
	}
}

// sync adapts per-loop state to a new configuration snapshot.
func (p *Processor) sync(snap *Snapshot) {
	if p.steering.Window() != max(snap.SteeringWindow, 1) {
		p.steering = NewSmoother(snap.SteeringWindow)
	}
	if p.throttle.Window() != max(snap.ThrottleWindow, 1) {
		p.throttle = NewSmoother(snap.ThrottleWindow)
	}

	raw := snap.RawOutput && snap.Kind == KindGamepad
	if raw != p.raw {
		p.raw = raw
		p.steering.Reset()
		p.throttle.Reset()
	}

	if snap.Calibration != p.lastCalib {
		p.lastCalib = snap.Calibration
		p.calib.Reset()
	}
}

// axis reads the bound axis for role and resolves its bounds, learning
// extents when auto calibration is on.
func (p *Processor) axis(snap *Snapshot, in InputState, role AxisRole, codes []uint16) (int32, AxisBounds, bool) {
	v, ok := firstAxis(in, codes)
	if !ok {
		return 0, AxisBounds{}, false
	}
	configured := snap.Calibration.Bounds(role)
	if !snap.Calibration.Auto {
		return v, configured, true
	}
	p.calib.Observe(role, v)
	return v, p.calib.Bounds(role, configured), true
}

func (p *Processor) steeringValue(snap *Snapshot, in InputState) float64 {
	v, b, ok := p.axis(snap, in, RoleSteering, snap.Bindings.Steering)
	if !ok {
		return 0
	}
	s := snap.axisShaping(p.raw)
	s.Trim = snap.Steering.Trim
	s.Invert = snap.Steering.Invert
	return Normalize(v, b, s)
}

// throttleValue returns the signed throttle before smoothing. The curve is
// applied to the magnitude; trim and inversion come last.
func (p *Processor) throttleValue(now time.Time, snap *Snapshot, in InputState) (float64, ThrottleState) {
	var (
		y     float64
		state = ThrottleIdle
	)

	switch snap.PedalMode {
	case PedalButtons:
		fwd := anyPressed(in, snap.Bindings.ForwardButtons)
		rev := anyPressed(in, snap.Bindings.ReverseButtons)
		var r ThrottleReading
		if snap.AnalogPedalFeel {
			r = p.timer.Update(now, fwd, rev, snap.RampDuration)
		} else {
			r = p.timer.Digital(fwd, rev)
		}
		state = r.State
		y = float64(r.Direction) * Shape(r.Progress, snap.Curve, snap.CurveStrength)
		if snap.AnalogPedalFeel && !p.raw {
			// Ramped buttons get half-strength expo.
			y = expo(y, snap.Expo*0.5)
		}

	case PedalAxes:
		p.timer.Reset()
		shaping := snap.axisShaping(p.raw)
		var f, r float64
		if v, b, ok := p.axis(snap, in, RoleForward, snap.Bindings.Forward); ok {
			f = NormalizeUnidirectional(v, b, shaping)
		}
		if v, b, ok := p.axis(snap, in, RoleReverse, snap.Bindings.Reverse); ok {
			r = NormalizeUnidirectional(v, b, shaping)
		}
		y = shapeSigned(f-r, snap)
		if y != 0 {
			state = ThrottleRamping
		}

	case PedalSplitAxis:
		p.timer.Reset()
		if v, b, ok := p.axis(snap, in, RoleCombined, snap.Bindings.Combined); ok {
			y = shapeSigned(Normalize(v, b, snap.axisShaping(p.raw)), snap)
		}
		if y != 0 {
			state = ThrottleRamping
		}
	}

	return applyTrimInvert(y, snap.Throttle, p.raw), state
}

// shapeSigned runs the throttle curve over |x| and restores the sign.
func shapeSigned(x float64, snap *Snapshot) float64 {
	if x == 0 {
		return 0
	}
	return math.Copysign(Shape(math.Abs(x), snap.Curve, snap.CurveStrength), x)
}

func applyTrimInvert(x float64, c ChannelShaping, raw bool) float64 {
	if !raw {
		x = clamp(x+c.Trim, -1, 1)
	}
	if c.Invert {
		x = -x
	}
	return x
}
