package main

import "time"

// ThrottleState is the state of the button-pedal throttle timer.
type ThrottleState string

const (
	ThrottleIdle       ThrottleState = "idle"
	ThrottleRamping    ThrottleState = "ramping"
	ThrottleLockedZero ThrottleState = "locked_zero"
)

// ThrottleReading is the result of one timer update.
type ThrottleReading struct {
	State ThrottleState

	// Direction is +1 (forward), -1 (reverse) or 0.
	Direction int

	// Progress is the linear ramp position in [0,1], before any curve.
	Progress float64
}

// ThrottleTimer turns held pedal buttons into a ramped throttle.
//
// Holding one pedal ramps progress from 0 to 1 over the ramp duration.
// Releasing drops to zero immediately. Pressing both pedals is a safety
// interlock: output is zero and both timers are cleared.
//
// A zero time.Time means the timer is not running. At most one of
// forwardSince/reverseSince is non-zero at any time.
type ThrottleTimer struct {
	forwardSince time.Time
	reverseSince time.Time
}

// Update advances the timer with the current pedal states.
//
// This is intended to be called only by the sample loop goroutine (single-owner).
func (t *ThrottleTimer) Update(now time.Time, forward, reverse bool, ramp time.Duration) ThrottleReading {
	switch {
	case forward && reverse:
		t.Reset()
		return ThrottleReading{State: ThrottleLockedZero}

	case forward:
		t.reverseSince = time.Time{}
		if t.forwardSince.IsZero() {
			t.forwardSince = now
		}
		return ThrottleReading{State: ThrottleRamping, Direction: 1, Progress: rampProgress(now.Sub(t.forwardSince), ramp)}

	case reverse:
		t.forwardSince = time.Time{}
		if t.reverseSince.IsZero() {
			t.reverseSince = now
		}
		return ThrottleReading{State: ThrottleRamping, Direction: -1, Progress: rampProgress(now.Sub(t.reverseSince), ramp)}

	default:
		t.Reset()
		return ThrottleReading{State: ThrottleIdle}
	}
}

// Digital reports full throttle while exactly one pedal is held, without a
// ramp. The interlock still applies and the timers are kept cleared.
func (t *ThrottleTimer) Digital(forward, reverse bool) ThrottleReading {
	t.Reset()
	switch {
	case forward && reverse:
		return ThrottleReading{State: ThrottleLockedZero}
	case forward:
		return ThrottleReading{State: ThrottleRamping, Direction: 1, Progress: 1}
	case reverse:
		return ThrottleReading{State: ThrottleRamping, Direction: -1, Progress: 1}
	default:
		return ThrottleReading{State: ThrottleIdle}
	}
}

// Reset clears both timers.
func (t *ThrottleTimer) Reset() {
	t.forwardSince = time.Time{}
	t.reverseSince = time.Time{}
}

// Running reports whether either timer is started.
func (t *ThrottleTimer) Running() bool {
	return !t.forwardSince.IsZero() || !t.reverseSince.IsZero()
}

func rampProgress(elapsed, ramp time.Duration) float64 {
	if ramp <= 0 {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	return clamp(float64(elapsed)/float64(ramp), 0, 1)
}
