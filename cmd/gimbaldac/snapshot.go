package main

import (
	"fmt"
	"strings"
	"time"
)

// InputKind is the type of controller.
type InputKind string

const (
	KindWheel   InputKind = "wheel"
	KindGamepad InputKind = "gamepad"
)

func ParseInputKind(s string) (InputKind, error) {
	switch k := InputKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindWheel, KindGamepad:
		return k, nil
	case "":
		return KindWheel, nil
	default:
		return "", fmt.Errorf("unknown input kind %q (must be wheel or gamepad)", s)
	}
}

// PedalMode selects how the throttle is read.
type PedalMode string

const (
	PedalButtons   PedalMode = "buttons"    // digital pedal buttons, optionally ramped
	PedalAxes      PedalMode = "axes"       // separate analog forward and reverse pedals
	PedalSplitAxis PedalMode = "split_axis" // one axis, center is neutral
)

func ParsePedalMode(s string) (PedalMode, error) {
	switch m := PedalMode(strings.ToLower(strings.TrimSpace(s))); m {
	case PedalButtons, PedalAxes, PedalSplitAxis:
		return m, nil
	case "":
		return PedalButtons, nil
	default:
		return "", fmt.Errorf("unknown pedal mode %q (must be buttons, axes or split_axis)", s)
	}
}

// Bindings maps logical roles to the physical codes that feed them.
// For axes the first code the device has reported wins; a button role is
// pressed if any of its codes is held.
type Bindings struct {
	Steering       []uint16
	Combined       []uint16
	Forward        []uint16
	Reverse        []uint16
	ForwardButtons []uint16
	ReverseButtons []uint16
}

// ChannelShaping is the per-channel trim and inversion.
type ChannelShaping struct {
	Trim   float64
	Invert bool
}

// Snapshot is the immutable configuration the sample loop reads once per
// tick. A new Snapshot is built and validated as a whole on every reload;
// an existing one is never modified.
type Snapshot struct {
	Version  uint64
	LoadedAt time.Time
	Source   string

	Kind      InputKind
	Deadzone  float64
	Expo      float64
	RawOutput bool

	SteeringWindow int
	ThrottleWindow int

	Steering ChannelShaping
	Throttle ChannelShaping

	PedalMode       PedalMode
	ThrottleRange   ThrottleRange
	Curve           CurveType
	CurveStrength   float64
	RampDuration    time.Duration
	AnalogPedalFeel bool

	UpdateHz     int
	OutputClamp  float64
	SwapControls bool

	Bindings    Bindings
	Calibration Calibration
}

// TickInterval is the period of the sample loop.
func (s *Snapshot) TickInterval() time.Duration {
	if s.UpdateHz <= 0 {
		return time.Second / defaultUpdateHz
	}
	return time.Second / time.Duration(s.UpdateHz)
}

func (s *Snapshot) axisShaping(raw bool) Shaping {
	return Shaping{Deadzone: s.Deadzone, Expo: s.Expo, Raw: raw}
}

// NeutralSample is the output for "no input" as the DACs see it: with
// SwapControls the throttle neutral code goes out on the steering channel.
func (s *Snapshot) NeutralSample() OutputSample {
	n := NeutralSample(s.ThrottleRange)
	if s.SwapControls {
		n.Steering, n.Throttle = n.Throttle, n.Steering
	}
	return n
}
