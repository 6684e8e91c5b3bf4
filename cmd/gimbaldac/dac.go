package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Channel identifies one DAC output line.
type Channel int

const (
	ChannelSteering Channel = iota
	ChannelThrottle
)

func (c Channel) String() string {
	switch c {
	case ChannelSteering:
		return "steering"
	case ChannelThrottle:
		return "throttle"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// ThrottleRange selects how a normalized value maps onto DAC codes.
type ThrottleRange string

const (
	// RangeBidirectional maps [-1,1] onto [0,4095] with 0 at 2048.
	RangeBidirectional ThrottleRange = "bidirectional"
	// RangeUnidirectional maps [0,1] onto [0,4095]. Negative values read 0.
	RangeUnidirectional ThrottleRange = "unidirectional"
)

func ParseThrottleRange(s string) (ThrottleRange, error) {
	switch r := ThrottleRange(strings.ToLower(strings.TrimSpace(s))); r {
	case RangeBidirectional, RangeUnidirectional:
		return r, nil
	case "":
		return RangeBidirectional, nil
	default:
		return "", fmt.Errorf("unknown throttle range %q (must be bidirectional or unidirectional)", s)
	}
}

// OutputSample is the pair of codes written to the DACs in one tick.
type OutputSample struct {
	Steering uint16 `json:"steering"`
	Throttle uint16 `json:"throttle"`
}

// ToCode maps a normalized value onto a 12-bit DAC code.
//
// outputClamp in (0,1] saturates values beyond +/-outputClamp and stretches
// the rest to full scale. 1 leaves the value unchanged.
func ToCode(v float64, r ThrottleRange, outputClamp float64) uint16 {
	v = finiteOr(v, 0)
	if outputClamp > 0 && outputClamp < 1 {
		v = clamp(v, -outputClamp, outputClamp) / outputClamp
	}

	var code float64
	if r == RangeUnidirectional {
		code = math.Round(clamp(v, 0, 1) * dacMaxCode)
	} else {
		code = math.Round((clamp(v, -1, 1) + 1) / 2 * dacMaxCode)
	}
	return uint16(clamp(code, 0, dacMaxCode))
}

// NeutralSample is the output for "no input": steering centered, throttle at
// the code for zero on its range.
func NeutralSample(r ThrottleRange) OutputSample {
	return OutputSample{
		Steering: ToCode(0, RangeBidirectional, 1),
		Throttle: ToCode(0, r, 1),
	}
}

// DAC writes a code to one output channel.
type DAC interface {
	Write(ch Channel, code uint16) error
	Close() error
}

// writeSample writes both channels. Both writes are attempted even if the
// first fails.
func writeSample(dac DAC, s OutputSample) error {
	return errors.Join(
		dac.Write(ChannelSteering, s.Steering),
		dac.Write(ChannelThrottle, s.Throttle),
	)
}

// dryRunDAC logs codes instead of driving hardware.
type dryRunDAC struct {
	logger *slog.Logger
	last   [2]uint16
	wrote  [2]bool
}

func newDryRunDAC(logger *slog.Logger) *dryRunDAC {
	return &dryRunDAC{logger: logger}
}

// Write logs only when a channel's code changes to keep debug output readable at 200 Hz.
func (d *dryRunDAC) Write(ch Channel, code uint16) error {
	if code > dacMaxCode {
		return fmt.Errorf("code %d out of range", code)
	}
	i := int(ch) & 1
	if d.wrote[i] && d.last[i] == code {
		return nil
	}
	d.last[i], d.wrote[i] = code, true
	d.logger.Debug("dac write (dry run)", "channel", ch.String(), "code", code)
	return nil
}

func (d *dryRunDAC) Close() error { return nil }
