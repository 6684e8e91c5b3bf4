package main

// Linux input event types and codes (from <linux/input-event-codes.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03

	ABS_X     = 0x00
	ABS_Y     = 0x01
	ABS_Z     = 0x02
	ABS_RX    = 0x03
	ABS_RY    = 0x04
	ABS_RZ    = 0x05
	ABS_GAS   = 0x09
	ABS_BRAKE = 0x0a

	BTN_TRIGGER = 0x120
	BTN_THUMB   = 0x121
	BTN_THUMB2  = 0x122
	BTN_TOP     = 0x123
	BTN_A       = 0x130
	BTN_B       = 0x131
	BTN_X       = 0x133
	BTN_Y       = 0x134
	BTN_TL      = 0x136
	BTN_TR      = 0x137
	BTN_TL2     = 0x138
	BTN_TR2     = 0x139
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// DAC output
const (
	dacMaxCode    = 4095
	dacCenterCode = 2048

	defaultI2CBus       = 1
	defaultSteeringAddr = 0x60
	defaultThrottleAddr = 0x61
)

// Processing defaults
const (
	defaultUpdateHz       = 200
	defaultRampDuration   = 1.0 // seconds to full throttle while a pedal button is held
	defaultCurveStrength  = 2.0
	defaultSteeringWindow = 5
	defaultThrottleWindow = 3
	defaultOutputClamp    = 1.0

	defaultPollTimeoutMS       = 1
	defaultReconnectIntervalMS = 1000
)

// codeNames maps the codes a wheel or gamepad usually reports to their
// kernel names. Used by the events dump and for log output.
var codeNames = map[uint16]map[uint16]string{
	EV_ABS: {
		ABS_X:     "ABS_X",
		ABS_Y:     "ABS_Y",
		ABS_Z:     "ABS_Z",
		ABS_RX:    "ABS_RX",
		ABS_RY:    "ABS_RY",
		ABS_RZ:    "ABS_RZ",
		ABS_GAS:   "ABS_GAS",
		ABS_BRAKE: "ABS_BRAKE",
	},
	EV_KEY: {
		BTN_TRIGGER: "BTN_TRIGGER",
		BTN_THUMB:   "BTN_THUMB",
		BTN_THUMB2:  "BTN_THUMB2",
		BTN_TOP:     "BTN_TOP",
		BTN_A:       "BTN_A",
		BTN_B:       "BTN_B",
		BTN_X:       "BTN_X",
		BTN_Y:       "BTN_Y",
		BTN_TL:      "BTN_TL",
		BTN_TR:      "BTN_TR",
		BTN_TL2:     "BTN_TL2",
		BTN_TR2:     "BTN_TR2",
	},
}

func codeName(evType, code uint16) string {
	if name, ok := codeNames[evType][code]; ok {
		return name
	}
	return "?"
}
