package main

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// MCP4725 command bytes.
const (
	mcp4725WriteDAC = 0x40 // write DAC register, normal power mode
)

// mcp4725 drives one MCP4725 12-bit DAC on an I2C bus.
type mcp4725 struct {
	bus  drivers.I2C
	addr uint16
}

// Set writes code to the DAC register.
//
// The three-byte register write is tried first. Some clones only accept the
// two-byte fast-mode frame, so a failed register write is retried once in
// fast mode before giving up.
func (m *mcp4725) Set(code uint16) error {
	if code > dacMaxCode {
		return fmt.Errorf("code %d out of range", code)
	}
	full := []byte{mcp4725WriteDAC, byte(code >> 4), byte(code&0x0F) << 4}
	err := m.bus.Tx(m.addr, full, nil)
	if err == nil {
		return nil
	}
	fast := []byte{byte(code>>8) & 0x0F, byte(code)}
	if ferr := m.bus.Tx(m.addr, fast, nil); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}

// mcp4725Pair is the two-channel DAC adapter: one MCP4725 per channel on a
// shared bus.
type mcp4725Pair struct {
	steering mcp4725
	throttle mcp4725
	closer   func() error
}

func newMCP4725Pair(bus drivers.I2C, steeringAddr, throttleAddr uint16, closer func() error) *mcp4725Pair {
	return &mcp4725Pair{
		steering: mcp4725{bus: bus, addr: steeringAddr},
		throttle: mcp4725{bus: bus, addr: throttleAddr},
		closer:   closer,
	}
}

func (p *mcp4725Pair) Write(ch Channel, code uint16) error {
	dev := &p.steering
	if ch == ChannelThrottle {
		dev = &p.throttle
	}
	if err := dev.Set(code); err != nil {
		return &BusWriteError{Channel: ch, Addr: dev.addr, Err: err}
	}
	return nil
}

func (p *mcp4725Pair) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
