package main

import (
	"errors"
	"fmt"
)

// ErrInputUnavailable is reported when the input device is missing or has
// gone away. The sample loop recovers from it by emitting neutral output.
var ErrInputUnavailable = errors.New("input device unavailable")

// BusWriteError wraps a failed DAC write.
type BusWriteError struct {
	Channel Channel
	Addr    uint16
	Err     error
}

func (e *BusWriteError) Error() string {
	return fmt.Sprintf("dac write %s (addr 0x%02x): %v", e.Channel, e.Addr, e.Err)
}

func (e *BusWriteError) Unwrap() error { return e.Err }

// ConfigInvalidError is returned by Config.Validate.
type ConfigInvalidError struct {
	Field  string
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return e.Field + " " + e.Reason
}

func invalid(field, format string, args ...any) error {
	return &ConfigInvalidError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type errLoopBusy struct{}

func (errLoopBusy) Error() string { return "sample loop command queue full" }
