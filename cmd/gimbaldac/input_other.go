//go:build !linux

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

func openInputSource(cfg InputConfig, logger *slog.Logger) (InputSource, error) {
	return nil, fmt.Errorf("evdev input: %w (linux only)", ErrInputUnavailable)
}

func listInputDevices(w io.Writer) error {
	return fmt.Errorf("evdev input: %w (linux only)", ErrInputUnavailable)
}

func dumpEvents(ctx context.Context, path string, grab bool, w io.Writer) error {
	return fmt.Errorf("evdev input: %w (linux only)", ErrInputUnavailable)
}
