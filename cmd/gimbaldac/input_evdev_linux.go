//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"time"

	evdev "github.com/gvalkov/golang-evdev"
	"golang.org/x/sys/unix"
)

// maxReadsPerPoll bounds how many ready batches one Poll drains so a
// chattering device cannot stall the tick.
const maxReadsPerPoll = 8

// evdevSource reads a wheel or gamepad from /dev/input/eventN.
//
// The device is opened lazily and reopened after a failure, at most once per
// reconnect interval. While closed, Poll reports a disconnected state.
//
// This is intended to be called only by the sample loop goroutine (single-owner).
type evdevSource struct {
	path           string
	grab           bool
	pollTimeout    time.Duration
	reconnectEvery time.Duration
	logger         *slog.Logger

	dev         *evdev.InputDevice
	state       *stateTracker
	lastAttempt time.Time
	lastErr     string
}

func newEvdevSource(cfg InputConfig, logger *slog.Logger) *evdevSource {
	return &evdevSource{
		path:           ExpandPath(cfg.Device),
		grab:           cfg.Grab,
		pollTimeout:    time.Duration(cfg.PollTimeoutMS) * time.Millisecond,
		reconnectEvery: time.Duration(cfg.ReconnectIntervalMS) * time.Millisecond,
		logger:         logger,
		state:          newStateTracker(),
	}
}

func (s *evdevSource) Poll() InputState {
	if s.dev == nil && !s.open(time.Now()) {
		return InputState{}
	}
	if err := s.drain(); err != nil {
		s.disconnect(err)
		return InputState{}
	}
	return s.state.state()
}

func (s *evdevSource) open(now time.Time) bool {
	if !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.reconnectEvery {
		return false
	}
	s.lastAttempt = now

	dev, err := evdev.Open(s.path)
	if err != nil {
		// Log only when the reason changes; the loop retries every interval.
		if msg := err.Error(); msg != s.lastErr {
			s.lastErr = msg
			s.logger.Warn("input device unavailable", "device", s.path, "error", err,
				"tip", "run as root or add user to 'input' group")
		}
		return false
	}
	if s.grab {
		if err := dev.Grab(); err != nil {
			s.logger.Warn("failed to grab input device", "device", s.path, "error", err)
		}
	}

	s.dev = dev
	s.lastErr = ""
	s.state.reset()
	s.logger.Info("input device opened", "device", s.path, "name", dev.Name, "grab", s.grab)
	return true
}

// drain reads every batch of events that is ready now. Only the first
// readiness check waits, and for at most pollTimeout.
func (s *evdevSource) drain() error {
	fd := int32(s.dev.File.Fd())
	timeout := int(s.pollTimeout / time.Millisecond)

	for i := 0; i < maxReadsPerPoll; i++ {
		fds := []unix.PollFd{{Fd: fd, Events: unix.POLLIN}}
		n, err := unix.Poll(fds, timeout)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				return nil
			}
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			return nil
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return fmt.Errorf("device error/hangup: %s: %w", s.path, ErrInputUnavailable)
		}

		events, err := s.dev.Read()
		if err != nil {
			return fmt.Errorf("read from %s: %w", s.path, err)
		}
		for _, ev := range events {
			s.state.apply(inputEvent{Type: ev.Type, Code: ev.Code, Value: ev.Value})
		}
		timeout = 0
	}
	return nil
}

func (s *evdevSource) disconnect(err error) {
	s.logger.Warn("input device lost", "device", s.path, "error", err)
	s.closeDevice()
	s.state.reset()
	s.lastAttempt = time.Now()
}

func (s *evdevSource) closeDevice() {
	if s.dev == nil {
		return
	}
	if s.grab {
		_ = s.dev.Release()
	}
	_ = s.dev.File.Close()
	s.dev = nil
}

func (s *evdevSource) Close() error {
	s.closeDevice()
	return nil
}

// openInputSource returns the input source for the configured device.
func openInputSource(cfg InputConfig, logger *slog.Logger) (InputSource, error) {
	return newEvdevSource(cfg, logger), nil
}

// listInputDevices writes one line per readable input device.
func listInputDevices(w io.Writer) error {
	devices, err := evdev.ListInputDevices()
	if err != nil {
		return fmt.Errorf("list input devices: %w", err)
	}
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\n", d.Fn, d.Name)
		_ = d.File.Close()
	}
	return nil
}

// dumpEvents prints key and axis events from path until ctx is canceled.
// Used to find the codes a wheel reports for its pedals and axes.
func dumpEvents(ctx context.Context, path string, grab bool, w io.Writer) error {
	dev, err := evdev.Open(ExpandPath(path))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer dev.File.Close()
	if grab {
		if err := dev.Grab(); err != nil {
			return fmt.Errorf("grab %s: %w", path, err)
		}
		defer dev.Release()
	}

	fmt.Fprintf(w, "reading %s (%s), press Ctrl+C to stop\n", path, dev.Name)

	// Closing the file unblocks Read on shutdown.
	go func() {
		<-ctx.Done()
		_ = dev.File.Close()
	}()

	for {
		events, err := dev.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read from %s: %w", path, err)
		}
		for _, ev := range events {
			switch ev.Type {
			case EV_KEY:
				state := "released"
				if ev.Value != evValueRelease {
					state = "pressed"
				}
				fmt.Fprintf(w, "key  code=%-4d (0x%03x) %-12s %s\n", ev.Code, ev.Code, codeName(EV_KEY, ev.Code), state)
			case EV_ABS:
				fmt.Fprintf(w, "abs  code=%-4d (0x%03x) %-12s value=%d\n", ev.Code, ev.Code, codeName(EV_ABS, ev.Code), ev.Value)
			}
		}
	}
}
