package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ============================================================================
// Sample Loop
// ============================================================================
//
// The loop is the only goroutine that touches pipeline state (throttle timers,
// smoothing buffers, learned calibration). Everything else talks to it through:
//   - ConfigSource: an atomically published *Snapshot, read once per tick
//   - Commands:     a buffered channel drained between ticks
//   - Status:       a mutex-guarded status board it writes after every tick
//   - Broadcasts:   a non-blocking channel into the websocket broadcaster
//
// No error or panic from a single tick stops the loop. The worst case for a
// tick is the neutral output.
//
// ============================================================================

// ConfigSource provides the configuration snapshot for the next tick.
type ConfigSource interface {
	Current() *Snapshot
}

// LoopDeps are the collaborators of the sample loop.
type LoopDeps struct {
	Config     ConfigSource
	Input      InputSource
	DAC        DAC
	Status     *statusBoard
	Commands   <-chan LoopCommand
	Broadcasts chan<- Broadcast
	Logger     *slog.Logger
}

type sampleLoop struct {
	cfg        ConfigSource
	input      InputSource
	dac        DAC
	status     *statusBoard
	commands   <-chan LoopCommand
	broadcasts chan<- Broadcast
	logger     *slog.Logger

	proc *Processor

	held        bool
	connected   bool
	dacFailing  bool
	dacFailures uint64
	ticks       uint64
}

func newSampleLoop(d LoopDeps) (*sampleLoop, error) {
	if d.Config == nil || d.Input == nil || d.DAC == nil {
		return nil, errors.New("sample loop requires config, input and dac")
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Status == nil {
		d.Status = newStatusBoard()
	}
	return &sampleLoop{
		cfg:        d.Config,
		input:      d.Input,
		dac:        d.DAC,
		status:     d.Status,
		commands:   d.Commands,
		broadcasts: d.Broadcasts,
		logger:     d.Logger,
		proc:       NewProcessor(),
	}, nil
}

// runLoop drives the pipeline at the configured update rate until ctx is
// canceled. Both outputs are set to neutral on start and on return.
func runLoop(ctx context.Context, d LoopDeps) error {
	l, err := newSampleLoop(d)
	if err != nil {
		return err
	}
	return l.run(ctx)
}

func (l *sampleLoop) run(ctx context.Context) error {
	snap := l.cfg.Current()
	l.writeNeutral(snap, "startup")
	l.status.Update(func(s *LoopStatus) { s.Running = true })

	defer func() {
		l.writeNeutral(l.cfg.Current(), "shutdown")
		l.status.Update(func(s *LoopStatus) { s.Running = false })
	}()

	interval := snap.TickInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Info("sample loop starting", "update_hz", snap.UpdateHz, "pedal_mode", snap.PedalMode,
		"curve", snap.Curve, "raw_output", snap.RawOutput)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("sample loop stopping (context canceled)")
			return nil

		case cmd := <-l.commands:
			l.handleCommand(cmd)

		case now := <-ticker.C:
			if next := l.step(now); next != interval {
				l.logger.Info("sample loop rate changed", "from", interval, "to", next)
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// step runs one tick and returns the interval the next tick should use.
func (l *sampleLoop) step(now time.Time) time.Duration {
	snap := l.cfg.Current()
	res := l.compute(now, snap)

	if l.held {
		res.Sample = snap.NeutralSample()
		res.Neutral = true
	}

	l.trackConnection(now, res.Connected)
	dacErr := l.write(now, res.Sample)
	l.ticks++

	l.status.Update(func(s *LoopStatus) {
		s.Connected = res.Connected
		s.Held = l.held
		s.Neutral = res.Neutral
		s.Ticks = l.ticks
		s.UpdatedAt = now
		s.Sample = res.Sample
		s.Steering = res.Steering
		s.Throttle = res.Throttle
		s.ThrottleState = res.ThrottleState
		s.DACHealthy = dacErr == nil
		s.DACFailures = l.dacFailures
		s.LastDACError = ""
		if dacErr != nil {
			s.LastDACError = dacErr.Error()
		}
		s.ConfigVersion = snap.Version
		s.ConfigSource = snap.Source
		s.ConfigLoaded = snap.LoadedAt
	})

	publish(l.broadcasts, BroadcastSample{
		Sample:        res.Sample,
		Steering:      res.Steering,
		Throttle:      res.Throttle,
		ThrottleState: res.ThrottleState,
		Neutral:       res.Neutral,
		Held:          l.held,
		At:            now,
	})

	return snap.TickInterval()
}

// compute polls the input and runs the pipeline. A panic anywhere in there
// degrades to neutral output for this tick.
func (l *sampleLoop) compute(now time.Time, snap *Snapshot) (res TickResult) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("tick panicked, emitting neutral", "panic", fmt.Sprint(r))
			l.proc.Reset()
			res = TickResult{
				Sample:        snap.NeutralSample(),
				ThrottleState: ThrottleIdle,
				Connected:     l.connected,
				Neutral:       true,
			}
		}
	}()

	in := l.input.Poll()
	return l.proc.Tick(now, snap, in)
}

func (l *sampleLoop) trackConnection(now time.Time, connected bool) {
	if connected == l.connected {
		return
	}
	l.connected = connected
	if connected {
		l.logger.Info("input connected")
	} else {
		l.logger.Warn("input disconnected, holding neutral output")
	}
	publish(l.broadcasts, BroadcastInputConnection{Connected: connected, At: now})
}

// write sends the sample to the DAC. Failures are logged once per outage; the
// next tick simply tries again.
func (l *sampleLoop) write(now time.Time, s OutputSample) error {
	err := writeSample(l.dac, s)
	if err != nil {
		l.dacFailures++
		if !l.dacFailing {
			l.dacFailing = true
			l.logger.Warn("dac write failed", "error", err, "failures", l.dacFailures)
			publish(l.broadcasts, BroadcastDACError{Error: err.Error(), Failures: l.dacFailures, At: now})
		} else {
			l.logger.Debug("dac write failed", "error", err, "failures", l.dacFailures)
		}
		return err
	}
	if l.dacFailing {
		l.dacFailing = false
		l.logger.Info("dac writes recovered", "failures", l.dacFailures)
	}
	return nil
}

func (l *sampleLoop) writeNeutral(snap *Snapshot, reason string) {
	s := snap.NeutralSample()
	if err := writeSample(l.dac, s); err != nil {
		l.logger.Warn("failed to write neutral output", "reason", reason, "error", err)
		return
	}
	l.logger.Debug("neutral output written", "reason", reason, "steering", s.Steering, "throttle", s.Throttle)
}

func (l *sampleLoop) handleCommand(cmd LoopCommand) {
	l.logger.Debug("loop command", "cmd", cmd.String())

	switch c := cmd.(type) {
	case CmdCenterOutputs:
		if !l.held {
			l.held = true
			l.proc.Reset()
			l.logger.Info("outputs held at neutral")
		}
		replyTo(c.Reply, nil)

	case CmdResumeOutputs:
		if l.held {
			l.held = false
			l.proc.Reset()
			l.logger.Info("outputs resumed")
		}
		replyTo(c.Reply, nil)

	default:
		l.logger.Warn("unknown loop command", "cmd", cmd.String())
	}
}
