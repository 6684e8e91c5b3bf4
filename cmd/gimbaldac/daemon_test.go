package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticConfig struct{ snap *Snapshot }

func (s staticConfig) Current() *Snapshot { return s.snap }

// fakeInput returns state on every poll, or panics when panicNext is set.
type fakeInput struct {
	state     InputState
	panicNext bool
}

func (f *fakeInput) Poll() InputState {
	if f.panicNext {
		f.panicNext = false
		panic("decoder exploded")
	}
	return f.state
}

func (f *fakeInput) Close() error { return nil }

func newTestLoop(t *testing.T, snap *Snapshot, in InputSource, dac DAC, bc chan Broadcast) *sampleLoop {
	t.Helper()
	l, err := newSampleLoop(LoopDeps{
		Config:     staticConfig{snap},
		Input:      in,
		DAC:        dac,
		Broadcasts: bc,
		Logger:     discardLogger(),
	})
	require.NoError(t, err)
	return l
}

func TestNewSampleLoop_RequiresDeps(t *testing.T) {
	_, err := newSampleLoop(LoopDeps{})
	assert.Error(t, err)
}

func TestSampleLoop_DisconnectedWritesNeutral(t *testing.T) {
	snap := testSnapshot(t, nil)
	dac := &recordingDAC{}
	l := newTestLoop(t, snap, &fakeInput{}, dac, nil)

	t0 := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		l.step(t0.Add(time.Duration(i) * snap.TickInterval()))
	}

	require.Len(t, dac.writes, 3)
	for _, w := range dac.writes {
		assert.Equal(t, OutputSample{Steering: 2048, Throttle: 2048}, w)
	}
	st := l.status.Load()
	assert.Equal(t, uint64(3), st.Ticks)
	assert.False(t, st.Connected)
	assert.True(t, st.Neutral)
}

func TestSampleLoop_FailingDACKeepsRunning(t *testing.T) {
	snap := testSnapshot(t, unsmoothed)
	boom := errors.New("bus gone")
	dac := &recordingDAC{fail: map[Channel]error{ChannelSteering: boom, ChannelThrottle: boom}}
	bc := make(chan Broadcast, 16)
	in := &fakeInput{state: connected(map[uint16]int32{ABS_X: 32767})}
	l := newTestLoop(t, snap, in, dac, bc)

	t0 := time.Unix(1000, 0)
	next := l.step(t0)
	l.step(t0.Add(5 * time.Millisecond))
	assert.Equal(t, snap.TickInterval(), next)

	st := l.status.Load()
	assert.False(t, st.DACHealthy)
	assert.Equal(t, uint64(2), st.DACFailures)
	assert.Contains(t, st.LastDACError, "bus gone")
	assert.Equal(t, uint64(2), st.Ticks, "ticks keep counting")
	assert.Equal(t, uint16(dacMaxCode), st.Sample.Steering)

	var dacErrors int
	for len(bc) > 0 {
		if _, ok := (<-bc).(BroadcastDACError); ok {
			dacErrors++
		}
	}
	assert.Equal(t, 1, dacErrors, "one event per outage")

	// Recovery.
	dac.fail = nil
	l.step(t0.Add(10 * time.Millisecond))
	st = l.status.Load()
	assert.True(t, st.DACHealthy)
	assert.Empty(t, st.LastDACError)
	assert.Equal(t, uint64(2), st.DACFailures, "failure count is cumulative")
	assert.False(t, l.dacFailing)
}

func TestSampleLoop_PanicDegradesToNeutral(t *testing.T) {
	snap := testSnapshot(t, unsmoothed)
	dac := &recordingDAC{}
	in := &fakeInput{state: connected(map[uint16]int32{ABS_X: 32767})}
	l := newTestLoop(t, snap, in, dac, nil)

	t0 := time.Unix(1000, 0)
	l.step(t0)
	in.panicNext = true
	l.step(t0.Add(5 * time.Millisecond))
	l.step(t0.Add(10 * time.Millisecond))

	require.Len(t, dac.writes, 3)
	assert.Equal(t, uint16(dacMaxCode), dac.writes[0].Steering)
	assert.Equal(t, OutputSample{Steering: dacCenterCode, Throttle: dacCenterCode}, dac.writes[1])
	assert.Equal(t, uint16(dacMaxCode), dac.writes[2].Steering)
	assert.True(t, l.connected, "a panicking tick does not flap the connection state")
}

func TestSampleLoop_ConnectionEvents(t *testing.T) {
	snap := testSnapshot(t, nil)
	bc := make(chan Broadcast, 16)
	in := &fakeInput{}
	l := newTestLoop(t, snap, in, &recordingDAC{}, bc)

	t0 := time.Unix(1000, 0)
	l.step(t0)
	in.state = connected(nil)
	l.step(t0.Add(5 * time.Millisecond))
	in.state = InputState{}
	l.step(t0.Add(10 * time.Millisecond))

	var conns []bool
	for len(bc) > 0 {
		if ev, ok := (<-bc).(BroadcastInputConnection); ok {
			conns = append(conns, ev.Connected)
		}
	}
	assert.Equal(t, []bool{true, false}, conns)
}

func TestSampleLoop_CenterAndResume(t *testing.T) {
	snap := testSnapshot(t, unsmoothed)
	dac := &recordingDAC{}
	in := &fakeInput{state: connected(map[uint16]int32{ABS_X: 32767}, BTN_TR)}
	l := newTestLoop(t, snap, in, dac, nil)
	t0 := time.Unix(1000, 0)

	reply := make(chan error, 1)
	l.handleCommand(CmdCenterOutputs{Reply: reply})
	require.NoError(t, <-reply)

	l.step(t0)
	assert.Equal(t, OutputSample{Steering: dacCenterCode, Throttle: dacCenterCode}, dac.writes[0])
	assert.True(t, l.status.Load().Held)

	l.handleCommand(CmdResumeOutputs{Reply: reply})
	require.NoError(t, <-reply)

	l.step(t0.Add(5 * time.Millisecond))
	assert.Equal(t, uint16(dacMaxCode), dac.writes[1].Steering)
	assert.Equal(t, 0.0, l.status.Load().Throttle, "ramp restarts after resume")
	assert.False(t, l.status.Load().Held)
}

func TestRunLoop_NeutralOnStartAndShutdown(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Output.UpdateHz = 1000
	})
	dac := &recordingDAC{}
	in := &fakeInput{state: connected(map[uint16]int32{ABS_X: 32767})}
	status := newStatusBoard()
	cmds := make(chan LoopCommand, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runLoop(ctx, LoopDeps{
			Config:   staticConfig{snap},
			Input:    in,
			DAC:      dac,
			Status:   status,
			Commands: cmds,
			Logger:   discardLogger(),
		})
	}()

	waitUntil(t, time.Second, func() bool { return status.Load().Ticks >= 3 }, "loop did not tick")

	reply := make(chan error, 1)
	cmds <- CmdCenterOutputs{Reply: reply}
	select {
	case err := <-reply:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for command reply")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for loop to stop")
	}

	require.GreaterOrEqual(t, len(dac.writes), 5)
	neutral := OutputSample{Steering: dacCenterCode, Throttle: dacCenterCode}
	assert.Equal(t, neutral, dac.writes[0], "startup")
	assert.Equal(t, uint16(dacMaxCode), dac.writes[1].Steering)
	assert.Equal(t, neutral, dac.writes[len(dac.writes)-1], "shutdown")
	assert.False(t, status.Load().Running)
}

func TestSampleLoop_SwappedUnidirectionalNeutral(t *testing.T) {
	snap := testSnapshot(t, func(c *Config) {
		unsmoothed(c)
		c.Throttle.Range = "unidirectional"
		c.Output.SwapControls = true
	})
	neutral := OutputSample{Steering: 0, Throttle: dacCenterCode}
	dac := &recordingDAC{}
	in := &fakeInput{}
	l := newTestLoop(t, snap, in, dac, nil)
	t0 := time.Unix(1000, 0)

	l.writeNeutral(snap, "startup")
	l.step(t0) // disconnected

	in.state = connected(map[uint16]int32{ABS_X: 32767}, BTN_TR)
	in.panicNext = true
	l.step(t0.Add(5 * time.Millisecond))

	reply := make(chan error, 1)
	l.handleCommand(CmdCenterOutputs{Reply: reply})
	require.NoError(t, <-reply)
	l.step(t0.Add(10 * time.Millisecond))

	l.writeNeutral(snap, "shutdown")

	require.Len(t, dac.writes, 5)
	for i, w := range dac.writes {
		assert.Equal(t, neutral, w, "write %d", i)
	}
}
