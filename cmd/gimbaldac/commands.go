package main

// ==============================
// Loop commands
// ==============================

// LoopCommand is a request handled by the sample loop between ticks.
// Commands reach the loop through its buffered command channel so the loop
// stays the only goroutine that touches pipeline state.
type LoopCommand interface {
	loopCommandMarker()
	String() string
}

// CmdCenterOutputs holds both outputs at neutral until CmdResumeOutputs.
type CmdCenterOutputs struct {
	Reply chan<- error
}

func (CmdCenterOutputs) loopCommandMarker() {}
func (CmdCenterOutputs) String() string     { return "CmdCenterOutputs()" }

// CmdResumeOutputs ends a hold started by CmdCenterOutputs.
type CmdResumeOutputs struct {
	Reply chan<- error
}

func (CmdResumeOutputs) loopCommandMarker() {}
func (CmdResumeOutputs) String() string     { return "CmdResumeOutputs()" }

// replyTo delivers err without blocking the loop. Reply channels are expected
// to be buffered.
func replyTo(ch chan<- error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}
