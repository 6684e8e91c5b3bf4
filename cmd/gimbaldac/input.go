package main

// InputState is the latest known state of the controller, keyed by the
// physical evdev code. Logical roles are resolved through Bindings.
type InputState struct {
	Axes      map[uint16]int32
	Buttons   map[uint16]bool
	Connected bool
}

// InputSource is polled once per tick. Poll must not block for longer than
// a small bounded timeout. The returned maps are only valid until the next
// call to Poll.
type InputSource interface {
	Poll() InputState
	Close() error
}

// inputEvent is one decoded Linux input event.
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Type  uint16
	Code  uint16
	Value int32
}

// stateTracker folds input events into last-known axis and button state.
type stateTracker struct {
	axes    map[uint16]int32
	buttons map[uint16]bool
}

func newStateTracker() *stateTracker {
	return &stateTracker{
		axes:    make(map[uint16]int32),
		buttons: make(map[uint16]bool),
	}
}

func (s *stateTracker) apply(ev inputEvent) {
	switch ev.Type {
	case EV_ABS:
		s.axes[ev.Code] = ev.Value
	case EV_KEY:
		switch ev.Value {
		case evValuePress, evValueRepeat:
			s.buttons[ev.Code] = true
		case evValueRelease:
			s.buttons[ev.Code] = false
		}
	}
}

func (s *stateTracker) reset() {
	clear(s.axes)
	clear(s.buttons)
}

func (s *stateTracker) state() InputState {
	return InputState{Axes: s.axes, Buttons: s.buttons, Connected: true}
}

// firstAxis returns the value of the first bound code the device has reported.
func firstAxis(in InputState, codes []uint16) (int32, bool) {
	for _, c := range codes {
		if v, ok := in.Axes[c]; ok {
			return v, true
		}
	}
	return 0, false
}

// anyPressed reports whether any of the bound buttons is held.
func anyPressed(in InputState, codes []uint16) bool {
	for _, c := range codes {
		if in.Buttons[c] {
			return true
		}
	}
	return false
}
