package main

import "time"

// ==============================
// Telemetry broadcasts
// ==============================

// Broadcast is a state change published by the sample loop or the config
// store for websocket clients. Publishers never block on it: when the
// broadcaster falls behind, broadcasts are dropped.
type Broadcast interface {
	broadcastMarker()
}

// BroadcastSample is emitted every tick. The broadcaster coalesces it.
type BroadcastSample struct {
	Sample        OutputSample
	Steering      float64
	Throttle      float64
	ThrottleState ThrottleState
	Neutral       bool
	Held          bool
	At            time.Time
}

// BroadcastInputConnection is emitted when the input device appears or goes away.
type BroadcastInputConnection struct {
	Connected bool
	At        time.Time
}

// BroadcastConfigReloaded is emitted after a new configuration is published.
type BroadcastConfigReloaded struct {
	Version uint64
	Source  string
	At      time.Time
}

// BroadcastConfigRejected is emitted when a reload fails and the previous
// configuration stays active.
type BroadcastConfigRejected struct {
	Error string
	At    time.Time
}

// BroadcastDACError is emitted on the first failed write after a healthy one.
type BroadcastDACError struct {
	Error    string
	Failures uint64
	At       time.Time
}

func (BroadcastSample) broadcastMarker()          {}
func (BroadcastInputConnection) broadcastMarker() {}
func (BroadcastConfigReloaded) broadcastMarker()  {}
func (BroadcastConfigRejected) broadcastMarker()  {}
func (BroadcastDACError) broadcastMarker()        {}

// publish sends b without blocking. A nil channel drops everything.
func publish(ch chan<- Broadcast, b Broadcast) {
	if ch == nil {
		return
	}
	select {
	case ch <- b:
	default:
	}
}

// ==============================
// Wire payloads
// ==============================

const (
	wsTypeStateInit       = "state_init"
	wsTypeOutputSample    = "output_sample"
	wsTypeInputConnection = "input_connection"
	wsTypeConfigReloaded  = "config_reloaded"
	wsTypeConfigRejected  = "config_rejected"
	wsTypeDACError        = "dac_error"
)

// wsOutputSampleData is the JSON `data` payload for "output_sample".
type wsOutputSampleData struct {
	SteeringCode  uint16        `json:"steering_code"`
	ThrottleCode  uint16        `json:"throttle_code"`
	Steering      float64       `json:"steering"`
	Throttle      float64       `json:"throttle"`
	ThrottleState ThrottleState `json:"throttle_state"`
	Neutral       bool          `json:"neutral"`
	Held          bool          `json:"held"`
}

// wsInputConnectionData is the JSON `data` payload for "input_connection".
type wsInputConnectionData struct {
	Connected bool `json:"connected"`
}

// wsConfigReloadedData is the JSON `data` payload for "config_reloaded".
type wsConfigReloadedData struct {
	Version uint64 `json:"version"`
	Source  string `json:"source"`
}

// wsErrorData is the JSON `data` payload for "config_rejected" and "dac_error".
type wsErrorData struct {
	Error    string `json:"error"`
	Failures uint64 `json:"failures,omitempty"`
}

// wsOutboundEvent is a pre-typed, externally-consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time
}

func convertBroadcast(b Broadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastSample:
		return wsOutboundEvent{
			Type: wsTypeOutputSample,
			Data: wsOutputSampleData{
				SteeringCode:  ev.Sample.Steering,
				ThrottleCode:  ev.Sample.Throttle,
				Steering:      ev.Steering,
				Throttle:      ev.Throttle,
				ThrottleState: ev.ThrottleState,
				Neutral:       ev.Neutral,
				Held:          ev.Held,
			},
			At: ev.At,
		}, true

	case BroadcastInputConnection:
		return wsOutboundEvent{Type: wsTypeInputConnection, Data: wsInputConnectionData{Connected: ev.Connected}, At: ev.At}, true

	case BroadcastConfigReloaded:
		return wsOutboundEvent{Type: wsTypeConfigReloaded, Data: wsConfigReloadedData{Version: ev.Version, Source: ev.Source}, At: ev.At}, true

	case BroadcastConfigRejected:
		return wsOutboundEvent{Type: wsTypeConfigRejected, Data: wsErrorData{Error: ev.Error}, At: ev.At}, true

	case BroadcastDACError:
		return wsOutboundEvent{Type: wsTypeDACError, Data: wsErrorData{Error: ev.Error, Failures: ev.Failures}, At: ev.At}, true

	default:
		return wsOutboundEvent{}, false
	}
}
