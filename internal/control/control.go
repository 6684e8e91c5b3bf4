// Package control defines the gimbaldac IPC protocol and a small client for it.
//
// Protocol: line-delimited JSON over a Unix domain socket.
//   - Client sends: {"type": "request_name", "data": {...}}
//   - Server responds: {"status": "ok", "data": {...}} or {"status": "error", "error": "msg"}
//
// One connection may carry any number of requests; each gets exactly one
// response line, in order.
package control

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	TypeReloadConfig  = "reload_config"
	TypeCenterOutputs = "center_outputs"
	TypeResumeOutputs = "resume_outputs"
	TypeGetStatus     = "get_status"

	StatusOK    = "ok"
	StatusError = "error"
)

// DefaultTimeout bounds a single request/response round trip in Send.
const DefaultTimeout = 3 * time.Second

// Request is a message a client can send to the daemon.
type Request interface {
	requestMarker()
}

// ReloadConfig asks the daemon to re-read its config file. An invalid file is
// rejected and the previous configuration stays active.
type ReloadConfig struct{}

// CenterOutputs holds both outputs at neutral until ResumeOutputs.
type CenterOutputs struct {
	Origin string `json:"origin,omitempty"`
}

// ResumeOutputs ends a hold started by CenterOutputs.
type ResumeOutputs struct {
	Origin string `json:"origin,omitempty"`
}

// GetStatus requests a Status snapshot.
type GetStatus struct{}

func (ReloadConfig) requestMarker()  {}
func (CenterOutputs) requestMarker() {}
func (ResumeOutputs) requestMarker() {}
func (GetStatus) requestMarker()     {}

// Envelope wraps requests for JSON.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the daemon's reply to one request.
type Response struct {
	Status string          `json:"status"`          // "ok" or "error"
	Error  string          `json:"error,omitempty"` // error message if status == "error"
	Data   json.RawMessage `json:"data,omitempty"`
}

// OK builds a success response, with data marshaled when non-nil.
func OK(data any) (Response, error) {
	if data == nil {
		return Response{Status: StatusOK}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Response{}, fmt.Errorf("marshal response data: %w", err)
	}
	return Response{Status: StatusOK, Data: b}, nil
}

// Fail builds an error response.
func Fail(err error) Response {
	return Response{Status: StatusError, Error: err.Error()}
}

// Err returns the response error, or nil for a success response.
func (r Response) Err() error {
	if r.Status == StatusOK {
		return nil
	}
	if r.Error == "" {
		return fmt.Errorf("daemon error (status %q)", r.Status)
	}
	return fmt.Errorf("daemon error: %s", r.Error)
}

// Sample is a pair of DAC codes.
type Sample struct {
	Steering uint16 `json:"steering"`
	Throttle uint16 `json:"throttle"`
}

// Status is the data of a get_status response.
type Status struct {
	Running   bool      `json:"running"`
	Connected bool      `json:"connected"`
	Held      bool      `json:"held"`
	Neutral   bool      `json:"neutral"`
	Ticks     uint64    `json:"ticks"`
	UpdatedAt time.Time `json:"updated_at"`

	Sample        Sample  `json:"sample"`
	Steering      float64 `json:"steering"`
	Throttle      float64 `json:"throttle"`
	ThrottleState string  `json:"throttle_state"`

	DACHealthy   bool   `json:"dac_healthy"`
	DACFailures  uint64 `json:"dac_failures"`
	LastDACError string `json:"last_dac_error,omitempty"`

	ConfigVersion uint64    `json:"config_version"`
	ConfigSource  string    `json:"config_source"`
	ConfigLoaded  time.Time `json:"config_loaded"`
	LastReloadErr string    `json:"last_reload_error,omitempty"`
}

// Marshal encodes a request as an envelope.
func Marshal(r Request) ([]byte, error) {
	var env Envelope

	switch r := r.(type) {
	case ReloadConfig:
		env.Type = TypeReloadConfig

	case CenterOutputs:
		env.Type = TypeCenterOutputs
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal CenterOutputs: %w", err)
		}
		env.Data = data

	case ResumeOutputs:
		env.Type = TypeResumeOutputs
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal ResumeOutputs: %w", err)
		}
		env.Data = data

	case GetStatus:
		env.Type = TypeGetStatus

	default:
		return nil, fmt.Errorf("unknown request type: %T", r)
	}

	return json.Marshal(env)
}

// Unmarshal decodes an envelope into a request.
func Unmarshal(data []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case TypeReloadConfig:
		return ReloadConfig{}, nil

	case TypeCenterOutputs:
		var r CenterOutputs
		if err := unmarshalData(env.Data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal CenterOutputs: %w", err)
		}
		return r, nil

	case TypeResumeOutputs:
		var r ResumeOutputs
		if err := unmarshalData(env.Data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal ResumeOutputs: %w", err)
		}
		return r, nil

	case TypeGetStatus:
		return GetStatus{}, nil

	case "":
		return nil, errors.New("missing request type")

	default:
		return nil, fmt.Errorf("unknown request type: %s", env.Type)
	}
}

// unmarshalData treats absent data as an empty object.
func unmarshalData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}

// Send delivers one request to the daemon at socketPath and returns its
// response. A response with status "error" is returned together with a
// non-nil error.
func Send(socketPath string, r Request) (Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, DefaultTimeout)
	if err != nil {
		return Response{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(DefaultTimeout))

	data, err := Marshal(r)
	if err != nil {
		return Response{}, err
	}
	if _, err := fmt.Fprintf(conn, "%s\n", strings.TrimSpace(string(data))); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, resp.Err()
}

// FetchStatus sends GetStatus and decodes the returned Status.
func FetchStatus(socketPath string) (Status, error) {
	resp, err := Send(socketPath, GetStatus{})
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}
