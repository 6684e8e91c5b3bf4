package main

import (
	"sync"
	"time"
)

// LoopStatus is the externally visible state of the sample loop.
// It is a plain value; readers get a copy.
type LoopStatus struct {
	Running   bool      `json:"running"`
	Connected bool      `json:"connected"`
	Held      bool      `json:"held"`
	Neutral   bool      `json:"neutral"`
	Ticks     uint64    `json:"ticks"`
	UpdatedAt time.Time `json:"updated_at"`

	Sample        OutputSample  `json:"sample"`
	Steering      float64       `json:"steering"`
	Throttle      float64       `json:"throttle"`
	ThrottleState ThrottleState `json:"throttle_state"`

	DACHealthy   bool   `json:"dac_healthy"`
	DACFailures  uint64 `json:"dac_failures"`
	LastDACError string `json:"last_dac_error,omitempty"`

	ConfigVersion uint64    `json:"config_version"`
	ConfigSource  string    `json:"config_source"`
	ConfigLoaded  time.Time `json:"config_loaded"`
	LastReloadErr string    `json:"last_reload_error,omitempty"`
}

// statusBoard shares LoopStatus between the loop (writer) and the IPC and
// telemetry goroutines (readers).
type statusBoard struct {
	mu sync.RWMutex
	st LoopStatus
}

func newStatusBoard() *statusBoard {
	return &statusBoard{st: LoopStatus{DACHealthy: true}}
}

// Update applies fn to the status under the write lock.
func (b *statusBoard) Update(fn func(*LoopStatus)) {
	b.mu.Lock()
	fn(&b.st)
	b.mu.Unlock()
}

// Load returns a copy of the current status.
func (b *statusBoard) Load() LoopStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.st
}
