package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// configWatchDebounce coalesces the burst of events editors produce when
// saving (truncate, write, chmod, rename).
const configWatchDebounce = 200 * time.Millisecond

// ConfigStore owns the active configuration.
//
// Readers get an immutable *Snapshot through Current, which is a single
// atomic load. Reloads build and validate a complete Config before the new
// snapshot is published; an invalid file leaves the previous one in place.
type ConfigStore struct {
	path      string
	overrides FlagOverrides
	logger    *slog.Logger

	cur atomic.Pointer[Snapshot]

	mu       sync.Mutex // serializes reloads
	cfg      Config
	version  uint64
	onReload func(*Snapshot, error)
}

// NewConfigStore validates initial and publishes it as version 1.
// path may be empty when the daemon runs on defaults; Reload then fails.
func NewConfigStore(path string, overrides FlagOverrides, initial Config, logger *slog.Logger) (*ConfigStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &ConfigStore{path: path, overrides: overrides, logger: logger}
	s.publishLocked(initial)
	return s, nil
}

// Current returns the active snapshot. It never returns nil.
func (s *ConfigStore) Current() *Snapshot {
	return s.cur.Load()
}

// Config returns a copy of the active configuration.
func (s *ConfigStore) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Path returns the config file the store reloads from.
func (s *ConfigStore) Path() string { return s.path }

// OnReload registers fn to be called after every reload attempt with either
// the new snapshot or the rejection error. Set it before Watch is started.
func (s *ConfigStore) OnReload(fn func(*Snapshot, error)) {
	s.mu.Lock()
	s.onReload = fn
	s.mu.Unlock()
}

// Reload re-reads the config file. On any error the previous snapshot stays
// active and the error is returned.
func (s *ConfigStore) Reload() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.reloadLocked()
	if err != nil {
		s.logger.Warn("config reload rejected, keeping previous config", "path", s.path, "error", err)
	} else {
		s.logger.Info("config reloaded", "path", s.path, "version", snap.Version)
	}
	if s.onReload != nil {
		s.onReload(snap, err)
	}
	return snap, err
}

func (s *ConfigStore) reloadLocked() (*Snapshot, error) {
	if s.path == "" {
		return nil, errors.New("no config file to reload (running on defaults)")
	}
	cfg, err := LoadConfigFile(s.path)
	if err != nil {
		return nil, err
	}
	s.overrides.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	for _, field := range restartOnlyChanges(s.cfg, cfg) {
		s.logger.Warn("config change requires restart to take effect", "field", field)
	}
	return s.publishLocked(cfg), nil
}

func (s *ConfigStore) publishLocked(cfg Config) *Snapshot {
	s.version++
	snap := cfg.ToSnapshot()
	snap.Version = s.version
	snap.LoadedAt = time.Now()
	snap.Source = s.path
	if snap.Source == "" {
		snap.Source = "defaults"
	}
	s.cfg = cfg
	s.cur.Store(snap)
	return snap
}

// restartOnlyChanges lists the sections that differ between old and next but
// are only read at startup.
func restartOnlyChanges(old, next Config) []string {
	var out []string
	// input.kind is read per tick from the snapshot.
	oldIn, nextIn := old.Input, next.Input
	oldIn.Kind, nextIn.Kind = "", ""
	if oldIn != nextIn {
		out = append(out, "input")
	}
	if old.Output.I2CBus != next.Output.I2CBus ||
		old.Output.SteeringAddr != next.Output.SteeringAddr ||
		old.Output.ThrottleAddr != next.Output.ThrottleAddr ||
		old.Output.DryRun != next.Output.DryRun {
		out = append(out, "output.i2c")
	}
	if old.IPC != next.IPC {
		out = append(out, "ipc")
	}
	if old.Telemetry != next.Telemetry {
		out = append(out, "telemetry")
	}
	if old.Logging != next.Logging {
		out = append(out, "logging")
	}
	return out
}

// Watch reloads the config whenever its file changes, until ctx is canceled.
// The parent directory is watched so editors that replace the file by rename
// keep triggering reloads.
func (s *ConfigStore) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	target, err := filepath.Abs(ExpandPath(s.path))
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("config watch %s: %w", filepath.Dir(target), err)
	}
	s.logger.Info("watching config file", "path", target)

	var (
		debounce   *time.Timer
		debounceCh <-chan time.Time
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(configWatchDebounce)
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(configWatchDebounce)
			}
			debounceCh = debounce.C

		case <-debounceCh:
			debounceCh = nil
			_, _ = s.Reload()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config watch error", "error", err)
		}
	}
}
