package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// Config is the configuration file for the gimbaldac daemon.
//
// Keep defaults and validation centralized so the rest of the code can assume
// a well-formed config. The sample loop never sees Config directly; it reads
// the Snapshot produced by ToSnapshot.
type Config struct {
	Input       InputConfig       `yaml:"input" json:"input"`
	Output      OutputConfig      `yaml:"output" json:"output"`
	Processing  ProcessingConfig  `yaml:"processing" json:"processing"`
	Steering    SteeringConfig    `yaml:"steering" json:"steering"`
	Throttle    ThrottleConfig    `yaml:"throttle" json:"throttle"`
	Calibration CalibrationConfig `yaml:"calibration" json:"calibration"`
	IPC         IPCConfig         `yaml:"ipc" json:"ipc"`
	Telemetry   TelemetryConfig   `yaml:"telemetry" json:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

type InputConfig struct {
	Device string `yaml:"device" json:"device"`
	// Kind is "wheel" or "gamepad". Raw output is only allowed for gamepads.
	Kind                string `yaml:"kind" json:"kind"`
	Grab                bool   `yaml:"grab" json:"grab"`
	PollTimeoutMS       int    `yaml:"poll_timeout_ms" json:"poll_timeout_ms"`
	ReconnectIntervalMS int    `yaml:"reconnect_interval_ms" json:"reconnect_interval_ms"`
}

type OutputConfig struct {
	I2CBus       int     `yaml:"i2c_bus" json:"i2c_bus"`
	SteeringAddr uint16  `yaml:"steering_addr" json:"steering_addr"`
	ThrottleAddr uint16  `yaml:"throttle_addr" json:"throttle_addr"`
	DryRun       bool    `yaml:"dry_run" json:"dry_run"`
	UpdateHz     int     `yaml:"update_hz" json:"update_hz"`
	Clamp        float64 `yaml:"clamp" json:"clamp"`
	SwapControls bool    `yaml:"swap_controls" json:"swap_controls"`
}

type ProcessingConfig struct {
	Deadzone       float64 `yaml:"deadzone" json:"deadzone"`
	Expo           float64 `yaml:"expo" json:"expo"`
	RawOutput      bool    `yaml:"raw_output" json:"raw_output"`
	SteeringWindow int     `yaml:"steering_window" json:"steering_window"`
	ThrottleWindow int     `yaml:"throttle_window" json:"throttle_window"`
}

type SteeringConfig struct {
	Codes  []uint16 `yaml:"codes" json:"codes"`
	Trim   float64  `yaml:"trim" json:"trim"`
	Invert bool     `yaml:"invert" json:"invert"`
}

type ThrottleConfig struct {
	PedalMode string `yaml:"pedal_mode" json:"pedal_mode"` // buttons, axes or split_axis
	Range     string `yaml:"range" json:"range"`           // bidirectional or unidirectional

	// buttons mode
	ForwardButtons  []uint16 `yaml:"forward_buttons" json:"forward_buttons"`
	ReverseButtons  []uint16 `yaml:"reverse_buttons" json:"reverse_buttons"`
	AnalogPedalFeel bool     `yaml:"analog_pedal_feel" json:"analog_pedal_feel"`
	RampDurationSec float64  `yaml:"ramp_duration_sec" json:"ramp_duration_sec"`

	// axes mode
	ForwardAxes []uint16 `yaml:"forward_axes" json:"forward_axes"`
	ReverseAxes []uint16 `yaml:"reverse_axes" json:"reverse_axes"`

	// split_axis mode
	CombinedAxes []uint16 `yaml:"combined_axes" json:"combined_axes"`

	Curve         string  `yaml:"curve" json:"curve"`
	CurveStrength float64 `yaml:"curve_strength" json:"curve_strength"`
	Trim          float64 `yaml:"trim" json:"trim"`
	Invert        bool    `yaml:"invert" json:"invert"`
}

type CalibrationConfig struct {
	// Auto learns axis extents from observed values.
	Auto     bool       `yaml:"auto" json:"auto"`
	Steering AxisBounds `yaml:"steering" json:"steering"`
	Combined AxisBounds `yaml:"combined" json:"combined"`
	Forward  AxisBounds `yaml:"forward" json:"forward"`
	Reverse  AxisBounds `yaml:"reverse" json:"reverse"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
}

type TelemetryConfig struct {
	// Listen is the HTTP address for the telemetry websocket. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`
	Path   string `yaml:"path" json:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file,omitempty" json:"file,omitempty"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Device:              "/dev/input/event0",
			Kind:                string(KindWheel),
			Grab:                true,
			PollTimeoutMS:       defaultPollTimeoutMS,
			ReconnectIntervalMS: defaultReconnectIntervalMS,
		},
		Output: OutputConfig{
			I2CBus:       defaultI2CBus,
			SteeringAddr: defaultSteeringAddr,
			ThrottleAddr: defaultThrottleAddr,
			UpdateHz:     defaultUpdateHz,
			Clamp:        defaultOutputClamp,
		},
		Processing: ProcessingConfig{
			SteeringWindow: defaultSteeringWindow,
			ThrottleWindow: defaultThrottleWindow,
		},
		Steering: SteeringConfig{
			Codes: []uint16{ABS_X, ABS_RX},
		},
		Throttle: ThrottleConfig{
			PedalMode:       string(PedalButtons),
			Range:           string(RangeBidirectional),
			ForwardButtons:  []uint16{BTN_TR, BTN_TRIGGER},
			ReverseButtons:  []uint16{BTN_TL, BTN_THUMB},
			AnalogPedalFeel: true,
			RampDurationSec: defaultRampDuration,
			ForwardAxes:     []uint16{ABS_RZ, ABS_GAS},
			ReverseAxes:     []uint16{ABS_Z, ABS_BRAKE},
			CombinedAxes:    []uint16{ABS_Z},
			Curve:           string(CurveLinear),
			CurveStrength:   defaultCurveStrength,
		},
		Calibration: CalibrationConfig{
			Steering: AxisBounds{Min: -32768, Center: 0, Max: 32767},
			Combined: AxisBounds{Min: -32768, Center: 0, Max: 32767},
			Forward:  AxisBounds{Min: 0, Center: 0, Max: 255},
			Reverse:  AxisBounds{Min: 0, Center: 0, Max: 255},
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/gimbaldac.sock",
		},
		Telemetry: TelemetryConfig{
			Listen: "127.0.0.1:8787",
			Path:   "/ws",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads a config file and decodes it on top of DefaultConfig.
//
// The format follows the extension: .yaml/.yml, .json or .toml. Fields that
// are missing keep their defaults; unknown fields are ignored.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return decodeConfig(b, configFormat(path))
}

func configFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	default:
		return "yaml"
	}
}

func decodeConfig(b []byte, format string) (Config, error) {
	cfg := DefaultConfig()

	switch format {
	case "json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config json: %w", err)
		}

	case "toml":
		// Decode through a generic tree so missing tables keep their defaults.
		tree, err := toml.LoadBytes(b)
		if err != nil {
			return Config{}, fmt.Errorf("decode config toml: %w", err)
		}
		jb, err := json.Marshal(tree.ToMap())
		if err != nil {
			return Config{}, fmt.Errorf("decode config toml: %w", err)
		}
		if err := json.Unmarshal(jb, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config toml: %w", err)
		}

	default:
		dec := yaml.NewDecoder(bytes.NewReader(b))
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode config yaml: %w", err)
		}
	}

	return cfg, nil
}

// FlagOverrides applies command line overrides on top of a loaded config.
// Each override is only applied if its pointer is non-nil.
type FlagOverrides struct {
	Device          *string
	DryRun          *bool
	UpdateHz        *int
	I2CBus          *int
	IPCSocketPath   *string
	TelemetryListen *string
	LogLevel        *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Device != nil {
		cfg.Input.Device = *o.Device
	}
	if o.DryRun != nil {
		cfg.Output.DryRun = *o.DryRun
	}
	if o.UpdateHz != nil {
		cfg.Output.UpdateHz = *o.UpdateHz
	}
	if o.I2CBus != nil {
		cfg.Output.I2CBus = *o.I2CBus
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.TelemetryListen != nil {
		cfg.Telemetry.Listen = *o.TelemetryListen
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants. Errors are *ConfigInvalidError.
// A config is accepted or rejected as a whole.
func (c *Config) Validate() error {
	// Input
	if c.Input.Device == "" {
		return invalid("input.device", "must not be empty")
	}
	kind, err := ParseInputKind(c.Input.Kind)
	if err != nil {
		return invalid("input.kind", "%v", err)
	}
	if c.Input.PollTimeoutMS < 0 || c.Input.PollTimeoutMS > 50 {
		return invalid("input.poll_timeout_ms", "must be between 0 and 50")
	}
	if c.Input.ReconnectIntervalMS < 0 {
		return invalid("input.reconnect_interval_ms", "must be >= 0")
	}

	// Output
	if c.Output.UpdateHz < 1 || c.Output.UpdateHz > 1000 {
		return invalid("output.update_hz", "must be between 1 and 1000")
	}
	if !(c.Output.Clamp > 0 && c.Output.Clamp <= 1) {
		return invalid("output.clamp", "must be in (0, 1]")
	}
	if c.Output.I2CBus < 0 {
		return invalid("output.i2c_bus", "must be >= 0")
	}
	for _, a := range []struct {
		field string
		addr  uint16
	}{
		{"output.steering_addr", c.Output.SteeringAddr},
		{"output.throttle_addr", c.Output.ThrottleAddr},
	} {
		if a.addr < 0x03 || a.addr > 0x77 {
			return invalid(a.field, "0x%02x is not a 7-bit i2c address", a.addr)
		}
	}
	if c.Output.SteeringAddr == c.Output.ThrottleAddr {
		return invalid("output.throttle_addr", "must differ from output.steering_addr")
	}

	// Processing
	if !(c.Processing.Deadzone >= 0 && c.Processing.Deadzone < 1) {
		return invalid("processing.deadzone", "must be in [0, 1)")
	}
	if !(c.Processing.Expo >= 0 && c.Processing.Expo <= 1) {
		return invalid("processing.expo", "must be in [0, 1]")
	}
	if c.Processing.SteeringWindow < 1 {
		return invalid("processing.steering_window", "must be >= 1")
	}
	if c.Processing.ThrottleWindow < 1 {
		return invalid("processing.throttle_window", "must be >= 1")
	}
	if c.Processing.RawOutput && kind != KindGamepad {
		return invalid("processing.raw_output", "is only supported for input.kind %q", KindGamepad)
	}

	// Steering
	if len(c.Steering.Codes) == 0 {
		return invalid("steering.codes", "must not be empty")
	}
	if !(c.Steering.Trim >= -1 && c.Steering.Trim <= 1) {
		return invalid("steering.trim", "must be in [-1, 1]")
	}

	// Throttle
	mode, err := ParsePedalMode(c.Throttle.PedalMode)
	if err != nil {
		return invalid("throttle.pedal_mode", "%v", err)
	}
	if _, err := ParseThrottleRange(c.Throttle.Range); err != nil {
		return invalid("throttle.range", "%v", err)
	}
	if _, err := ParseCurveType(c.Throttle.Curve); err != nil {
		return invalid("throttle.curve", "%v", err)
	}
	if !(c.Throttle.CurveStrength >= 0) || math.IsInf(c.Throttle.CurveStrength, 0) {
		return invalid("throttle.curve_strength", "must be a finite number >= 0")
	}
	if !(c.Throttle.Trim >= -1 && c.Throttle.Trim <= 1) {
		return invalid("throttle.trim", "must be in [-1, 1]")
	}

	switch mode {
	case PedalButtons:
		if len(c.Throttle.ForwardButtons) == 0 || len(c.Throttle.ReverseButtons) == 0 {
			return invalid("throttle.forward_buttons", "and throttle.reverse_buttons must not be empty in buttons mode")
		}
		if !(c.Throttle.RampDurationSec > 0) || math.IsInf(c.Throttle.RampDurationSec, 0) {
			return invalid("throttle.ramp_duration_sec", "must be > 0")
		}
	case PedalAxes:
		if len(c.Throttle.ForwardAxes) == 0 || len(c.Throttle.ReverseAxes) == 0 {
			return invalid("throttle.forward_axes", "and throttle.reverse_axes must not be empty in axes mode")
		}
		if c.Calibration.Forward.Min == c.Calibration.Forward.Max {
			return invalid("calibration.forward", "min and max must differ")
		}
		if c.Calibration.Reverse.Min == c.Calibration.Reverse.Max {
			return invalid("calibration.reverse", "min and max must differ")
		}
	case PedalSplitAxis:
		if len(c.Throttle.CombinedAxes) == 0 {
			return invalid("throttle.combined_axes", "must not be empty in split_axis mode")
		}
		if c.Calibration.Combined.Min == c.Calibration.Combined.Max {
			return invalid("calibration.combined", "min and max must differ")
		}
	}

	// Calibration
	if c.Calibration.Steering.Min == c.Calibration.Steering.Max {
		return invalid("calibration.steering", "min and max must differ")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return invalid("ipc.socket_path", "must not be empty")
	}

	// Telemetry
	if c.Telemetry.Listen != "" && !strings.HasPrefix(c.Telemetry.Path, "/") {
		return invalid("telemetry.path", "must start with /")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return invalid("logging.level", "%v", err)
	}

	return nil
}

// ToSnapshot converts a validated config into the immutable form the sample
// loop reads.
func (c *Config) ToSnapshot() *Snapshot {
	kind, _ := ParseInputKind(c.Input.Kind)
	mode, _ := ParsePedalMode(c.Throttle.PedalMode)
	rng, _ := ParseThrottleRange(c.Throttle.Range)
	curve, _ := ParseCurveType(c.Throttle.Curve)

	return &Snapshot{
		Kind:           kind,
		Deadzone:       c.Processing.Deadzone,
		Expo:           c.Processing.Expo,
		RawOutput:      c.Processing.RawOutput,
		SteeringWindow: c.Processing.SteeringWindow,
		ThrottleWindow: c.Processing.ThrottleWindow,

		Steering: ChannelShaping{Trim: c.Steering.Trim, Invert: c.Steering.Invert},
		Throttle: ChannelShaping{Trim: c.Throttle.Trim, Invert: c.Throttle.Invert},

		PedalMode:       mode,
		ThrottleRange:   rng,
		Curve:           curve,
		CurveStrength:   c.Throttle.CurveStrength,
		RampDuration:    time.Duration(c.Throttle.RampDurationSec * float64(time.Second)),
		AnalogPedalFeel: c.Throttle.AnalogPedalFeel,

		UpdateHz:     c.Output.UpdateHz,
		OutputClamp:  c.Output.Clamp,
		SwapControls: c.Output.SwapControls,

		Bindings: Bindings{
			Steering:       cloneCodes(c.Steering.Codes),
			Combined:       cloneCodes(c.Throttle.CombinedAxes),
			Forward:        cloneCodes(c.Throttle.ForwardAxes),
			Reverse:        cloneCodes(c.Throttle.ReverseAxes),
			ForwardButtons: cloneCodes(c.Throttle.ForwardButtons),
			ReverseButtons: cloneCodes(c.Throttle.ReverseButtons),
		},
		Calibration: Calibration{
			Auto:     c.Calibration.Auto,
			Steering: c.Calibration.Steering,
			Combined: c.Calibration.Combined,
			Forward:  c.Calibration.Forward,
			Reverse:  c.Calibration.Reverse,
		},
	}
}

func cloneCodes(codes []uint16) []uint16 {
	return append([]uint16(nil), codes...)
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
