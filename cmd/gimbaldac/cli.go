package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gimbaldac/internal/configpaths"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"
)

// Globals are flags shared by every subcommand.
type Globals struct {
	ConfigFile string `name:"config" short:"c" type:"path" env:"GIMBALDAC_CONFIG" help:"Daemon config file (.yaml, .json or .toml). When empty ./gimbaldac.*, ~/.config/gimbaldac/config.* and /etc/gimbaldac/config.* are searched."`
	LogLevel   string `name:"log-level" env:"GIMBALDAC_LOG_LEVEL" help:"Log level: error, warn, info, debug. Overrides logging.level."`
	LogFile    string `name:"log-file" type:"path" help:"Also append logs to this file. Overrides logging.file."`
}

// CLI is the gimbaldac command line.
type CLI struct {
	Globals `embed:""`

	Run     RunCmd           `cmd:"" default:"withargs" help:"Run the daemon (default)."`
	Config  ConfigCmd        `cmd:"" help:"Config file helpers."`
	Devices DevicesCmd       `cmd:"" help:"List input devices."`
	Events  EventsCmd        `cmd:"" help:"Print input events to find axis and button codes."`
	Curves  CurvesCmd        `cmd:"" help:"Print the acceleration curve table."`
	Version kong.VersionFlag `help:"Print version and exit."`
}

// loadConfig resolves and decodes the daemon config. Without a file the
// defaults are used and the returned path is empty.
func (g *Globals) loadConfig() (Config, string, error) {
	path, err := configpaths.FindDaemonConfig(g.ConfigFile)
	if err != nil {
		return Config{}, "", fmt.Errorf("config file: %w", err)
	}
	if path == "" {
		return DefaultConfig(), "", nil
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		return Config{}, "", err
	}
	return cfg, path, nil
}

// newLogger builds the process logger. level and file come from the config
// and are overridden by the global flags when those are set.
func (g *Globals) newLogger(level, file string) (*slog.Logger, func() error, error) {
	if g.LogLevel != "" {
		level = g.LogLevel
	}
	if g.LogFile != "" {
		file = g.LogFile
	}
	lvl, err := parseLogLevel(level)
	if err != nil {
		return nil, nil, err
	}
	w, closeFn, err := openLogOutput(file)
	if err != nil {
		return nil, nil, err
	}
	return setupLogger(lvl, w), closeFn, nil
}

// ============================================================================
// run
// ============================================================================

// RunCmd starts the daemon. Flags override the config file.
type RunCmd struct {
	Device          *string `help:"Input event device (overrides input.device)."`
	DryRun          *bool   `name:"dry-run" help:"Log DAC codes instead of writing to the I2C bus."`
	UpdateHz        *int    `name:"update-hz" help:"Sample loop rate in Hz (overrides output.update_hz)."`
	I2CBus          *int    `name:"i2c-bus" help:"I2C bus number (overrides output.i2c_bus)."`
	IPCSocket       *string `name:"ipc-socket" help:"Unix socket for gimbaldac-ctl (overrides ipc.socket_path)."`
	TelemetryListen *string `name:"telemetry-listen" help:"Telemetry websocket address, empty disables (overrides telemetry.listen)."`
}

func (r *RunCmd) overrides(g *Globals) FlagOverrides {
	o := FlagOverrides{
		Device:          r.Device,
		DryRun:          r.DryRun,
		UpdateHz:        r.UpdateHz,
		I2CBus:          r.I2CBus,
		IPCSocketPath:   r.IPCSocket,
		TelemetryListen: r.TelemetryListen,
	}
	if g.LogLevel != "" {
		lvl := g.LogLevel
		o.LogLevel = &lvl
	}
	return o
}

// Run is called by Kong when the run command is executed.
func (r *RunCmd) Run(g *Globals) error {
	cfg, path, err := g.loadConfig()
	if err != nil {
		return err
	}
	overrides := r.overrides(g)
	overrides.Apply(&cfg)

	logger, closeLog, err := g.newLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := NewConfigStore(path, overrides, cfg, logger)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if path == "" {
		logger.Warn("no config file found, running on defaults")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runDaemon(ctx, store, logger)
}

// runDaemon opens the hardware and runs every long-lived part of the daemon
// until ctx is canceled or one of them fails.
func runDaemon(ctx context.Context, store *ConfigStore, logger *slog.Logger) error {
	cfg := store.Config()

	logger.Info("starting gimbaldac", "version", version, "config", store.Current().Source)
	logger.Debug("configuration",
		"device", cfg.Input.Device,
		"kind", cfg.Input.Kind,
		"pedal_mode", cfg.Throttle.PedalMode,
		"i2c_bus", cfg.Output.I2CBus,
		"steering_addr", fmt.Sprintf("0x%02x", cfg.Output.SteeringAddr),
		"throttle_addr", fmt.Sprintf("0x%02x", cfg.Output.ThrottleAddr),
		"dry_run", cfg.Output.DryRun,
		"update_hz", cfg.Output.UpdateHz,
		"ipc_socket", cfg.IPC.SocketPath,
		"telemetry", cfg.Telemetry.Listen)

	dac, err := openDAC(cfg.Output, logger)
	if err != nil {
		return err
	}
	defer dac.Close()

	input, err := openInputSource(cfg.Input, logger)
	if err != nil {
		return err
	}
	defer input.Close()

	status := newStatusBoard()
	commands := make(chan LoopCommand, 8)

	var broadcasts chan Broadcast
	if cfg.Telemetry.Listen != "" {
		broadcasts = make(chan Broadcast, 256)
	}

	store.OnReload(func(snap *Snapshot, err error) {
		now := time.Now()
		if err != nil {
			status.Update(func(s *LoopStatus) { s.LastReloadErr = err.Error() })
			publish(broadcasts, BroadcastConfigRejected{Error: err.Error(), At: now})
			return
		}
		status.Update(func(s *LoopStatus) { s.LastReloadErr = "" })
		publish(broadcasts, BroadcastConfigReloaded{Version: snap.Version, Source: snap.Source, At: now})
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runLoop(gctx, LoopDeps{
			Config:     store,
			Input:      input,
			DAC:        dac,
			Status:     status,
			Commands:   commands,
			Broadcasts: broadcasts,
			Logger:     logger,
		})
	})

	if cfg.IPC.SocketPath != "" {
		h := &ipcHandler{store: store, commands: commands, status: status, logger: logger}
		g.Go(func() error { return runIPCServer(gctx, ExpandPath(cfg.IPC.SocketPath), h) })
	}

	if cfg.Telemetry.Listen != "" {
		srv := NewServer(logger, status, HubConfig{})
		mux := http.NewServeMux()
		srv.Register(mux, cfg.Telemetry.Path)
		mux.HandleFunc("/status", statusHandler(status))

		g.Go(func() error { srv.Hub().Run(gctx); return nil })
		g.Go(func() error { RunBroadcaster(gctx, srv.Hub(), broadcasts, logger); return nil })
		g.Go(func() error { return runHTTPServer(gctx, cfg.Telemetry.Listen, mux, logger) })
	}

	g.Go(func() error {
		// Live reload is optional; IPC and SIGHUP still work without it.
		if err := store.Watch(gctx); err != nil {
			logger.Warn("config file watch disabled", "error", err)
		}
		return nil
	})
	g.Go(func() error { reloadOnSIGHUP(gctx, store, logger); return nil })

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

func openDAC(cfg OutputConfig, logger *slog.Logger) (DAC, error) {
	if cfg.DryRun {
		logger.Info("dry run: DAC writes are logged at debug level")
		return newDryRunDAC(logger), nil
	}
	bus, err := openI2CBus(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %d: %w", cfg.I2CBus, err)
	}
	return newMCP4725Pair(bus, cfg.SteeringAddr, cfg.ThrottleAddr, bus.Close), nil
}

func reloadOnSIGHUP(ctx context.Context, store *ConfigStore, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("SIGHUP received, reloading config")
			_, _ = store.Reload()
		}
	}
}

// statusHandler serves the loop status as JSON for scripts that cannot
// speak websocket.
func statusHandler(status *statusBoard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, status.Load())
	}
}

func writeJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
