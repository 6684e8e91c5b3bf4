package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"gimbaldac/internal/control"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// The IPC server lets gimbaldac-ctl and scripts control the running daemon:
//   - reload the config file
//   - hold the outputs at neutral and resume them
//   - read the loop status
//
// The wire protocol lives in internal/control.
// ============================================================================

// loopReplyTimeout bounds how long an IPC request waits for the sample loop
// to pick up a command. The loop drains commands between ticks, so this only
// trips if the loop is gone.
const loopReplyTimeout = time.Second

// ConfigReloader is the part of ConfigStore the IPC server uses.
type ConfigReloader interface {
	Reload() (*Snapshot, error)
}

type ipcHandler struct {
	store    ConfigReloader
	commands chan<- LoopCommand
	status   *statusBoard
	logger   *slog.Logger
}

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, h *ipcHandler) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	h.logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				h.logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "use of closed network connection") {
				h.logger.Debug("IPC listener closed")
				return nil
			}

			h.logger.Error("IPC accept error", "error", err)
			continue
		}

		go h.serveConn(conn)
	}
}

// serveConn answers every request line on conn until the client hangs up.
func (h *ipcHandler) serveConn(conn net.Conn) {
	defer conn.Close()

	h.logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		h.logger.Debug("IPC received", "line", line)

		var resp control.Response
		req, err := control.Unmarshal([]byte(line))
		if err != nil {
			resp = control.Fail(fmt.Errorf("parse request: %w", err))
		} else {
			resp = h.handle(req)
		}

		if err := encoder.Encode(resp); err != nil {
			h.logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	h.logger.Debug("IPC connection closed")
}

func (h *ipcHandler) handle(req control.Request) control.Response {
	switch r := req.(type) {
	case control.ReloadConfig:
		snap, err := h.store.Reload()
		if err != nil {
			return control.Fail(err)
		}
		resp, err := control.OK(map[string]any{"version": snap.Version, "source": snap.Source})
		if err != nil {
			return control.Fail(err)
		}
		return resp

	case control.CenterOutputs:
		h.logger.Info("IPC center outputs", "origin", r.Origin)
		return h.sendLoop(func(reply chan<- error) LoopCommand { return CmdCenterOutputs{Reply: reply} })

	case control.ResumeOutputs:
		h.logger.Info("IPC resume outputs", "origin", r.Origin)
		return h.sendLoop(func(reply chan<- error) LoopCommand { return CmdResumeOutputs{Reply: reply} })

	case control.GetStatus:
		resp, err := control.OK(h.status.Load())
		if err != nil {
			return control.Fail(err)
		}
		return resp

	default:
		return control.Fail(fmt.Errorf("unsupported request %T", req))
	}
}

// sendLoop queues a command for the sample loop and waits for its reply.
func (h *ipcHandler) sendLoop(build func(reply chan<- error) LoopCommand) control.Response {
	reply := make(chan error, 1)
	select {
	case h.commands <- build(reply):
	default:
		return control.Fail(errLoopBusy{})
	}

	timer := time.NewTimer(loopReplyTimeout)
	defer timer.Stop()

	select {
	case err := <-reply:
		if err != nil {
			return control.Fail(err)
		}
		return control.Response{Status: control.StatusOK}
	case <-timer.C:
		return control.Fail(errors.New("sample loop did not respond"))
	}
}
