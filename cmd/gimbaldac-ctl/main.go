package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"gimbaldac/internal/configpaths"
	"gimbaldac/internal/control"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

// ============================================================================
// gimbaldac-ctl - Command-line IPC Client
// ============================================================================
// Sends control requests to a running gimbaldac daemon.
//
// Usage:
//   gimbaldac-ctl reload
//   gimbaldac-ctl center
//   gimbaldac-ctl resume
//   gimbaldac-ctl status [--json]
//
// The socket path defaults to /tmp/gimbaldac.sock and can be set with
// --socket, $GIMBALDAC_SOCKET or a ctl.{json,yaml,toml} file in the config
// directory.
// ============================================================================

type ctlCLI struct {
	Socket string `help:"Unix domain socket path of the daemon." default:"/tmp/gimbaldac.sock" env:"GIMBALDAC_SOCKET"`

	Reload reloadCmd `cmd:"" help:"Re-read the daemon config file."`
	Center centerCmd `cmd:"" help:"Hold both outputs at neutral."`
	Resume resumeCmd `cmd:"" help:"Resume outputs after center."`
	Status statusCmd `cmd:"" help:"Print the sample loop status."`
}

type reloadCmd struct{}

func (c *reloadCmd) Run(cli *ctlCLI) error {
	resp, err := control.Send(cli.Socket, control.ReloadConfig{})
	if err != nil {
		return err
	}
	var data struct {
		Version uint64 `json:"version"`
		Source  string `json:"source"`
	}
	if err := json.Unmarshal(resp.Data, &data); err == nil && data.Version > 0 {
		fmt.Printf("ok (config v%d from %s)\n", data.Version, data.Source)
		return nil
	}
	fmt.Println("ok")
	return nil
}

type centerCmd struct{}

func (c *centerCmd) Run(cli *ctlCLI) error {
	if _, err := control.Send(cli.Socket, control.CenterOutputs{Origin: "gimbaldac-ctl"}); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

type resumeCmd struct{}

func (c *resumeCmd) Run(cli *ctlCLI) error {
	if _, err := control.Send(cli.Socket, control.ResumeOutputs{Origin: "gimbaldac-ctl"}); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

type statusCmd struct {
	JSON bool `name:"json" help:"Print raw JSON."`
}

func (c *statusCmd) Run(cli *ctlCLI) error {
	st, err := control.FetchStatus(cli.Socket)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	return printStatus(os.Stdout, st)
}

func printStatus(w io.Writer, st control.Status) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(k string, v any) { fmt.Fprintf(tw, "%s\t%v\n", k, v) }

	row("running", st.Running)
	row("input", map[bool]string{true: "connected", false: "disconnected"}[st.Connected])
	row("held", st.Held)
	row("steering", fmt.Sprintf("%4d  (%+.3f)", st.Sample.Steering, st.Steering))
	row("throttle", fmt.Sprintf("%4d  (%+.3f) %s", st.Sample.Throttle, st.Throttle, st.ThrottleState))
	row("ticks", st.Ticks)
	if !st.UpdatedAt.IsZero() {
		row("updated", st.UpdatedAt.Format(time.RFC3339Nano))
	}
	dac := "ok"
	if !st.DACHealthy {
		dac = "failing: " + st.LastDACError
	}
	row("dac", fmt.Sprintf("%s (%d failed writes)", dac, st.DACFailures))
	row("config", fmt.Sprintf("v%d %s", st.ConfigVersion, st.ConfigSource))
	if st.LastReloadErr != "" {
		row("last reload", st.LastReloadErr)
	}
	return tw.Flush()
}

func main() {
	jsonPaths, yamlPaths, tomlPaths := configpaths.CLICandidatePaths("ctl")

	var cli ctlCLI
	ctx := kong.Parse(&cli,
		kong.Name("gimbaldac-ctl"),
		kong.Description("Control a running gimbaldac daemon over its IPC socket"),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)
	ctx.Bind(&cli)
	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
