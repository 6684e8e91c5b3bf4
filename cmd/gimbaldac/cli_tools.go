package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
)

// DevicesCmd lists input devices.
type DevicesCmd struct{}

func (c *DevicesCmd) Run() error {
	return listInputDevices(os.Stdout)
}

// EventsCmd prints axis and button events from a device until interrupted.
type EventsCmd struct {
	Device string `arg:"" optional:"" help:"Input event device. Defaults to input.device from the config."`
	Grab   bool   `help:"Grab the device so other programs do not see the events."`
}

func (c *EventsCmd) Run(g *Globals) error {
	device := c.Device
	if device == "" {
		cfg, _, err := g.loadConfig()
		if err != nil {
			return err
		}
		device = cfg.Input.Device
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return dumpEvents(ctx, device, c.Grab, os.Stdout)
}

// CurvesCmd prints how each acceleration curve maps hold time to throttle.
type CurvesCmd struct {
	Strength float64 `help:"Curve strength." default:"2.0"`
	Ramp     float64 `help:"Ramp duration in seconds." default:"1.0"`
	Steps    int     `help:"Number of rows." default:"10"`
}

func (c *CurvesCmd) Run() error {
	return writeCurveTable(os.Stdout, c.Strength, c.Ramp, c.Steps)
}

func writeCurveTable(w io.Writer, strength, ramp float64, steps int) error {
	if steps < 1 {
		return fmt.Errorf("steps must be >= 1")
	}
	if !(ramp > 0) {
		return fmt.Errorf("ramp must be > 0")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "time\tprogress\t")
	for _, ct := range CurveTypes {
		fmt.Fprintf(tw, "%s\t", ct)
	}
	fmt.Fprintln(tw)

	for i := 0; i <= steps; i++ {
		p := float64(i) / float64(steps)
		fmt.Fprintf(tw, "%.2fs\t%.2f\t", p*ramp, p)
		for _, ct := range CurveTypes {
			fmt.Fprintf(tw, "%.3f\t", Shape(p, ct, strength))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
