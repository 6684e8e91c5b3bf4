package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gorilla/websocket"
	"golang.org/x/term"
)

// ws_listen connects to the gimbaldac telemetry websocket and prints what it
// receives. On a terminal, output samples are drawn as a live two-line gauge.

type listenCLI struct {
	URL string `help:"Telemetry websocket URL." default:"ws://127.0.0.1:8787/ws"`
	Raw bool   `help:"Print every frame as JSON instead of drawing gauges."`
}

type frame struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type sampleData struct {
	SteeringCode  uint16  `json:"steering_code"`
	ThrottleCode  uint16  `json:"throttle_code"`
	Steering      float64 `json:"steering"`
	Throttle      float64 `json:"throttle"`
	ThrottleState string  `json:"throttle_state"`
	Neutral       bool    `json:"neutral"`
	Held          bool    `json:"held"`
}

func main() {
	var cli listenCLI
	kong.Parse(&cli,
		kong.Name("ws_listen"),
		kong.Description("Print gimbaldac telemetry"),
		kong.UsageOnError(),
	)

	u, err := url.Parse(cli.URL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	log.Printf("connected! (press Ctrl+C to exit)")

	fd := int(os.Stdout.Fd())
	live := !cli.Raw && term.IsTerminal(fd)

	done := make(chan struct{})
	go func() {
		defer close(done)
		drawn := false
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}

			if !live {
				fmt.Println(string(message))
				continue
			}

			var f frame
			if err := json.Unmarshal(message, &f); err != nil {
				continue
			}
			if f.Type == "output_sample" {
				var s sampleData
				if err := json.Unmarshal(f.Data, &s); err != nil {
					continue
				}
				if drawn {
					fmt.Print("\033[2A")
				}
				drawGauges(s, termWidth(fd))
				drawn = true
				continue
			}

			// Anything else is printed above the gauges.
			if drawn {
				fmt.Print("\033[2A\033[J")
				drawn = false
			}
			fmt.Printf("[%s] %s\n", strings.ToUpper(f.Type), string(f.Data))
		}
	}()

	select {
	case <-sigc:
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
	}
}

func termWidth(fd int) int {
	w, _, err := term.GetSize(fd)
	if err != nil || w < 40 {
		return 80
	}
	return w
}

func drawGauges(s sampleData, width int) {
	label := ""
	switch {
	case s.Held:
		label = " HELD"
	case s.Neutral:
		label = " NEUTRAL"
	}
	barWidth := width - 32
	fmt.Printf("\033[2Ksteering %4d %+.3f %s\n", s.SteeringCode, s.Steering, bar(s.Steering, barWidth))
	fmt.Printf("\033[2Kthrottle %4d %+.3f %s %s%s\n", s.ThrottleCode, s.Throttle, bar(s.Throttle, barWidth), s.ThrottleState, label)
}

// bar renders v in [-1,1] as a centered gauge.
func bar(v float64, width int) string {
	if width < 10 {
		width = 10
	}
	half := width / 2
	n := int(math.Round(math.Min(1, math.Abs(v)) * float64(half)))

	left := strings.Repeat(" ", half)
	right := strings.Repeat(" ", half)
	if v < 0 {
		left = strings.Repeat(" ", half-n) + strings.Repeat("#", n)
	} else {
		right = strings.Repeat("#", n) + strings.Repeat(" ", half-n)
	}
	return "[" + left + "|" + right + "]"
}
