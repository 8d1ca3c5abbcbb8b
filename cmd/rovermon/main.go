// Rovermon - interactive serial console for the rover's motion controller
//
// Streams every line the controller prints and sends console-grammar
// commands, either directly over serial or attached to a running
// pilot's dashboard.
//
// Usage:
//
//	go run ./cmd/rovermon                              # autodetect the port
//	go run ./cmd/rovermon /dev/ttyUSB0                 # use a specific port
//	go run ./cmd/rovermon -attach ws://pi:8181/ws/lines
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roverbyte/go-rover/internal/config"
	"github.com/roverbyte/go-rover/internal/httpc"
	"github.com/roverbyte/go-rover/internal/log"
	"github.com/roverbyte/go-rover/pkg/channel"
	"github.com/roverbyte/go-rover/pkg/command"
	"github.com/roverbyte/go-rover/pkg/dispatch"
	"github.com/roverbyte/go-rover/pkg/serialport"
	"github.com/roverbyte/go-rover/pkg/web"
)

const timestampLayout = "15:04:05.000"

func main() {
	attach := flag.String("attach", "", "Attach to a running pilot (ws://host:port/ws/lines)")
	baud := flag.Int("baud", channel.DefaultBaud, "Serial baud rate")
	preferGPIO := flag.Bool("prefer-gpio", false, "Try the Pi GPIO UART header first")
	flag.Parse()

	log.Init(config.LogLevel())

	fmt.Println("🔍 Rover Serial Monitor")
	fmt.Println("=======================")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	if *attach != "" {
		err = runAttached(ctx, *attach)
	} else {
		err = runSerial(ctx, flag.Arg(0), *baud, *preferGPIO)
	}
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

// runSerial owns the channel directly: a background reader prints
// controller lines while the console loop sends operator commands.
func runSerial(ctx context.Context, path string, baud int, preferGPIO bool) error {
	ep, err := resolveEndpoint(path, preferGPIO)
	if err != nil {
		return err
	}

	ch := channel.New(channel.WithBaud(baud))
	sup := channel.NewSupervisor(ch)

	fmt.Printf("🔌 Connecting to %s (%s)... ", ep.Path, ep.RuleName())
	if err := ch.Open(ctx, ep); err != nil {
		fmt.Println("❌")
		return err
	}
	fmt.Println("✅")

	reader := channel.NewReader(ch, func(ln channel.Line) {
		fmt.Printf("[%s] rover: %s\n", ln.At.Format(timestampLayout), ln.Text)
	})
	if err := reader.Start(); err != nil {
		ch.Close()
		return err
	}

	defer func() {
		reader.Stop()
		if ch.Connected() {
			fmt.Println("\n🛑 Sending STOP...")
			if err := ch.Send(command.Halt()); err != nil {
				fmt.Printf("⚠️  %v\n", err)
			}
		}
		ch.Close()
		fmt.Println("👋 Disconnected")
	}()

	fmt.Println("\nType 'help' for commands, 'quit' to exit.")
	return console(ctx, func(line string) bool {
		return handleSerial(ctx, sup, line)
	})
}

// handleSerial dispatches one console line onto the channel.
// Returns true when the operator asked to quit.
func handleSerial(ctx context.Context, sup *channel.Supervisor, line string) bool {
	action, err := dispatch.Parse(line)
	if err != nil {
		printParseError(err)
		return false
	}

	switch act := action.(type) {
	case dispatch.SendCommand:
		if err := sup.Send(ctx, act.Cmd); err != nil {
			fmt.Printf("⚠️  Send failed: %v\n", err)
			return false
		}
		fmt.Printf("[%s] sent: %s\n", time.Now().Format(timestampLayout), act.Cmd)
	case dispatch.SendRaw:
		if err := sup.SendRaw(ctx, act.Payload); err != nil {
			fmt.Printf("⚠️  Send failed: %v\n", err)
			return false
		}
		fmt.Printf("[%s] sent: %s\n", time.Now().Format(timestampLayout), act.Payload)
	case dispatch.Meta:
		return handleMeta(act.Kind)
	case dispatch.Unknown:
		if act.Input != "" {
			fmt.Printf("⚠️  Unknown command %q (try 'help')\n", act.Input)
		}
	}
	return false
}

// runAttached talks to a running pilot instead of the serial port:
// controller lines arrive over the dashboard's line stream, commands go
// out through its API.
func runAttached(ctx context.Context, wsURL string) error {
	apiURL, err := commandURL(wsURL)
	if err != nil {
		return err
	}

	fmt.Printf("🔗 Attaching to %s... ", wsURL)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		fmt.Println("❌")
		return err
	}
	defer conn.Close()
	fmt.Println("✅")

	go func() {
		for {
			var entry web.LineEntry
			if err := conn.ReadJSON(&entry); err != nil {
				fmt.Printf("⚠️  Line stream closed: %v\n", err)
				return
			}
			fmt.Printf("[%s] rover: %s\n", entry.Time, entry.Text)
		}
	}()

	fmt.Println("\nType 'help' for commands, 'quit' to exit.")
	client := httpc.NewClient(15 * time.Second)
	return console(ctx, func(line string) bool {
		return handleAttached(ctx, client, apiURL, line)
	})
}

// handleAttached resolves console-local verbs here and forwards
// everything else verbatim; the pilot parses and replies through the
// line stream.
func handleAttached(ctx context.Context, client *http.Client, apiURL, line string) bool {
	action, err := dispatch.Parse(line)
	if err != nil {
		printParseError(err)
		return false
	}

	switch act := action.(type) {
	case dispatch.Meta:
		return handleMeta(act.Kind)
	case dispatch.Unknown:
		if act.Input != "" {
			fmt.Printf("⚠️  Unknown command %q (try 'help')\n", act.Input)
		}
	default:
		if err := postCommand(ctx, client, apiURL, line); err != nil {
			fmt.Printf("⚠️  %v\n", err)
			return false
		}
		fmt.Printf("[%s] sent: %s\n", time.Now().Format(timestampLayout), strings.TrimSpace(line))
	}
	return false
}

func handleMeta(kind dispatch.MetaKind) bool {
	switch kind {
	case dispatch.MetaHelp:
		fmt.Println(dispatch.Help())
	case dispatch.MetaClear:
		fmt.Print("\033[H\033[2J")
	case dispatch.MetaQuit:
		return true
	}
	return false
}

// console reads operator lines from stdin and hands each to handle
// until quit, end of input, or ctx ends.
func console(ctx context.Context, handle func(line string) bool) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("rover> ")
			if !sc.Scan() {
				return
			}
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if handle(line) {
				return nil
			}
		}
	}
}

func printParseError(err error) {
	var parseErr *dispatch.ParseError
	if errors.As(err, &parseErr) {
		fmt.Printf("⚠️  %s\n", parseErr.Msg)
		return
	}
	fmt.Printf("⚠️  %v\n", err)
}

// resolveEndpoint picks the device: positional argument first, then the
// ROVER_PORT environment override, then discovery.
func resolveEndpoint(path string, preferGPIO bool) (serialport.Endpoint, error) {
	if path == "" {
		path = config.SerialPort()
	}
	if path != "" {
		return serialport.FromPath(path), nil
	}
	resolver := serialport.NewResolver(serialport.Config{PreferGPIO: preferGPIO})
	ep, err := resolver.Discover()
	if err != nil {
		return serialport.Endpoint{}, fmt.Errorf("no serial port found: %w", err)
	}
	return ep, nil
}

// commandURL derives the dashboard's command endpoint from its line
// stream URL.
func commandURL(wsURL string) (string, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", fmt.Errorf("bad attach url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("attach url scheme %q, want ws or wss", u.Scheme)
	}
	u.Path = "/api/command"
	return u.String(), nil
}

func postCommand(ctx context.Context, client *http.Client, apiURL, text string) error {
	body, err := json.Marshal(web.TextRequest{Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("pilot rejected the command: %s", apiErr.Error)
		}
		return fmt.Errorf("pilot returned %s", resp.Status)
	}
	return nil
}
