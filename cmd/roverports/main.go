// Roverports - show serial devices and which one discovery would pick
//
// Usage:
//
//	go run ./cmd/roverports          # list candidates and the winner
//	go run ./cmd/roverports -probe   # also open the winner and query status
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roverbyte/go-rover/internal/config"
	"github.com/roverbyte/go-rover/internal/log"
	"github.com/roverbyte/go-rover/pkg/channel"
	"github.com/roverbyte/go-rover/pkg/command"
	"github.com/roverbyte/go-rover/pkg/serialport"
)

func main() {
	probe := flag.Bool("probe", false, "Open the selected port and query controller status")
	preferGPIO := flag.Bool("prefer-gpio", false, "Try the Pi GPIO UART header first")
	flag.Parse()

	log.Init(config.LogLevel())

	fmt.Println("🔍 Rover Serial Discovery")
	fmt.Println("=========================")

	resolver := serialport.NewResolver(serialport.Config{PreferGPIO: *preferGPIO})

	if resolver.GPIOEnabled() {
		fmt.Printf("GPIO UART: enabled (%s)\n", serialport.DefaultGPIOPath)
	} else {
		fmt.Println("GPIO UART: not available")
	}

	cands, err := resolver.Candidates()
	if err != nil {
		fmt.Printf("⚠️  Enumeration failed: %v\n", err)
	}
	if len(cands) == 0 {
		fmt.Println("\nNo serial devices enumerated.")
	} else {
		fmt.Printf("\n%d serial device(s):\n", len(cands))
		for _, c := range cands {
			bus := "-"
			if c.IsUSB {
				bus = "usb"
			}
			fmt.Printf("  %-16s %-4s %-28s %s\n", c.Path, bus, c.Description, c.Manufacturer)
		}
	}

	ep, err := resolver.Discover()
	if err != nil {
		fmt.Printf("\n❌ No usable port: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n✅ Selected %s (%s, rule: %s)\n", ep.Path, ep.Kind, ep.RuleName())

	if !*probe {
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("\n🔌 Probing %s (settle and handshake take a few seconds)... ", ep.Path)
	ch := channel.New()
	if err := ch.Open(ctx, ep); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	defer ch.Close()
	fmt.Println("✅")

	sup := channel.NewSupervisor(ch)
	lines, err := sup.Exchange(ctx, command.QueryStatus())
	if err != nil {
		fmt.Printf("⚠️  Status query failed: %v\n", err)
		return
	}
	if len(lines) == 0 {
		fmt.Println("🤫 Controller connected but silent")
		return
	}
	for _, ln := range lines {
		fmt.Printf("  [%s] %s\n", ln.At.Format("15:04:05.000"), ln.Text)
	}
}
