// Roversay - speak text through the rover's voice stack
//
// Usage:
//
//	go run ./cmd/roversay "battery low, returning to base"
//	echo "hello" | go run ./cmd/roversay
//	go run ./cmd/roversay -health
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/roverbyte/go-rover/internal/config"
	"github.com/roverbyte/go-rover/internal/log"
	"github.com/roverbyte/go-rover/pkg/speak"
)

func main() {
	model := flag.String("model", config.DefaultPiperModel, "Piper voice model path")
	volume := flag.Int("volume", 0, "ALSA volume percent (0 leaves it alone)")
	health := flag.Bool("health", false, "Check the speech stack and exit")
	consoleOnly := flag.Bool("console", false, "Print instead of speaking")
	flag.Parse()

	log.Init(config.LogLevel())

	sink := buildSink(*consoleOnly, *model, *volume)
	defer sink.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *health {
		if err := sink.Health(ctx); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Speech stack healthy")
		return
	}

	if flag.NArg() > 0 {
		say(ctx, sink, strings.Join(flag.Args(), " "))
		return
	}

	// No arguments: speak each stdin line.
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		say(ctx, sink, text)
	}
}

func say(ctx context.Context, sink speak.Sink, text string) {
	if err := sink.Say(ctx, text); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

// buildSink prefers piper with a console fallback, matching what the
// pilot daemon speaks through.
func buildSink(consoleOnly bool, model string, volume int) speak.Sink {
	if consoleOnly {
		return speak.NewConsole()
	}
	piper, err := speak.NewPiper(speak.WithModel(model), speak.WithVolume(volume))
	if err != nil {
		fmt.Printf("⚠️  Piper unavailable (%v), printing instead\n", err)
		return speak.NewConsole()
	}
	chain, err := speak.NewChain(piper, speak.NewConsole())
	if err != nil {
		return speak.NewConsole()
	}
	return chain
}
