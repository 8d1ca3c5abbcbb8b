// Roverpilot - voice-driven rover control daemon
// Wires the serial command channel, the chat intent model, spoken
// acknowledgements, and the web dashboard into one process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/roverbyte/go-rover/internal/config"
	"github.com/roverbyte/go-rover/pkg/pilot"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	app, err := pilot.New(cfg)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}

	if err := app.Init(); err != nil {
		log.Fatalf("❌ Initialization failed: %v", err)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		log.Fatalf("❌ Runtime error: %v", err)
	}
}

// parseFlags resolves the configuration with precedence
// flags > environment > rover.yaml > defaults.
func parseFlags() (pilot.Config, error) {
	defaults := pilot.DefaultConfig()

	configPath := flag.String("config", "rover.yaml", "Path to the yaml config file")
	port := flag.String("port", "", "Serial device path (default autodetect)")
	baud := flag.Int("baud", defaults.Baud, "Serial baud rate")
	preferGPIO := flag.Bool("prefer-gpio", false, "Try the Pi GPIO UART header first")
	ollama := flag.String("ollama", defaults.IntentURL, "OpenAI-compatible chat base URL")
	model := flag.String("model", defaults.IntentModel, "Chat model name")
	noSpeech := flag.Bool("no-speech", false, "Print acknowledgements instead of speaking")
	piperModel := flag.String("piper-model", defaults.PiperModel, "Piper voice model path")
	volume := flag.Int("volume", 0, "ALSA volume percent (0 leaves it alone)")
	noWeb := flag.Bool("no-web", false, "Disable the web dashboard")
	webPort := flag.String("web-port", defaults.WebPort, "Dashboard port")
	gpio := flag.Bool("gpio", false, "Drive status LEDs on the GPIO header")
	statusPin := flag.Int("status-pin", defaults.StatusPin, "Busy LED pin (BCM)")
	readyPin := flag.Int("ready-pin", defaults.ReadyPin, "Ready LED pin (BCM)")
	logLevel := flag.String("log-level", defaults.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()

	cfg := defaults
	file, err := config.LoadFile(*configPath)
	if err != nil {
		return cfg, fmt.Errorf("config file %s: %w", *configPath, err)
	}
	cfg.ApplyFile(file)
	cfg.LoadEnvConfig()

	// Explicit flags win over the file and the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "baud":
			cfg.Baud = *baud
		case "prefer-gpio":
			cfg.PreferGPIO = *preferGPIO
		case "ollama":
			cfg.IntentURL = *ollama
		case "model":
			cfg.IntentModel = *model
		case "no-speech":
			cfg.SpeechDisabled = *noSpeech
		case "piper-model":
			cfg.PiperModel = *piperModel
		case "volume":
			cfg.Volume = *volume
		case "no-web":
			cfg.WebDisabled = *noWeb
		case "web-port":
			cfg.WebPort = *webPort
		case "gpio":
			cfg.GPIOEnabled = *gpio
		case "status-pin":
			cfg.StatusPin = *statusPin
		case "ready-pin":
			cfg.ReadyPin = *readyPin
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	return cfg, nil
}
