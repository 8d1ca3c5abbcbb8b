// Package pilot orchestrates the voice-driven rover daemon: it wires
// the serial channel, the intent interpreter, the speech sink, the
// status LEDs, and the web dashboard into one application lifecycle.
package pilot

import (
	"os"

	"github.com/roverbyte/go-rover/internal/config"
	"github.com/roverbyte/go-rover/pkg/channel"
)

// Default status LED pins (BCM numbering on the Pi header).
const (
	DefaultStatusPin = 18
	DefaultReadyPin  = 23
)

// DefaultHistorySize bounds the command history kept for the dashboard.
const DefaultHistorySize = 100

// Config holds all configuration for the pilot application.
// Flag parsing is done in cmd/roverpilot/main.go; this struct is data only.
type Config struct {
	// Serial channel. An empty Port means autodetect.
	Port       string
	Baud       int
	PreferGPIO bool

	// Intent extraction (OpenAI-compatible chat endpoint).
	IntentURL   string
	IntentModel string
	IntentKey   string

	// Spoken acknowledgements.
	SpeechDisabled bool
	PiperModel     string
	Volume         int // ALSA volume percent, 0 = leave alone

	// Web dashboard.
	WebDisabled bool
	WebPort     string

	// Status LEDs on the GPIO header.
	GPIOEnabled bool
	StatusPin   int
	ReadyPin    int

	// Logging.
	LogLevel string

	// HistorySize bounds the command record history.
	HistorySize int
}

// DefaultConfig returns sensible defaults for a Pi 5 class host with a
// local Ollama daemon.
func DefaultConfig() Config {
	return Config{
		Baud:        channel.DefaultBaud,
		IntentURL:   config.DefaultOllamaURL,
		IntentModel: config.DefaultModel,
		PiperModel:  config.DefaultPiperModel,
		WebPort:     config.DefaultWebPort,
		StatusPin:   DefaultStatusPin,
		ReadyPin:    DefaultReadyPin,
		LogLevel:    "info",
		HistorySize: DefaultHistorySize,
	}
}

// ApplyFile overlays values from a rover.yaml file. Zero values in the
// file leave the config untouched, so file settings sit between the
// built-in defaults and the environment.
func (c *Config) ApplyFile(f *config.File) {
	if f == nil {
		return
	}
	if f.Serial.Port != "" {
		c.Port = f.Serial.Port
	}
	if f.Serial.Baud != 0 {
		c.Baud = f.Serial.Baud
	}
	if f.Serial.PreferGPIO {
		c.PreferGPIO = true
	}
	if f.Intent.URL != "" {
		c.IntentURL = f.Intent.URL
	}
	if f.Intent.Model != "" {
		c.IntentModel = f.Intent.Model
	}
	if f.Intent.APIKey != "" {
		c.IntentKey = f.Intent.APIKey
	}
	if f.Speech.Disabled {
		c.SpeechDisabled = true
	}
	if f.Speech.PiperModel != "" {
		c.PiperModel = f.Speech.PiperModel
	}
	if f.Speech.Volume != 0 {
		c.Volume = f.Speech.Volume
	}
	if f.Web.Disabled {
		c.WebDisabled = true
	}
	if f.Web.Port != "" {
		c.WebPort = f.Web.Port
	}
	if f.GPIO.Enabled {
		c.GPIOEnabled = true
	}
	if f.GPIO.StatusPin != 0 {
		c.StatusPin = f.GPIO.StatusPin
	}
	if f.GPIO.ReadyPin != 0 {
		c.ReadyPin = f.GPIO.ReadyPin
	}
	if f.Log.Level != "" {
		c.LogLevel = f.Log.Level
	}
}

// LoadEnvConfig loads configuration values from environment variables.
// Call this after ApplyFile so the environment wins over the file.
func (c *Config) LoadEnvConfig() {
	if port := config.SerialPort(); port != "" {
		c.Port = port
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		c.IntentURL = url
	}
	if model := os.Getenv("ROVER_MODEL"); model != "" {
		c.IntentModel = model
	}
	if key := os.Getenv("ROVER_API_KEY"); key != "" {
		c.IntentKey = key
	}
	if port := os.Getenv("ROVER_WEB_PORT"); port != "" {
		c.WebPort = port
	}
	if lvl := os.Getenv("ROVER_LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
	c.StatusPin = config.GPIOPin("ROVER_STATUS_PIN", c.StatusPin)
	c.ReadyPin = config.GPIOPin("ROVER_READY_PIN", c.ReadyPin)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Baud <= 0 {
		return &ConfigError{Field: "Baud", Message: "baud rate must be positive"}
	}
	if !c.WebDisabled && c.WebPort == "" {
		return &ConfigError{Field: "WebPort", Message: "web port is required unless the dashboard is disabled"}
	}
	if c.GPIOEnabled && (c.StatusPin <= 0 || c.ReadyPin <= 0) {
		return &ConfigError{Field: "StatusPin", Message: "GPIO pins must be positive when LEDs are enabled"}
	}
	if c.HistorySize <= 0 {
		return &ConfigError{Field: "HistorySize", Message: "history size must be positive"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
