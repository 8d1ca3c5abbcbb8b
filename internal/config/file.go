package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// File is the root structure loaded from rover.yaml.
// Every field is optional; zero values mean "use the built-in default".
// Precedence at startup is flags > environment > file > defaults.
type File struct {
	Serial SerialFile `yaml:"serial"`
	Intent IntentFile `yaml:"intent"`
	Speech SpeechFile `yaml:"speech"`
	Web    WebFile    `yaml:"web"`
	GPIO   GPIOFile   `yaml:"gpio"`
	Log    LogFile    `yaml:"log"`
}

// SerialFile configures the serial channel.
type SerialFile struct {
	Port       string `yaml:"port"`        // device path; empty = autodetect
	Baud       int    `yaml:"baud"`        // default 115200
	PreferGPIO bool   `yaml:"prefer_gpio"` // try the Pi UART header first
}

// IntentFile configures the chat-based intent extractor.
type IntentFile struct {
	URL    string `yaml:"url"`    // OpenAI-compatible base URL
	Model  string `yaml:"model"`  // chat model name
	APIKey string `yaml:"apikey"` // optional for local providers
}

// SpeechFile configures the spoken acknowledgement sink.
type SpeechFile struct {
	Disabled   bool   `yaml:"disabled"`
	PiperModel string `yaml:"piper_model"` // path to the piper voice model
	Volume     int    `yaml:"volume"`      // ALSA volume percent, 0 = leave alone
}

// WebFile configures the dashboard server.
type WebFile struct {
	Disabled bool   `yaml:"disabled"`
	Port     string `yaml:"port"`
}

// GPIOFile configures the status LED pins.
type GPIOFile struct {
	Enabled   bool `yaml:"enabled"`
	StatusPin int  `yaml:"status_pin"`
	ReadyPin  int  `yaml:"ready_pin"`
}

// LogFile configures logging.
type LogFile struct {
	Level string `yaml:"level"`
}

// LoadFile reads and parses a rover.yaml file.
// A missing file is not an error; it returns an empty File so callers
// can fall through to env vars and defaults.
func LoadFile(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
