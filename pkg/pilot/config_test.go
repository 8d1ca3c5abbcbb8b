package pilot

import (
	"errors"
	"testing"

	"github.com/roverbyte/go-rover/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Baud != 115200 {
		t.Errorf("Baud = %d, want 115200", cfg.Baud)
	}
	if cfg.WebPort != "8181" {
		t.Errorf("WebPort = %q, want 8181", cfg.WebPort)
	}
	if cfg.StatusPin != 18 || cfg.ReadyPin != 23 {
		t.Errorf("pins = %d/%d, want 18/23", cfg.StatusPin, cfg.ReadyPin)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestApplyFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ApplyFile(&config.File{
		Serial: config.SerialFile{Port: "/dev/ttyUSB1", PreferGPIO: true},
		Intent: config.IntentFile{Model: "llama3.2:3b"},
		Web:    config.WebFile{Disabled: true},
		GPIO:   config.GPIOFile{Enabled: true, StatusPin: 5},
	})

	if cfg.Port != "/dev/ttyUSB1" {
		t.Errorf("Port = %q, want /dev/ttyUSB1", cfg.Port)
	}
	if !cfg.PreferGPIO {
		t.Error("PreferGPIO not applied")
	}
	if cfg.IntentModel != "llama3.2:3b" {
		t.Errorf("IntentModel = %q, want llama3.2:3b", cfg.IntentModel)
	}
	if !cfg.WebDisabled {
		t.Error("WebDisabled not applied")
	}
	if cfg.StatusPin != 5 {
		t.Errorf("StatusPin = %d, want 5", cfg.StatusPin)
	}
	// Zero values in the file leave defaults alone.
	if cfg.Baud != 115200 {
		t.Errorf("Baud = %d, file zero value clobbered the default", cfg.Baud)
	}
	if cfg.ReadyPin != DefaultReadyPin {
		t.Errorf("ReadyPin = %d, file zero value clobbered the default", cfg.ReadyPin)
	}
}

func TestLoadEnvConfigOverridesFile(t *testing.T) {
	t.Setenv("ROVER_PORT", "/dev/ttyAMA0")
	t.Setenv("ROVER_MODEL", "qwen2.5:3b")
	t.Setenv("ROVER_STATUS_PIN", "12")

	cfg := DefaultConfig()
	cfg.ApplyFile(&config.File{
		Serial: config.SerialFile{Port: "/dev/ttyUSB1"},
		Intent: config.IntentFile{Model: "llama3.2:3b"},
	})
	cfg.LoadEnvConfig()

	if cfg.Port != "/dev/ttyAMA0" {
		t.Errorf("Port = %q, want the env value", cfg.Port)
	}
	if cfg.IntentModel != "qwen2.5:3b" {
		t.Errorf("IntentModel = %q, want the env value", cfg.IntentModel)
	}
	if cfg.StatusPin != 12 {
		t.Errorf("StatusPin = %d, want 12", cfg.StatusPin)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad baud", func(c *Config) { c.Baud = 0 }, "Baud"},
		{"web without port", func(c *Config) { c.WebPort = "" }, "WebPort"},
		{"gpio without pins", func(c *Config) { c.GPIOEnabled = true; c.StatusPin = 0 }, "StatusPin"},
		{"bad history", func(c *Config) { c.HistorySize = -1 }, "HistorySize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("ConfigError.Field = %q, want %q", cfgErr.Field, tt.field)
			}
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Baud = -1
	if _, err := New(cfg); err == nil {
		t.Fatal("New() accepted a negative baud rate")
	}
}
