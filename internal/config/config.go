// Package config provides configuration helpers for go-rover commands.
package config

import (
	"os"
	"strconv"
)

// Default endpoints for local collaborators. The model default suits a
// Raspberry Pi 5 class host running Ollama locally.
const (
	DefaultOllamaURL  = "http://127.0.0.1:11434/v1"
	DefaultModel      = "qwen2.5:1.5b"
	DefaultWebPort    = "8181"
	DefaultPiperModel = "/usr/share/piper/voices/en_US-amy-medium.onnx"
)

// SerialPort returns a serial port override from the ROVER_PORT env var.
// Empty means autodetect.
func SerialPort() string {
	return os.Getenv("ROVER_PORT")
}

// LogLevel returns the log level from ROVER_LOG_LEVEL or "info".
func LogLevel() string {
	if lvl := os.Getenv("ROVER_LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// GPIOPin reads a GPIO pin number from the named env var.
// Returns def when unset or not a number.
func GPIOPin(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
