package speak

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Config holds speech sink configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// Synthesis
	Binary string
	Model  string

	// Output holds the path of the temporary WAV between synthesis
	// and playback.
	Output string

	// Players are tried in order until one plays the file.
	Players []string

	// Volume is the ALSA mixer level in percent set once at startup.
	// Zero leaves the mixer alone.
	Volume int

	// Timeouts
	SynthesisTimeout time.Duration
	PlaybackTimeout  time.Duration

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring speech sinks.
type Option func(*Config)

// WithBinary sets the path of the piper binary.
func WithBinary(path string) Option {
	return func(c *Config) {
		c.Binary = path
	}
}

// WithModel sets the path of the voice model (.onnx).
func WithModel(path string) Option {
	return func(c *Config) {
		c.Model = path
	}
}

// WithOutput sets the temporary WAV path.
func WithOutput(path string) Option {
	return func(c *Config) {
		c.Output = path
	}
}

// WithPlayers overrides the audio player fallback order.
func WithPlayers(players ...string) Option {
	return func(c *Config) {
		c.Players = players
	}
}

// WithVolume sets the ALSA mixer level in percent.
func WithVolume(percent int) Option {
	return func(c *Config) {
		c.Volume = percent
	}
}

// WithTimeouts sets the synthesis and playback timeouts.
func WithTimeouts(synthesis, playback time.Duration) Option {
	return func(c *Config) {
		c.SynthesisTimeout = synthesis
		c.PlaybackTimeout = playback
	}
}

// WithLogger sets the structured logger for the sink.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Binary:           "piper",
		Output:           filepath.Join(os.TempDir(), "rover_voice.wav"),
		Players:          []string{"aplay", "paplay", "mpg123", "mplayer", "omxplayer"},
		Volume:           80,
		SynthesisTimeout: 10 * time.Second,
		PlaybackTimeout:  15 * time.Second,
		Logger:           slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Model == "" {
		return ErrNoModel
	}
	return nil
}
