package channel

import (
	"time"

	"go.bug.st/serial"

	"github.com/roverbyte/go-rover/pkg/indicator"
)

// Defaults match the firmware's boot and timing behavior.
const (
	DefaultBaud          = 115200
	DefaultReadTimeout   = 2 * time.Second
	DefaultWriteTimeout  = 2 * time.Second
	DefaultSettlePeriod  = 3 * time.Second
	DefaultStartupWindow = 3 * time.Second
	DefaultWindow        = 3 * time.Second
	DefaultQuiet         = 1 * time.Second
	DefaultPollInterval  = 100 * time.Millisecond
	DefaultPreReadDelay  = 300 * time.Millisecond
	DefaultBackoff       = 1 * time.Second
	DefaultLinePulse     = 50 * time.Millisecond
)

// OpenPortFunc opens the underlying device. Replaceable in tests.
type OpenPortFunc func(path string, baud int) (Port, error)

// Config holds channel timing and wiring parameters.
type Config struct {
	// Baud is the line rate. The controller always runs 115200 8N1.
	Baud int

	// ReadTimeout bounds a single blocking read outside of polling.
	ReadTimeout time.Duration

	// WriteTimeout bounds a single outbound transfer. Writes that take
	// longer count as connection failures.
	WriteTimeout time.Duration

	// SettlePeriod is how long to wait after opening the port before
	// touching it. ESP32-class boards reset on open and need time to
	// finish booting.
	SettlePeriod time.Duration

	// StartupWindow bounds the wait for boot chatter after the probe.
	StartupWindow time.Duration

	// Window is how long response collection waits for a first line.
	Window time.Duration

	// Quiet is the gap that ends response collection once lines have
	// arrived.
	Quiet time.Duration

	// PollInterval is the read timeout used while polling for lines.
	PollInterval time.Duration

	// PreReadDelay is the pause between sending a command and starting
	// to collect its response.
	PreReadDelay time.Duration

	// Backoff is the pause between closing a failed connection and
	// reopening it.
	Backoff time.Duration

	// LinePulse is how long the indicator flashes for each inbound
	// line.
	LinePulse time.Duration

	// Opener opens the device. Defaults to the real serial port.
	Opener OpenPortFunc

	// Indicator receives lifecycle signals. Defaults to indicator.Nop.
	Indicator indicator.Indicator
}

// DefaultConfig returns a Config with production timing.
func DefaultConfig() Config {
	return Config{
		Baud:          DefaultBaud,
		ReadTimeout:   DefaultReadTimeout,
		WriteTimeout:  DefaultWriteTimeout,
		SettlePeriod:  DefaultSettlePeriod,
		StartupWindow: DefaultStartupWindow,
		Window:        DefaultWindow,
		Quiet:         DefaultQuiet,
		PollInterval:  DefaultPollInterval,
		PreReadDelay:  DefaultPreReadDelay,
		Backoff:       DefaultBackoff,
		LinePulse:     DefaultLinePulse,
		Opener:        openSerialPort,
		Indicator:     indicator.Nop{},
	}
}

// Option customizes a Config.
type Option func(*Config)

// WithBaud overrides the line rate.
func WithBaud(baud int) Option {
	return func(c *Config) { c.Baud = baud }
}

// WithTimeouts overrides the read and write timeouts.
func WithTimeouts(read, write time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = read
		c.WriteTimeout = write
	}
}

// WithSettlePeriod overrides the post-open settle period.
func WithSettlePeriod(d time.Duration) Option {
	return func(c *Config) { c.SettlePeriod = d }
}

// WithStartupWindow overrides the handshake collection window.
func WithStartupWindow(d time.Duration) Option {
	return func(c *Config) { c.StartupWindow = d }
}

// WithPollInterval overrides the inbound poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}

// WithPreReadDelay overrides the pause between send and collect.
func WithPreReadDelay(d time.Duration) Option {
	return func(c *Config) { c.PreReadDelay = d }
}

// WithCollection overrides the default response collection bounds.
func WithCollection(window, quiet time.Duration) Option {
	return func(c *Config) {
		c.Window = window
		c.Quiet = quiet
	}
}

// WithBackoff overrides the reconnect backoff.
func WithBackoff(d time.Duration) Option {
	return func(c *Config) { c.Backoff = d }
}

// WithLinePulse overrides the per-line indicator flash duration.
func WithLinePulse(d time.Duration) Option {
	return func(c *Config) { c.LinePulse = d }
}

// WithOpener replaces the device opener. Used by tests to substitute a
// fake port.
func WithOpener(open OpenPortFunc) Option {
	return func(c *Config) { c.Opener = open }
}

// WithIndicator attaches a status indicator.
func WithIndicator(ind indicator.Indicator) Option {
	return func(c *Config) { c.Indicator = ind }
}

// withDefaults fills zero fields so a partially built Config is safe.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Baud == 0 {
		c.Baud = d.Baud
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.SettlePeriod == 0 {
		c.SettlePeriod = d.SettlePeriod
	}
	if c.StartupWindow == 0 {
		c.StartupWindow = d.StartupWindow
	}
	if c.Window == 0 {
		c.Window = d.Window
	}
	if c.Quiet == 0 {
		c.Quiet = d.Quiet
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.PreReadDelay == 0 {
		c.PreReadDelay = d.PreReadDelay
	}
	if c.Backoff == 0 {
		c.Backoff = d.Backoff
	}
	if c.LinePulse == 0 {
		c.LinePulse = d.LinePulse
	}
	if c.Opener == nil {
		c.Opener = d.Opener
	}
	if c.Indicator == nil {
		c.Indicator = d.Indicator
	}
	return c
}

// openSerialPort opens the real device at 8N1.
func openSerialPort(path string, baud int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}
