package serialport

import (
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/roverbyte/go-rover/internal/log"
)

// DefaultGPIOPath is the Pi's GPIO header UART device.
const DefaultGPIOPath = "/dev/ttyS0"

// DefaultBootConfig is where Raspberry Pi OS keeps the UART enable flag.
const DefaultBootConfig = "/boot/config.txt"

// priorityPaths are tried in index order before any metadata matching.
var priorityPaths = []string{
	"/dev/ttyS0",
	"/dev/ttyUSB0",
	"/dev/ttyUSB1",
	"/dev/ttyACM0",
	"/dev/ttyACM1",
}

// Substrings that identify a microcontroller USB-serial bridge.
// Matching is case-insensitive.
var (
	descriptionKeywords  = []string{"ch340", "cp210", "usb serial", "uart", "silicon labs", "usb2.0-serial"}
	manufacturerKeywords = []string{"qinheng", "silicon", "ftdi", "1a86"}
)

// Config controls endpoint discovery.
type Config struct {
	// PreferGPIO tries the GPIO UART header before USB candidates.
	// It only wins when the boot configuration enables the UART and
	// the device node exists.
	PreferGPIO bool

	// GPIOPath overrides the GPIO UART device path.
	GPIOPath string

	// BootConfig overrides the boot configuration file path.
	BootConfig string
}

// DefaultConfig returns discovery defaults for a Raspberry Pi host.
func DefaultConfig() Config {
	return Config{
		GPIOPath:   DefaultGPIOPath,
		BootConfig: DefaultBootConfig,
	}
}

// Resolver selects the best serial endpoint for the motion controller.
type Resolver struct {
	cfg    Config
	logger *slog.Logger
}

// NewResolver creates a resolver with the given configuration.
// Zero-value path fields fall back to the defaults.
func NewResolver(cfg Config) *Resolver {
	if cfg.GPIOPath == "" {
		cfg.GPIOPath = DefaultGPIOPath
	}
	if cfg.BootConfig == "" {
		cfg.BootConfig = DefaultBootConfig
	}
	return &Resolver{
		cfg:    cfg,
		logger: log.Component("resolver"),
	}
}

// Discover enumerates candidates and returns the best endpoint.
// Returns ErrNoPort when nothing is attached.
func (r *Resolver) Discover() (Endpoint, error) {
	if r.cfg.PreferGPIO && r.gpioAvailable() {
		ep := Endpoint{Path: r.cfg.GPIOPath, Kind: KindGPIO, Priority: PriorityGPIO}
		r.logger.Info("endpoint selected", "path", ep.Path, "rule", ep.RuleName())
		return ep, nil
	}

	cands, err := enumerate()
	if err != nil && len(cands) == 0 {
		return Endpoint{}, &DiscoverError{Err: err}
	}
	if len(cands) == 0 {
		return Endpoint{}, ErrNoPort
	}

	ep, ok := pick(cands)
	if !ok {
		return Endpoint{}, ErrNoPort
	}
	r.logger.Info("endpoint selected", "path", ep.Path, "rule", ep.RuleName(), "candidates", len(cands))
	return ep, nil
}

// Candidates returns the current enumeration for diagnostics.
func (r *Resolver) Candidates() ([]Candidate, error) {
	return enumerate()
}

// GPIOEnabled reports whether the GPIO UART is usable: enable_uart=1 in
// the boot configuration and the device node present.
func (r *Resolver) GPIOEnabled() bool {
	return r.gpioAvailable()
}

func (r *Resolver) gpioAvailable() bool {
	if !bootConfigEnablesUART(r.cfg.BootConfig) {
		return false
	}
	if _, err := os.Stat(r.cfg.GPIOPath); err != nil {
		return false
	}
	return true
}

// bootConfigEnablesUART scans a config.txt for an uncommented
// enable_uart=1 line.
func bootConfigEnablesUART(path string) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		if line == "enable_uart=1" {
			return true
		}
	}
	return false
}

// pick applies the selection rules to a candidate list. It is a pure
// function: given the same candidates it returns the same endpoint no
// matter how the enumerator ordered them, except for the final
// first-enumerated fallback.
func pick(cands []Candidate) (Endpoint, bool) {
	if len(cands) == 0 {
		return Endpoint{}, false
	}

	byPath := make(map[string]Candidate, len(cands))
	for _, c := range cands {
		byPath[c.Path] = c
	}

	// Fixed priority paths, in list order.
	for _, p := range priorityPaths {
		if c, ok := byPath[p]; ok {
			return Endpoint{Path: c.Path, Kind: kindOf(c), Priority: PriorityListed}, true
		}
	}

	// Metadata and class matching walk a sorted copy so the result does
	// not depend on enumeration order.
	sorted := make([]Candidate, len(cands))
	copy(sorted, cands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	for _, c := range sorted {
		if matchesAny(c.Description, descriptionKeywords) || matchesAny(c.Manufacturer, manufacturerKeywords) {
			return Endpoint{Path: c.Path, Kind: kindOf(c), Priority: PriorityKeyword}, true
		}
	}

	for _, c := range sorted {
		if isUSBClassPath(c.Path) {
			return Endpoint{Path: c.Path, Kind: KindUSB, Priority: PriorityGenericUSB}, true
		}
	}

	c := cands[0]
	return Endpoint{Path: c.Path, Kind: kindOf(c), Priority: PriorityFirst}, true
}

func matchesAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func isUSBClassPath(path string) bool {
	return strings.HasPrefix(path, "/dev/ttyUSB") || strings.HasPrefix(path, "/dev/ttyACM")
}

func kindOf(c Candidate) Kind {
	if c.IsUSB || isUSBClassPath(c.Path) {
		return KindUSB
	}
	if c.Path == DefaultGPIOPath {
		return KindGPIO
	}
	return KindUSB
}
