// Package serialport discovers the serial endpoint of the rover's motion
// controller.
//
// Candidates are enumerated fresh on every call and ranked by a fixed,
// deterministic rule order: the Pi's GPIO UART header (when enabled in the
// boot configuration), a priority list of well-known device paths, USB
// bridge-vendor keyword matches, the generic USB serial class, and finally
// whatever enumerates first. Selection over a candidate list is a pure
// function so it can be tested without hardware.
package serialport

// Kind classifies how an endpoint is attached.
type Kind int

const (
	// KindUSB is a USB serial bridge (CH340, CP210x, FTDI, CDC-ACM).
	KindUSB Kind = iota
	// KindGPIO is the UART on the Pi's GPIO header.
	KindGPIO
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindUSB:
		return "usb"
	case KindGPIO:
		return "gpio"
	default:
		return "unknown"
	}
}

// Selection rule ordinals, in the order Discover applies them.
// The winning rule is recorded as the endpoint's Priority.
const (
	PriorityGPIO = iota
	PriorityListed
	PriorityKeyword
	PriorityGenericUSB
	PriorityFirst
	// PriorityExplicit marks an endpoint the operator named directly,
	// bypassing discovery.
	PriorityExplicit
)

// Endpoint is a selected serial device. Endpoints are enumerated fresh on
// each discovery call and never cached across restarts.
type Endpoint struct {
	Path     string
	Kind     Kind
	Priority int
}

// RuleName returns the name of the selection rule recorded in Priority.
func (e Endpoint) RuleName() string {
	switch e.Priority {
	case PriorityGPIO:
		return "gpio uart"
	case PriorityListed:
		return "priority list"
	case PriorityKeyword:
		return "vendor keyword"
	case PriorityGenericUSB:
		return "usb serial class"
	case PriorityFirst:
		return "first enumerated"
	case PriorityExplicit:
		return "operator specified"
	default:
		return "unknown"
	}
}

// FromPath builds an Endpoint for a device path the operator named
// directly. The Pi's UART node maps to KindGPIO, everything else to
// KindUSB.
func FromPath(path string) Endpoint {
	kind := KindUSB
	if path == DefaultGPIOPath {
		kind = KindGPIO
	}
	return Endpoint{Path: path, Kind: kind, Priority: PriorityExplicit}
}

// Candidate is one enumerated serial device with its advertised USB
// metadata. The zero metadata strings are fine; matching is best effort.
type Candidate struct {
	Path         string
	IsUSB        bool
	Description  string // advertised product string
	Manufacturer string // vendor name and VID text
}
