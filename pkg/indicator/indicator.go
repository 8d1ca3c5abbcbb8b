// Package indicator signals channel lifecycle state to an external
// two-lamp indicator, typically a pair of LEDs on the Pi's GPIO header.
//
// The indicator is a side channel: every implementation swallows its own
// failures. A dead LED must never interrupt command flow, so Set has no
// error return.
package indicator

import "time"

// Signal is the two-boolean projection of channel state.
type Signal struct {
	Busy  bool
	Ready bool
}

// Indicator drives the external status lamps.
type Indicator interface {
	// Set updates both lamps. Implementations never fail upward.
	Set(busy, ready bool)
}

// Conventional patterns around lifecycle transitions.
var (
	Connecting = Signal{Busy: true, Ready: false}
	Idle       = Signal{Busy: true, Ready: true}
	Sending    = Signal{Busy: false, Ready: true}
	Fault      = Signal{Busy: false, Ready: false}
	Off        = Signal{Busy: false, Ready: false}
)

// Pulse flashes the sending pattern on ind for d, then returns to idle.
// It marks one inbound line on the status lamp; d must be long enough
// for a human-visible blink on real hardware.
func Pulse(ind Indicator, d time.Duration) {
	ind.Set(Sending.Busy, Sending.Ready)
	if d > 0 {
		time.Sleep(d)
	}
	ind.Set(Idle.Busy, Idle.Ready)
}

// Nop is the indicator for hosts without status lamps.
type Nop struct{}

// Set does nothing.
func (Nop) Set(busy, ready bool) {}

var _ Indicator = Nop{}
