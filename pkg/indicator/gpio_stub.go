//go:build !linux

package indicator

// GPIO is a stand-in on hosts without sysfs GPIO.
type GPIO struct{ Nop }

// NewGPIO returns a no-op indicator off Linux.
func NewGPIO(statusPin, readyPin int) *GPIO { return &GPIO{} }
