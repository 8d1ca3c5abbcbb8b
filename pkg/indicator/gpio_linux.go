//go:build linux

package indicator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/roverbyte/go-rover/internal/log"
)

const sysGPIO = "/sys/class/gpio"

// GPIO drives two lamps through the sysfs GPIO interface. Every sysfs
// write is best-effort: a missing or unwritable pin degrades to a no-op
// and is reported once at debug level.
type GPIO struct {
	statusPin int
	readyPin  int
	logger    *slog.Logger
}

// NewGPIO exports and configures the two pins. Setup failures are logged
// and otherwise ignored; the returned indicator is always usable.
func NewGPIO(statusPin, readyPin int) *GPIO {
	g := &GPIO{
		statusPin: statusPin,
		readyPin:  readyPin,
		logger:    log.Component("indicator"),
	}
	g.setup(statusPin)
	g.setup(readyPin)
	return g
}

// Set drives the status lamp from busy and the ready lamp from ready.
func (g *GPIO) Set(busy, ready bool) {
	g.write(g.statusPin, busy)
	g.write(g.readyPin, ready)
}

func (g *GPIO) setup(pin int) {
	export := filepath.Join(sysGPIO, "export")
	if err := os.WriteFile(export, []byte(strconv.Itoa(pin)), 0o644); err != nil {
		// EBUSY means the pin is already exported, which is fine.
		if !os.IsExist(err) {
			g.logger.Debug("gpio export failed", "pin", pin, "error", err)
		}
	}
	// The gpioN directory appears asynchronously after export.
	dir := fmt.Sprintf("gpio%d", pin)
	direction := filepath.Join(sysGPIO, dir, "direction")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(direction, []byte("out"), 0o644); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	g.logger.Debug("gpio direction failed", "pin", pin)
}

func (g *GPIO) write(pin int, on bool) {
	value := filepath.Join(sysGPIO, fmt.Sprintf("gpio%d", pin), "value")
	b := []byte("0")
	if on {
		b = []byte("1")
	}
	if err := os.WriteFile(value, b, 0o644); err != nil {
		g.logger.Debug("gpio write failed", "pin", pin, "error", err)
	}
}

var _ Indicator = (*GPIO)(nil)
