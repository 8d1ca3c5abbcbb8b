package channel

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// Common channel errors.
var (
	// ErrNotConnected is returned when an operation needs an open port
	// and the channel has none.
	ErrNotConnected = errors.New("channel: not connected")

	// ErrAlreadyOpen is returned by Open when the channel already holds
	// a live port.
	ErrAlreadyOpen = errors.New("channel: already open")

	// ErrInputBusy is returned when a second consumer tries to take the
	// inbound stream while a collector or background reader owns it.
	ErrInputBusy = errors.New("channel: input stream already owned")

	// ErrWriteTimeout is returned when a write does not complete within
	// the configured write timeout.
	ErrWriteTimeout = errors.New("channel: write timed out")
)

// ConnectError reports a failed open or handshake against a specific
// device path.
type ConnectError struct {
	Path string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("channel: connect %s: %v", e.Path, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// WriteError reports a failed outbound transfer. Op is "write" or
// "flush".
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("channel: %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// ReadError reports a failed inbound transfer.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("channel: read: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// IsDisconnection reports whether err indicates the device went away,
// as opposed to a transient or configuration problem. It drives the
// reconnect supervisor: only disconnection-class failures are worth a
// close-and-reopen cycle.
func IsDisconnection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWriteTimeout) {
		return true
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
			return true
		case serial.PortBusy, serial.PermissionDenied,
			serial.InvalidSpeed, serial.InvalidDataBits,
			serial.InvalidParity, serial.InvalidStopBits,
			serial.InvalidTimeoutValue, serial.ErrorEnumeratingPorts,
			serial.FunctionNotImplemented:
			return false
		}
	}

	// USB adapters yanked mid-transfer tend to surface as raw OS errors
	// rather than typed port errors.
	msg := strings.ToLower(err.Error())
	patterns := []string{
		"device not configured",
		"input/output error",
		"no such device",
		"device not found",
		"broken pipe",
		"device disconnected",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
