package serialport

import (
	"errors"
	"fmt"
)

// ErrNoPort is returned when no candidate serial endpoint exists.
var ErrNoPort = errors.New("serialport: no serial port found")

// DiscoverError wraps an enumerator failure.
type DiscoverError struct {
	Err error
}

// Error implements the error interface.
func (e *DiscoverError) Error() string {
	return fmt.Sprintf("serialport: enumerate ports: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DiscoverError) Unwrap() error {
	return e.Err
}
