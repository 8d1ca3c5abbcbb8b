package command

import (
	"errors"
	"fmt"
)

// Sentinel errors for command validation and decoding.
var (
	// ErrUnknownName is returned for a verb the firmware does not know.
	ErrUnknownName = errors.New("command: unknown command name")

	// ErrUnitMismatch is returned when a verb carries the wrong unit.
	ErrUnitMismatch = errors.New("command: unit does not match command")

	// ErrSpeedRange is returned when SPEED is outside [0,100].
	ErrSpeedRange = errors.New("command: speed out of range 0-100")

	// ErrBadValue is returned for NaN, infinite or negative values.
	ErrBadValue = errors.New("command: bad value")

	// ErrBadLine is returned when a wire line is not a NAME,VALUE,UNIT triple.
	ErrBadLine = errors.New("command: malformed wire line")
)

// DecodeError reports the offending line along with the underlying cause.
type DecodeError struct {
	Line string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("command: decode %q: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

func wrapDecode(line string, err error) error {
	return &DecodeError{Line: line, Err: err}
}
