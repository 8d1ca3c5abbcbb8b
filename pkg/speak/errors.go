package speak

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrEmptyText is returned when there is nothing to speak.
	ErrEmptyText = errors.New("speak: empty text")

	// ErrNoModel is returned when the voice model path is missing.
	ErrNoModel = errors.New("speak: voice model required")

	// ErrNoBinary is returned when the synthesis binary cannot be found.
	ErrNoBinary = errors.New("speak: piper binary not found")

	// ErrNoPlayer is returned when no audio player produced output.
	ErrNoPlayer = errors.New("speak: no working audio player")

	// ErrNoSinks is returned when a chain is built without sinks.
	ErrNoSinks = errors.New("speak: no sinks available")
)

// SinkError wraps an error with sink context.
type SinkError struct {
	Sink string
	Err  error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("speak [%s]: %v", e.Sink, e.Err)
}

// Unwrap returns the underlying error.
func (e *SinkError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with sink context.
func WrapError(sink string, err error) error {
	if err == nil {
		return nil
	}
	return &SinkError{Sink: sink, Err: err}
}
