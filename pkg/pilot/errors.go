package pilot

import "errors"

var (
	// ErrQueueFull means the utterance queue has no room; the caller
	// should retry after the current utterance finishes.
	ErrQueueFull = errors.New("pilot: utterance queue full")

	// ErrNotRunning means the pilot's run loop is not active.
	ErrNotRunning = errors.New("pilot: not running")
)
