// Package speak provides spoken feedback for the rover pilot.
//
// The package supports multiple output sinks: Piper (local neural TTS
// through the piper binary and an ALSA/Pulse player), Console (plain
// terminal print for headless development), and Chain (ordered fallback
// across sinks). All sinks implement the Sink interface, so the pilot
// never cares which backend actually produced the audio.
//
// Example usage:
//
//	sink, _ := speak.NewPiper(
//	    speak.WithModel("voices/en_US-amy-medium.onnx"),
//	)
//	defer sink.Close()
//
//	sink.Say(ctx, "robot moving forward 2 meters")
package speak

import "context"

// Sink defines the speech output interface.
// All implementations must satisfy this interface so callers can swap
// backends without changing code.
type Sink interface {
	// Say speaks the given text. It blocks until playback finishes or
	// the context is cancelled.
	Say(ctx context.Context, text string) error

	// Health checks that the sink is able to produce audio.
	Health(ctx context.Context) error

	// Close releases any resources held by the sink.
	Close() error
}
