package speak

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Console prints spoken text to a writer instead of playing audio.
// Useful on machines without a sound stack and as the last link of a
// Chain so acknowledgements are never lost.
type Console struct {
	out io.Writer
}

// NewConsole creates a console sink writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a console sink writing to w.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Say prints the text.
func (c *Console) Say(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	_, err := fmt.Fprintf(c.out, "🔊 %s\n", cleanText(text))
	return err
}

// Health reports the console as always available.
func (c *Console) Health(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (c *Console) Close() error {
	return nil
}

// Verify Console implements Sink at compile time.
var _ Sink = (*Console)(nil)
