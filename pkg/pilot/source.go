package pilot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// Source yields operator utterances for the run loop. Next blocks until
// an utterance arrives, the source ends (io.EOF), or ctx is cancelled.
type Source interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// ConsoleSource reads utterances line by line from a reader, normally
// stdin. A prompt is printed before each read when the output writer is
// set.
type ConsoleSource struct {
	prompt string
	out    io.Writer

	once  sync.Once
	lines chan string
	errMu sync.Mutex
	err   error

	scanner *bufio.Scanner
}

// NewConsoleSource reads utterances from stdin with a prompt.
func NewConsoleSource() *ConsoleSource {
	return NewConsoleReader(os.Stdin, os.Stdout)
}

// NewConsoleReader reads utterances from r, prompting on out. A nil out
// suppresses the prompt.
func NewConsoleReader(r io.Reader, out io.Writer) *ConsoleSource {
	return &ConsoleSource{
		prompt:  "say> ",
		out:     out,
		scanner: bufio.NewScanner(r),
	}
}

// Next returns the next line of input. The reader goroutine starts on
// first use so a constructed-but-unused source costs nothing.
func (s *ConsoleSource) Next(ctx context.Context) (string, error) {
	s.once.Do(s.start)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case text, ok := <-s.lines:
		if !ok {
			return "", s.readErr()
		}
		return text, nil
	}
}

// Close is a no-op; the underlying reader belongs to the caller.
func (s *ConsoleSource) Close() error {
	return nil
}

func (s *ConsoleSource) start() {
	s.lines = make(chan string)
	go func() {
		defer close(s.lines)
		for {
			if s.out != nil {
				fmt.Fprint(s.out, s.prompt)
			}
			if !s.scanner.Scan() {
				s.setErr(s.scanner.Err())
				return
			}
			s.lines <- s.scanner.Text()
		}
	}()
}

func (s *ConsoleSource) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.err = err
}

// readErr maps the scanner outcome to the Source contract: a clean end
// of input is io.EOF.
func (s *ConsoleSource) readErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err != nil {
		return s.err
	}
	return io.EOF
}

var _ Source = (*ConsoleSource)(nil)
