// Package channel manages the serial command channel to the rover's
// motion controller.
//
// A Channel owns exactly one serial connection at a time and walks it
// through a small lifecycle: disconnected, connecting, connected,
// degraded. Opening performs the controller handshake (settle, buffer
// discard, STATUS probe, startup chatter collection) and succeeds even
// when the controller stays silent, because the link may still work for
// writes. Inbound traffic is consumed either synchronously through
// Collect or continuously through a Reader, never both at once; the
// channel enforces that exclusivity and rejects the second consumer
// with ErrInputBusy.
//
// The Supervisor wraps a Channel with the recovery policy for write
// failures: close, back off, reopen the same endpoint. The command that
// hit the failure is reported failed and never resent.
package channel

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/looplab/fsm"

	"github.com/roverbyte/go-rover/internal/log"
	"github.com/roverbyte/go-rover/pkg/command"
	"github.com/roverbyte/go-rover/pkg/indicator"
	"github.com/roverbyte/go-rover/pkg/serialport"
)

// Port is the transport the channel drives. go.bug.st/serial ports
// satisfy it directly; tests substitute MockPort.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	Drain() error
	SetReadTimeout(d time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Line is one inbound line with its arrival time.
type Line struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// inputOwner tracks which consumer currently holds the inbound stream.
type inputOwner int

const (
	ownerNone inputOwner = iota
	ownerCollector
	ownerReader
)

// Channel is the serial command channel. Safe for concurrent use, with
// the restriction that only one consumer may read at a time.
type Channel struct {
	cfg     Config
	logger  *slog.Logger
	ind     indicator.Indicator
	machine *fsm.FSM

	mu       sync.Mutex
	port     Port
	endpoint serialport.Endpoint
	lastErr  error
	owner    inputOwner

	// rx holds the residual partial line between polls. Only the
	// current input owner touches it; ownership handoff synchronizes
	// through mu.
	rx []byte
}

// New creates a disconnected channel.
func New(opts ...Option) *Channel {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	c := &Channel{
		cfg:    cfg,
		logger: log.Component("channel"),
		ind:    cfg.Indicator,
	}
	c.machine = newLifecycle(c.enterState)
	return c
}

// Open connects to the controller at ep and runs the handshake: wait
// the settle period for the board to boot, discard stale bytes in both
// directions, send a STATUS probe, then collect startup chatter for the
// startup window. The controller is not required to answer the probe;
// Open fails only on I/O errors or context cancellation.
func (c *Channel) Open(ctx context.Context, ep serialport.Endpoint) error {
	c.mu.Lock()
	if c.port != nil {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.mu.Unlock()

	c.transition(eventDial)
	c.logger.Info("opening port", "path", ep.Path, "kind", ep.Kind.String(), "baud", c.cfg.Baud)

	port, err := c.cfg.Opener(ep.Path, c.cfg.Baud)
	if err != nil {
		c.setLastErr(err)
		c.transition(eventAbort)
		return &ConnectError{Path: ep.Path, Err: err}
	}

	// The controller resets when the port opens and needs time to
	// finish booting before it will accept bytes.
	if err := sleepCtx(ctx, c.cfg.SettlePeriod); err != nil {
		port.Close()
		c.transition(eventAbort)
		return &ConnectError{Path: ep.Path, Err: err}
	}

	if err := port.SetReadTimeout(c.cfg.ReadTimeout); err != nil {
		port.Close()
		c.setLastErr(err)
		c.transition(eventAbort)
		return &ConnectError{Path: ep.Path, Err: err}
	}

	// Start from a clean line: drop anything queued during boot.
	if err := port.ResetInputBuffer(); err != nil {
		c.logger.Debug("reset input buffer failed", "error", err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		c.logger.Debug("reset output buffer failed", "error", err)
	}

	c.mu.Lock()
	c.port = port
	c.endpoint = ep
	c.lastErr = nil
	c.rx = nil
	c.mu.Unlock()

	probe, err := command.Encode(command.QueryStatus())
	if err == nil {
		err = c.WriteLine(probe)
	}
	if err != nil {
		c.dropPort()
		c.setLastErr(err)
		c.transition(eventAbort)
		return &ConnectError{Path: ep.Path, Err: err}
	}

	// Boot banners and the probe reply, if any. Logged, not parsed.
	// When a background reader already owns the inbound stream, as
	// happens on reconnects in monitored mode, the chatter is left to
	// it instead.
	if err := c.acquireInput(ownerCollector); err == nil {
		lines, cerr := c.collect(ctx, c.cfg.StartupWindow, c.cfg.Quiet)
		c.releaseInput(ownerCollector)
		for _, ln := range lines {
			c.logger.Info("startup", "line", ln.Text)
		}
		if cerr != nil {
			c.dropPort()
			c.setLastErr(cerr)
			c.transition(eventAbort)
			return &ConnectError{Path: ep.Path, Err: cerr}
		}
	}

	c.transition(eventEstablished)
	c.logger.Info("connected", "path", ep.Path)
	return nil
}

// Close releases the port. Safe to call on a closed channel.
func (c *Channel) Close() error {
	c.mu.Lock()
	port := c.port
	c.port = nil
	c.rx = nil
	c.mu.Unlock()

	if port == nil {
		return nil
	}
	err := port.Close()
	c.transition(eventDrop)
	if err != nil {
		c.logger.Debug("close failed", "error", err)
	}
	return err
}

// Send encodes cmd and writes it as one line.
func (c *Channel) Send(cmd command.Command) error {
	line, err := command.Encode(cmd)
	if err != nil {
		return err
	}
	c.logger.Info("sending command", "command", cmd.String())
	return c.sendLine(line)
}

// SendRaw writes payload verbatim, appending a newline if absent.
func (c *Channel) SendRaw(payload string) error {
	if !strings.HasSuffix(payload, "\n") {
		payload += "\n"
	}
	c.logger.Info("sending raw line", "payload", strings.TrimRight(payload, "\n"))
	return c.sendLine(payload)
}

func (c *Channel) sendLine(line string) error {
	c.ind.Set(false, true)
	if err := c.WriteLine(line); err != nil {
		c.ind.Set(false, false)
		return err
	}
	c.ind.Set(true, true)
	return nil
}

// WriteLine writes line as-is, bounded by the write timeout. A write
// that overruns the timeout is a connection failure.
func (c *Channel) WriteLine(line string) error {
	c.mu.Lock()
	port := c.port
	timeout := c.cfg.WriteTimeout
	c.mu.Unlock()

	if port == nil {
		return ErrNotConnected
	}

	done := make(chan error, 1)
	go func() {
		if _, err := port.Write([]byte(line)); err != nil {
			done <- &WriteError{Op: "write", Err: err}
			return
		}
		if err := port.Drain(); err != nil {
			done <- &WriteError{Op: "flush", Err: err}
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			c.setLastErr(err)
		}
		return err
	case <-time.After(timeout):
		err := &WriteError{Op: "write", Err: ErrWriteTimeout}
		c.setLastErr(err)
		return err
	}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	return State(c.machine.Current())
}

// Connected reports whether the channel holds a live connection.
func (c *Channel) Connected() bool {
	return c.State() == StateConnected
}

// LastError returns the most recent connection-level error, or nil.
func (c *Channel) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Endpoint returns the last endpoint passed to Open.
func (c *Channel) Endpoint() serialport.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Config returns the channel's timing configuration.
func (c *Channel) Config() Config {
	return c.cfg
}

// degrade records cause and moves a connected channel to degraded.
func (c *Channel) degrade(cause error) {
	c.setLastErr(cause)
	c.transition(eventDegrade)
}

func (c *Channel) setLastErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// dropPort detaches and closes the port without firing a state event.
// Callers fire the appropriate event themselves.
func (c *Channel) dropPort() {
	c.mu.Lock()
	port := c.port
	c.port = nil
	c.rx = nil
	c.mu.Unlock()
	if port != nil {
		port.Close()
	}
}

func (c *Channel) transition(event string) {
	if err := c.machine.Event(context.Background(), event); err != nil {
		c.logger.Debug("state event ignored", "event", event, "error", err)
	}
}

func (c *Channel) enterState(from, to State) {
	switch to {
	case StateConnecting:
		c.ind.Set(true, false)
	case StateConnected:
		c.ind.Set(true, true)
	case StateDegraded, StateDisconnected:
		c.ind.Set(false, false)
	}
	c.logger.Debug("state change", "from", string(from), "to", string(to))
}

// acquireInput claims the inbound stream for one consumer.
func (c *Channel) acquireInput(who inputOwner) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner != ownerNone {
		return ErrInputBusy
	}
	c.owner = who
	return nil
}

func (c *Channel) releaseInput(who inputOwner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.owner == who {
		c.owner = ownerNone
	}
}

// poll performs one bounded read and returns any complete lines. A nil
// batch with nil error means the poll interval passed with no data.
// Only the input owner calls poll.
func (c *Channel) poll() ([]Line, error) {
	c.mu.Lock()
	port := c.port
	interval := c.cfg.PollInterval
	c.mu.Unlock()

	if port == nil {
		return nil, ErrNotConnected
	}
	if err := port.SetReadTimeout(interval); err != nil {
		return nil, &ReadError{Err: err}
	}

	buf := make([]byte, 256)
	n, err := port.Read(buf)
	if err != nil {
		return nil, &ReadError{Err: err}
	}
	if n == 0 {
		return nil, nil
	}
	return c.splitLines(buf[:n]), nil
}

// splitLines appends b to the residual buffer and extracts complete
// lines. Blank lines are skipped; undecodable lines are logged and
// dropped, and collection continues.
func (c *Channel) splitLines(b []byte) []Line {
	data := append(c.rx, b...)
	var lines []Line
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		raw := data[:i]
		data = data[i+1:]

		text := strings.TrimSpace(string(raw))
		if text == "" {
			continue
		}
		if !utf8.ValidString(text) {
			c.logger.Warn("dropping undecodable line", "bytes", len(raw))
			continue
		}
		lines = append(lines, Line{Text: text, At: time.Now()})
	}
	c.rx = append([]byte(nil), data...)
	return lines
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
