package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roverbyte/go-rover/pkg/command"
	"github.com/roverbyte/go-rover/pkg/indicator"
	"github.com/roverbyte/go-rover/pkg/serialport"
)

// fastOptions returns options with millisecond-scale timing so lifecycle
// tests run quickly.
func fastOptions(o *MockOpener) []Option {
	return []Option{
		WithOpener(o.Open),
		WithSettlePeriod(time.Millisecond),
		WithStartupWindow(60 * time.Millisecond),
		WithCollection(200*time.Millisecond, 60*time.Millisecond),
		WithPollInterval(5 * time.Millisecond),
		WithPreReadDelay(time.Millisecond),
		WithTimeouts(50*time.Millisecond, 50*time.Millisecond),
		WithBackoff(30 * time.Millisecond),
		WithLinePulse(time.Millisecond),
	}
}

func testEndpoint() serialport.Endpoint {
	return serialport.Endpoint{
		Path:     "/dev/ttyUSB0",
		Kind:     serialport.KindUSB,
		Priority: serialport.PriorityListed,
	}
}

func openTestChannel(t *testing.T, opts ...Option) (*Channel, *MockOpener) {
	t.Helper()
	opener := NewMockOpener()
	ch := New(append(fastOptions(opener), opts...)...)
	if err := ch.Open(context.Background(), testEndpoint()); err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { ch.Close() })
	return ch, opener
}

func TestOpenHandshake(t *testing.T) {
	start := time.Now()
	ch, opener := openTestChannel(t)
	elapsed := time.Since(start)

	if !ch.Connected() {
		t.Fatalf("State() = %q, want %q", ch.State(), StateConnected)
	}
	if got := ch.Endpoint().Path; got != "/dev/ttyUSB0" {
		t.Errorf("Endpoint().Path = %q, want /dev/ttyUSB0", got)
	}

	port := opener.Port(0)
	if port == nil {
		t.Fatal("no port opened")
	}
	lines := port.WrittenLines()
	if len(lines) != 1 || lines[0] != "STATUS,0,none" {
		t.Errorf("written lines = %v, want [STATUS,0,none]", lines)
	}
	in, out := port.ResetCalls()
	if in == 0 || out == 0 {
		t.Errorf("buffers not discarded: in=%d out=%d", in, out)
	}

	// A silent controller still connects after the startup window.
	if elapsed < 60*time.Millisecond {
		t.Errorf("Open returned after %v, before the startup window elapsed", elapsed)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Open took %v, expected well under 500ms", elapsed)
	}
}

func TestOpenFailsWhenOpenerFails(t *testing.T) {
	opener := NewMockOpener()
	opener.FailNext(1, errors.New("mock opener: permission denied"))
	ch := New(fastOptions(opener)...)

	err := ch.Open(context.Background(), testEndpoint())
	if err == nil {
		t.Fatal("Open() succeeded with a failing opener")
	}
	var connErr *ConnectError
	if !errors.As(err, &connErr) {
		t.Fatalf("Open() = %T, want *ConnectError", err)
	}
	if connErr.Path != "/dev/ttyUSB0" {
		t.Errorf("ConnectError.Path = %q, want /dev/ttyUSB0", connErr.Path)
	}
	if got := ch.State(); got != StateDisconnected {
		t.Errorf("State() after failed open = %q, want %q", got, StateDisconnected)
	}
}

func TestOpenRejectsSecondOpen(t *testing.T) {
	ch, _ := openTestChannel(t)

	err := ch.Open(context.Background(), testEndpoint())
	if !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second Open() = %v, want ErrAlreadyOpen", err)
	}
}

func TestOpenCanceledDuringSettle(t *testing.T) {
	opener := NewMockOpener()
	ch := New(append(fastOptions(opener), WithSettlePeriod(time.Second))...)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := ch.Open(ctx, testEndpoint())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Open() = %v, want context.Canceled in the chain", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("canceled Open took %v, want prompt return", elapsed)
	}
	if ch.State() != StateDisconnected {
		t.Errorf("State() = %q, want %q", ch.State(), StateDisconnected)
	}
	if port := opener.Port(0); port != nil && !port.Closed() {
		t.Error("port left open after canceled handshake")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ch, opener := openTestChannel(t)

	if err := ch.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if got := ch.State(); got != StateDisconnected {
		t.Errorf("State() after close = %q, want %q", got, StateDisconnected)
	}
	if !opener.Port(0).Closed() {
		t.Error("underlying port not closed")
	}
	if err := ch.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
}

func TestReopenAfterClose(t *testing.T) {
	ch, opener := openTestChannel(t)

	if err := ch.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := ch.Open(context.Background(), testEndpoint()); err != nil {
		t.Fatalf("reopen = %v", err)
	}
	if !ch.Connected() {
		t.Error("channel not connected after reopen")
	}
	if got := opener.Count(); got != 2 {
		t.Errorf("opener.Count() = %d, want 2", got)
	}
}

func TestSendWritesEncodedLine(t *testing.T) {
	ch, opener := openTestChannel(t)

	if err := ch.Send(command.MoveForward(2.5)); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	lines := opener.Port(0).WrittenLines()
	want := []string{"STATUS,0,none", "FORWARD,2.5,meter"}
	if len(lines) != len(want) {
		t.Fatalf("written lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSendRawPassesPayloadThrough(t *testing.T) {
	ch, opener := openTestChannel(t)

	if err := ch.SendRaw("STATUS,0,none"); err != nil {
		t.Fatalf("SendRaw() = %v", err)
	}
	if err := ch.SendRaw("PING\n"); err != nil {
		t.Fatalf("SendRaw() with newline = %v", err)
	}

	got := opener.Port(0).Written()
	want := "STATUS,0,none\nSTATUS,0,none\nPING\n"
	if got != want {
		t.Errorf("written bytes = %q, want %q", got, want)
	}
}

func TestSendRejectsInvalidCommandBeforeWrite(t *testing.T) {
	ch, opener := openTestChannel(t)

	err := ch.Send(command.Command{Name: "FLY", Value: 1, Unit: command.Meter})
	if !errors.Is(err, command.ErrUnknownName) {
		t.Fatalf("Send() = %v, want ErrUnknownName", err)
	}
	if lines := opener.Port(0).WrittenLines(); len(lines) != 1 {
		t.Errorf("invalid command reached the wire: %v", lines)
	}
}

func TestSendWhenDisconnected(t *testing.T) {
	ch := New(fastOptions(NewMockOpener())...)

	err := ch.Send(command.Halt())
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() on closed channel = %v, want ErrNotConnected", err)
	}
}

func TestWriteTimeoutIsConnectionFailure(t *testing.T) {
	ch, opener := openTestChannel(t)

	opener.Port(0).DelayWrites(200 * time.Millisecond)
	err := ch.Send(command.Halt())
	if err == nil {
		t.Fatal("Send() succeeded on a stalled port")
	}
	if !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Send() = %v, want ErrWriteTimeout in the chain", err)
	}
	var wErr *WriteError
	if !errors.As(err, &wErr) {
		t.Errorf("Send() = %T, want *WriteError", err)
	}
}

func TestFlushFailureIsWriteError(t *testing.T) {
	ch, opener := openTestChannel(t)

	opener.Port(0).FailDrain(errors.New("input/output error"))
	err := ch.Send(command.Halt())
	var wErr *WriteError
	if !errors.As(err, &wErr) {
		t.Fatalf("Send() = %v, want *WriteError", err)
	}
	if wErr.Op != "flush" {
		t.Errorf("WriteError.Op = %q, want flush", wErr.Op)
	}
}

func TestIndicatorFollowsLifecycle(t *testing.T) {
	rec := indicator.NewRecorder()
	opener := NewMockOpener()
	ch := New(append(fastOptions(opener), WithIndicator(rec))...)

	if err := ch.Open(context.Background(), testEndpoint()); err != nil {
		t.Fatalf("Open() = %v", err)
	}
	ch.Close()

	signals := rec.Signals()
	want := []indicator.Signal{indicator.Connecting, indicator.Idle, indicator.Off}
	if len(signals) != len(want) {
		t.Fatalf("signals = %v, want %v", signals, want)
	}
	for i := range want {
		if signals[i] != want[i] {
			t.Errorf("signal %d = %+v, want %+v", i, signals[i], want[i])
		}
	}
}

func TestLastErrorClearedOnOpen(t *testing.T) {
	opener := NewMockOpener()
	opener.FailNext(1, errors.New("mock opener: busy"))
	ch := New(fastOptions(opener)...)

	if err := ch.Open(context.Background(), testEndpoint()); err == nil {
		t.Fatal("first Open() should fail")
	}
	if ch.LastError() == nil {
		t.Error("LastError() = nil after failed open")
	}

	if err := ch.Open(context.Background(), testEndpoint()); err != nil {
		t.Fatalf("second Open() = %v", err)
	}
	defer ch.Close()
	if err := ch.LastError(); err != nil {
		t.Errorf("LastError() = %v after successful open, want nil", err)
	}
}
