package channel

import (
	"context"
	"errors"
	"testing"
	"time"
)

func recvLine(t *testing.T, lines <-chan Line, within time.Duration) Line {
	t.Helper()
	select {
	case ln := <-lines:
		return ln
	case <-time.After(within):
		t.Fatal("timed out waiting for a line")
		return Line{}
	}
}

func TestReaderEmitsTimestampedLines(t *testing.T) {
	ch, opener := openTestChannel(t)
	port := opener.Port(0)

	lines := make(chan Line, 16)
	r := NewReader(ch, func(ln Line) { lines <- ln })
	if err := r.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	defer r.Stop()

	before := time.Now()
	port.FeedLine("TELEMETRY,12.4,volt")
	port.FeedLine("HEADING,90,degree")

	first := recvLine(t, lines, time.Second)
	second := recvLine(t, lines, time.Second)

	if first.Text != "TELEMETRY,12.4,volt" {
		t.Errorf("first line = %q", first.Text)
	}
	if second.Text != "HEADING,90,degree" {
		t.Errorf("second line = %q", second.Text)
	}
	if first.At.Before(before) {
		t.Error("line timestamp predates feeding")
	}
	if second.At.Before(first.At) {
		t.Error("timestamps out of order")
	}
}

func TestReaderOwnsInputStream(t *testing.T) {
	ch, _ := openTestChannel(t)

	r := NewReader(ch, func(Line) {})
	if err := r.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	defer r.Stop()

	if _, err := ch.Collect(context.Background(), 50*time.Millisecond, 20*time.Millisecond); !errors.Is(err, ErrInputBusy) {
		t.Errorf("Collect() with reader active = %v, want ErrInputBusy", err)
	}

	other := NewReader(ch, func(Line) {})
	if err := other.Start(); !errors.Is(err, ErrInputBusy) {
		t.Errorf("second reader Start() = %v, want ErrInputBusy", err)
	}
}

func TestReaderStopReleasesInput(t *testing.T) {
	ch, _ := openTestChannel(t)

	r := NewReader(ch, func(Line) {})
	if err := r.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	r.Stop()

	if _, err := ch.Collect(context.Background(), 30*time.Millisecond, 10*time.Millisecond); err != nil {
		t.Errorf("Collect() after Stop = %v, want nil", err)
	}

	// Stop on a stopped reader is a no-op, and the reader can restart.
	r.Stop()
	if err := r.Start(); err != nil {
		t.Fatalf("restart = %v", err)
	}
	r.Stop()
}

func TestReaderSurvivesReconnect(t *testing.T) {
	ch, opener := openTestChannel(t)

	lines := make(chan Line, 16)
	r := NewReader(ch, func(ln Line) { lines <- ln })
	if err := r.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	defer r.Stop()

	opener.Port(0).FeedLine("BEFORE")
	if got := recvLine(t, lines, time.Second); got.Text != "BEFORE" {
		t.Fatalf("line = %q, want BEFORE", got.Text)
	}

	ch.Close()
	if err := ch.Open(context.Background(), testEndpoint()); err != nil {
		t.Fatalf("reopen = %v", err)
	}

	opener.Port(1).FeedLine("AFTER")
	if got := recvLine(t, lines, time.Second); got.Text != "AFTER" {
		t.Fatalf("line after reconnect = %q, want AFTER", got.Text)
	}
}
