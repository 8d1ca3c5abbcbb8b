package channel

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"time"
)

// errDeviceGone mimics the OS error for a yanked adapter.
var errDeviceGone = errors.New("mock port: no such device")

// MockPort is an in-memory Port for tests. Reads return bytes queued
// with Feed, honoring the read-timeout contract of the real port (a
// timeout returns 0 bytes and no error). Writes are recorded, and
// write, flush, and read failures can be injected.
type MockPort struct {
	mu          sync.Mutex
	pending     []byte
	written     bytes.Buffer
	readTimeout time.Duration
	writeErr    error
	writeDelay  time.Duration
	drainErr    error
	readErr     error
	closed      bool
	resetIn     int
	resetOut    int
}

// NewMockPort creates an open mock port.
func NewMockPort() *MockPort {
	return &MockPort{readTimeout: 50 * time.Millisecond}
}

// Feed queues raw bytes for subsequent reads.
func (m *MockPort) Feed(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, s...)
}

// FeedLine queues s with a trailing newline.
func (m *MockPort) FeedLine(s string) {
	m.Feed(s + "\n")
}

// FailWrites makes every Write return err. Pass nil to heal.
func (m *MockPort) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// DelayWrites makes every Write stall for d before completing.
func (m *MockPort) DelayWrites(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeDelay = d
}

// FailDrain makes every Drain return err. Pass nil to heal.
func (m *MockPort) FailDrain(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drainErr = err
}

// FailReads makes every Read return err. Pass nil to heal.
func (m *MockPort) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *MockPort) Read(p []byte) (int, error) {
	deadline := time.Now().Add(m.timeout())
	for {
		m.mu.Lock()
		if m.readErr != nil {
			err := m.readErr
			m.mu.Unlock()
			return 0, err
		}
		if m.closed {
			m.mu.Unlock()
			return 0, errDeviceGone
		}
		if len(m.pending) > 0 {
			n := copy(p, m.pending)
			m.pending = m.pending[n:]
			m.mu.Unlock()
			return n, nil
		}
		m.mu.Unlock()

		if time.Now().After(deadline) {
			return 0, nil
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	delay := m.writeDelay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errDeviceGone
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.written.Write(p)
	return len(p), nil
}

func (m *MockPort) Drain() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drainErr
}

func (m *MockPort) SetReadTimeout(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readTimeout = d
	return nil
}

func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.resetIn++
	return nil
}

func (m *MockPort) ResetOutputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetOut++
	return nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockPort) timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readTimeout
}

// Written returns everything written so far.
func (m *MockPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

// WrittenLines returns the complete lines written so far.
func (m *MockPort) WrittenLines() []string {
	s := m.Written()
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// Closed reports whether Close was called.
func (m *MockPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ResetCalls returns how many times each buffer reset was invoked.
func (m *MockPort) ResetCalls() (in, out int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetIn, m.resetOut
}

var _ Port = (*MockPort)(nil)

// MockOpener hands out MockPorts and records every open attempt.
type MockOpener struct {
	mu       sync.Mutex
	ports    []*MockPort
	paths    []string
	failures int
	failErr  error
}

// NewMockOpener creates an opener that succeeds on every call.
func NewMockOpener() *MockOpener {
	return &MockOpener{}
}

// FailNext makes the next n opens return err.
func (o *MockOpener) FailNext(n int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = n
	o.failErr = err
}

// Open satisfies OpenPortFunc.
func (o *MockOpener) Open(path string, baud int) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths = append(o.paths, path)
	if o.failures > 0 {
		o.failures--
		return nil, o.failErr
	}
	p := NewMockPort()
	o.ports = append(o.ports, p)
	return p, nil
}

// Count returns how many opens were attempted.
func (o *MockOpener) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.paths)
}

// Paths returns the device paths passed to Open, in order.
func (o *MockOpener) Paths() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.paths))
	copy(out, o.paths)
	return out
}

// Port returns the i-th successfully opened port, or nil.
func (o *MockOpener) Port(i int) *MockPort {
	o.mu.Lock()
	defer o.mu.Unlock()
	if i < 0 || i >= len(o.ports) {
		return nil
	}
	return o.ports[i]
}
