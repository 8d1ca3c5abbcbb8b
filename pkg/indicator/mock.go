package indicator

import "sync"

// Recorder is a mock indicator for tests. It records every Set call in
// order and is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	signals []Signal
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Set records the signal.
func (r *Recorder) Set(busy, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, Signal{Busy: busy, Ready: ready})
}

// Signals returns a copy of all recorded signals in call order.
func (r *Recorder) Signals() []Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Signal, len(r.signals))
	copy(out, r.signals)
	return out
}

// Last returns the most recent signal, or Off if none was recorded.
func (r *Recorder) Last() Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.signals) == 0 {
		return Off
	}
	return r.signals[len(r.signals)-1]
}

// Count returns the number of Set calls.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.signals)
}

// Reset clears recorded signals.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = nil
}

var _ Indicator = (*Recorder)(nil)
