package pilot

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roverbyte/go-rover/pkg/channel"
)

// Record is the outcome of one command sent through the channel. It is
// what the dashboard's history endpoint serves.
type Record struct {
	ID      string         `json:"id"`
	Command string         `json:"command"`         // canonical form, e.g. "FORWARD,2,meter"
	Wire    string         `json:"wire"`            // exact line put on the wire, without the newline
	SentAt  time.Time      `json:"sent_at"`
	Failed  bool           `json:"failed"`
	Error   string         `json:"error,omitempty"` // transport error text when Failed
	Reply   []channel.Line `json:"reply,omitempty"`
}

// newRecord stamps a fresh record for a wire line about to be sent.
func newRecord(canonical, wire string) Record {
	return Record{
		ID:      uuid.NewString(),
		Command: canonical,
		Wire:    wire,
		SentAt:  time.Now(),
	}
}

// History is a bounded, concurrency-safe list of command records,
// oldest first. When full, adding drops the oldest record.
type History struct {
	mu      sync.Mutex
	records []Record
	limit   int
}

// NewHistory creates a history bounded to limit records.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit}
}

// Add appends a record, evicting the oldest when over the limit.
func (h *History) Add(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	if len(h.records) > h.limit {
		h.records = h.records[len(h.records)-h.limit:]
	}
}

// Records returns a copy of the history, oldest first.
func (h *History) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// Last returns the most recent record, or nil when empty.
func (h *History) Last() *Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return nil
	}
	r := h.records[len(h.records)-1]
	return &r
}
