package channel

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roverbyte/go-rover/internal/log"
	"github.com/roverbyte/go-rover/pkg/indicator"
)

// LineSink receives lines from a Reader as they arrive.
type LineSink func(Line)

// Reader drains unsolicited controller output in the background so an
// operator can watch the device while the main loop only writes. It
// owns the channel's inbound stream for its whole lifetime; Collect
// calls fail with ErrInputBusy until Stop.
//
// The reader survives reconnect cycles: while the channel is between
// connections it idles and resumes when the port comes back.
type Reader struct {
	ch     *Channel
	sink   LineSink
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewReader binds a reader to ch. Lines go to sink in arrival order.
func NewReader(ch *Channel, sink LineSink) *Reader {
	return &Reader{
		ch:     ch,
		sink:   sink,
		logger: log.Component("reader"),
	}
}

// Start claims the inbound stream and launches the drain loop.
func (r *Reader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return ErrInputBusy
	}
	if err := r.ch.acquireInput(ownerReader); err != nil {
		return err
	}
	r.started = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.run(r.stop, r.done)
	return nil
}

// Stop signals the loop and waits for it to exit. Safe to call on a
// stopped reader. The reader can be started again afterwards.
func (r *Reader) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	stop, done := r.stop, r.done
	r.mu.Unlock()

	close(stop)
	<-done
}

func (r *Reader) run(stop, done chan struct{}) {
	defer close(done)
	defer r.ch.releaseInput(ownerReader)

	// lastWarn deduplicates the failure log across an outage so a
	// yanked cable does not warn once per poll interval.
	var lastWarn string

	for {
		select {
		case <-stop:
			return
		default:
		}

		batch, err := r.ch.poll()
		if err != nil {
			if !errors.Is(err, ErrNotConnected) && err.Error() != lastWarn {
				r.logger.Warn("monitor read failed", "error", err)
				lastWarn = err.Error()
			}
			if !r.pause(stop) {
				return
			}
			continue
		}
		lastWarn = ""
		if len(batch) == 0 {
			continue
		}

		for _, ln := range batch {
			r.sink(ln)
		}
		indicator.Pulse(r.ch.ind, r.ch.cfg.LinePulse)
	}
}

// pause waits one poll interval, returning false if stop fired.
func (r *Reader) pause(stop chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-time.After(r.ch.cfg.PollInterval):
		return true
	}
}
