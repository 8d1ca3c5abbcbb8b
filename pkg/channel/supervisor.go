package channel

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roverbyte/go-rover/internal/log"
	"github.com/roverbyte/go-rover/pkg/command"
	"github.com/roverbyte/go-rover/pkg/serialport"
)

// Supervisor wraps a Channel with the write-failure recovery policy:
// close the handle, wait one backoff interval, reopen the last-used
// endpoint. The command whose write failed is reported failed to the
// caller and is not resent; retry policy belongs to the caller. Every
// failure gets exactly one recovery cycle, with no further rate
// limiting between cycles.
type Supervisor struct {
	ch     *Channel
	logger *slog.Logger

	// OnReconnect, when set, fires after each recovery attempt with the
	// endpoint and the reopen outcome (nil on success).
	OnReconnect func(ep serialport.Endpoint, err error)

	mu     sync.Mutex
	cycles uint64
}

// NewSupervisor wraps ch.
func NewSupervisor(ch *Channel) *Supervisor {
	return &Supervisor{
		ch:     ch,
		logger: log.Component("supervisor"),
	}
}

// Channel returns the supervised channel.
func (s *Supervisor) Channel() *Channel {
	return s.ch
}

// Send writes cmd through the channel. On a write or flush failure it
// runs one recovery cycle and still returns the original error.
func (s *Supervisor) Send(ctx context.Context, cmd command.Command) error {
	return s.after(ctx, s.ch.Send(cmd))
}

// SendRaw writes payload verbatim with the same recovery policy.
func (s *Supervisor) SendRaw(ctx context.Context, payload string) error {
	return s.after(ctx, s.ch.SendRaw(payload))
}

// Exchange sends cmd, waits the pre-read delay, then collects the
// response burst with the configured window and quiet bounds.
func (s *Supervisor) Exchange(ctx context.Context, cmd command.Command) ([]Line, error) {
	if err := s.Send(ctx, cmd); err != nil {
		return nil, err
	}
	return s.collectReply(ctx)
}

// ExchangeRaw sends payload verbatim and collects the response burst.
func (s *Supervisor) ExchangeRaw(ctx context.Context, payload string) ([]Line, error) {
	if err := s.SendRaw(ctx, payload); err != nil {
		return nil, err
	}
	return s.collectReply(ctx)
}

func (s *Supervisor) collectReply(ctx context.Context) ([]Line, error) {
	if err := sleepCtx(ctx, s.ch.cfg.PreReadDelay); err != nil {
		return nil, err
	}
	return s.ch.Collect(ctx, s.ch.cfg.Window, s.ch.cfg.Quiet)
}

// Cycles returns how many recovery cycles have run.
func (s *Supervisor) Cycles() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

// after inspects a send result and triggers recovery on transport
// failures. Encoding errors and writes on a closed channel pass through
// untouched since no live connection was harmed.
func (s *Supervisor) after(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var wErr *WriteError
	if errors.As(err, &wErr) {
		s.recover(ctx, err)
	}
	return err
}

// recover runs one close, backoff, reopen cycle against the endpoint
// the channel last used.
func (s *Supervisor) recover(ctx context.Context, cause error) {
	ep := s.ch.Endpoint()
	s.logger.Warn("connection degraded", "path", ep.Path, "error", cause)

	s.ch.degrade(cause)
	if err := s.ch.Close(); err != nil {
		s.logger.Debug("close during recovery failed", "error", err)
	}

	if err := sleepCtx(ctx, s.ch.cfg.Backoff); err != nil {
		s.logger.Debug("recovery abandoned", "error", err)
		return
	}

	s.mu.Lock()
	s.cycles++
	n := s.cycles
	s.mu.Unlock()

	start := time.Now()
	err := s.ch.Open(ctx, ep)
	if err != nil {
		s.logger.Error("reconnect failed", "path", ep.Path, "cycle", n, "error", err)
	} else {
		s.logger.Info("reconnected", "path", ep.Path, "cycle", n, "took", time.Since(start).Round(time.Millisecond))
	}

	if s.OnReconnect != nil {
		s.OnReconnect(ep, err)
	}
}
