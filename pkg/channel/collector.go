package channel

import (
	"context"
	"errors"
	"time"

	"github.com/roverbyte/go-rover/pkg/indicator"
)

// Collect gathers the controller's current response burst. It polls the
// connection and appends non-empty lines as they arrive. Once a line has
// arrived, collection stops when none followed for the quiet duration;
// the absolute window only bounds a session that never produced a line.
// A silent controller yields an empty slice after the full window, which
// is not an error.
//
// Zero window or quiet fall back to the configured defaults. Collect
// fails with ErrInputBusy while a Reader owns the inbound stream.
func (c *Channel) Collect(ctx context.Context, window, quiet time.Duration) ([]Line, error) {
	if err := c.acquireInput(ownerCollector); err != nil {
		return nil, err
	}
	defer c.releaseInput(ownerCollector)
	return c.collect(ctx, window, quiet)
}

// collect is the unguarded poll-and-deadline loop shared by Collect and
// the open handshake.
func (c *Channel) collect(ctx context.Context, window, quiet time.Duration) ([]Line, error) {
	if window <= 0 {
		window = c.cfg.Window
	}
	if quiet <= 0 {
		quiet = c.cfg.Quiet
	}

	var lines []Line
	start := time.Now()
	lastActivity := start

	for {
		if err := ctx.Err(); err != nil {
			return lines, err
		}
		now := time.Now()
		if len(lines) == 0 {
			if now.Sub(start) >= window {
				return lines, nil
			}
		} else if now.Sub(lastActivity) >= quiet {
			return lines, nil
		}

		batch, err := c.poll()
		if err != nil {
			if errors.Is(err, ErrNotConnected) || IsDisconnection(err) {
				return lines, err
			}
			c.logger.Debug("poll failed", "error", err)
			time.Sleep(c.cfg.PollInterval)
			continue
		}
		if len(batch) > 0 {
			lines = append(lines, batch...)
			lastActivity = time.Now()
			indicator.Pulse(c.ind, c.cfg.LinePulse)
		}
	}
}
