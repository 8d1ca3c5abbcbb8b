package speak

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain implements Sink by trying multiple sinks in order.
// The first successful sink wins; if all fail, returns an aggregate error.
type Chain struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewChain creates a sink chain that tries sinks in order.
// At least one sink is required.
func NewChain(sinks ...Sink) (*Chain, error) {
	if len(sinks) == 0 {
		return nil, ErrNoSinks
	}

	return &Chain{
		sinks:  sinks,
		logger: slog.Default().With("component", "speak.chain"),
	}, nil
}

// NewChainWithLogger creates a sink chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, sinks ...Sink) (*Chain, error) {
	chain, err := NewChain(sinks...)
	if err != nil {
		return nil, err
	}
	chain.logger = logger.With("component", "speak.chain")
	return chain, nil
}

// Say tries each sink until one speaks the text.
func (c *Chain) Say(ctx context.Context, text string) error {
	var errs []error

	for i, s := range c.sinks {
		err := s.Say(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback sink succeeded",
					"sink_index", i,
					"chars", len(text),
				)
			}
			return nil
		}

		errs = append(errs, err)
		c.logger.Warn("sink failed, trying next",
			"sink_index", i,
			"error", err,
		)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return &ChainError{Errors: errs}
}

// Health checks all sinks and returns error if all are unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	var healthy int
	var lastErr error

	for _, s := range c.sinks {
		if err := s.Health(ctx); err != nil {
			lastErr = err
		} else {
			healthy++
		}
	}

	if healthy == 0 {
		return fmt.Errorf("all %d sinks unhealthy: %w", len(c.sinks), lastErr)
	}
	return nil
}

// Close closes all sinks.
func (c *Chain) Close() error {
	var lastErr error
	for _, s := range c.sinks {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Sinks returns the sinks in the chain.
func (c *Chain) Sinks() []Sink {
	return c.sinks
}

// ChainError aggregates errors from all sinks in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "speak chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("speak chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("speak chain: all %d sinks failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// Verify Chain implements Sink at compile time.
var _ Sink = (*Chain)(nil)
