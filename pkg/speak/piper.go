package speak

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const sinkPiper = "piper"

// runCommand executes a helper binary with optional stdin, bounded by ctx.
// Swapped in tests.
var runCommand = func(ctx context.Context, stdin, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Piper speaks through the piper TTS binary. Text goes to piper on
// stdin, piper writes a WAV, and the first working audio player plays
// it. The winning player is remembered for later calls.
type Piper struct {
	cfg    *Config
	logger *slog.Logger

	mu     sync.Mutex
	player string
}

// NewPiper creates a piper-backed speech sink.
// A voice model path is required. When a volume is configured the ALSA
// mixer is set once here; mixer failures are logged and ignored.
func NewPiper(opts ...Option) (*Piper, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Piper{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "speak.piper"),
	}
	p.setMixerVolume()
	return p, nil
}

// setMixerVolume nudges the ALSA mixer to the configured level.
// Headless boxes and CI have no mixer, so every failure is soft.
func (p *Piper) setMixerVolume() {
	if p.cfg.Volume <= 0 {
		return
	}
	level := fmt.Sprintf("%d%%", p.cfg.Volume)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, control := range []string{"PCM", "Master"} {
		if err := runCommand(ctx, "", "amixer", "set", control, level); err != nil {
			p.logger.Debug("mixer volume not set", "control", control, "error", err)
		}
	}
}

// Say synthesizes the text to a WAV and plays it.
func (p *Piper) Say(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	clean := cleanText(text)

	if err := p.synthesize(ctx, clean); err != nil {
		return WrapError(sinkPiper, err)
	}
	if err := p.play(ctx); err != nil {
		return WrapError(sinkPiper, err)
	}
	return nil
}

// synthesize runs piper with the text on stdin and verifies the WAV
// landed where playback expects it.
func (p *Piper) synthesize(ctx context.Context, text string) error {
	os.Remove(p.cfg.Output)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.SynthesisTimeout)
	defer cancel()

	start := time.Now()
	err := runCommand(ctx, text, p.cfg.Binary,
		"--model", p.cfg.Model,
		"--output_file", p.cfg.Output,
	)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if _, err := os.Stat(p.cfg.Output); err != nil {
		return fmt.Errorf("synthesize: no output file: %w", err)
	}

	p.logger.Debug("synthesized",
		"chars", len(text),
		"took", time.Since(start),
	)
	return nil
}

// play runs the remembered player, or probes the configured players in
// order until one exits cleanly.
func (p *Piper) play(ctx context.Context) error {
	p.mu.Lock()
	remembered := p.player
	p.mu.Unlock()

	if remembered != "" {
		if err := p.runPlayer(ctx, remembered); err == nil {
			return nil
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
		// The remembered player stopped working, probe again.
		p.logger.Warn("audio player stopped working, probing again", "player", remembered)
	}

	for _, player := range p.cfg.Players {
		if player == remembered {
			continue
		}
		err := p.runPlayer(ctx, player)
		if err == nil {
			p.mu.Lock()
			p.player = player
			p.mu.Unlock()
			p.logger.Debug("audio player selected", "player", player)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Debug("audio player failed, trying next", "player", player, "error", err)
	}
	return ErrNoPlayer
}

func (p *Piper) runPlayer(ctx context.Context, player string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PlaybackTimeout)
	defer cancel()
	return runCommand(ctx, "", player, p.cfg.Output)
}

// Health verifies the piper binary and voice model are reachable.
func (p *Piper) Health(ctx context.Context) error {
	if _, err := exec.LookPath(p.cfg.Binary); err != nil {
		return WrapError(sinkPiper, fmt.Errorf("%w: %s", ErrNoBinary, p.cfg.Binary))
	}
	if _, err := os.Stat(p.cfg.Model); err != nil {
		return WrapError(sinkPiper, fmt.Errorf("%w: %s", ErrNoModel, p.cfg.Model))
	}
	return nil
}

// Close removes the temporary WAV.
func (p *Piper) Close() error {
	os.Remove(p.cfg.Output)
	return nil
}

// cleanText normalizes text for synthesis: quotes stripped, newlines
// become sentence breaks, runs of spaces collapse.
func cleanText(text string) string {
	clean := strings.NewReplacer(`"`, "", "'", "", "\n", ". ").Replace(text)
	for strings.Contains(clean, "  ") {
		clean = strings.ReplaceAll(clean, "  ", " ")
	}
	return strings.TrimSpace(clean)
}

// Verify Piper implements Sink at compile time.
var _ Sink = (*Piper)(nil)
