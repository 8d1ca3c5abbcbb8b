package speak

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// execCall records one invocation routed through the runner stub.
type execCall struct {
	name  string
	args  []string
	stdin string
}

// execRecorder replaces runCommand for a test. Commands listed in fail
// return an error; a call to the piper binary writes the WAV so the
// post-synthesis stat succeeds.
type execRecorder struct {
	mu     sync.Mutex
	calls  []execCall
	fail   map[string]error
	output string
}

func newExecRecorder(t *testing.T, output string) *execRecorder {
	t.Helper()
	r := &execRecorder{fail: make(map[string]error), output: output}
	orig := runCommand
	runCommand = r.run
	t.Cleanup(func() { runCommand = orig })
	return r
}

func (r *execRecorder) run(ctx context.Context, stdin, name string, args ...string) error {
	r.mu.Lock()
	r.calls = append(r.calls, execCall{name: name, args: args, stdin: stdin})
	err := r.fail[name]
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if name == "piper" && r.output != "" {
		return os.WriteFile(r.output, []byte("RIFF"), 0o644)
	}
	return nil
}

func (r *execRecorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func (r *execRecorder) callsTo(name string) []execCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []execCall
	for _, c := range r.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func newTestPiper(t *testing.T, rec *execRecorder, opts ...Option) *Piper {
	t.Helper()
	base := []Option{
		WithModel("voice.onnx"),
		WithOutput(rec.output),
		WithVolume(0),
		WithTimeouts(time.Second, time.Second),
	}
	p, err := NewPiper(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewPiper() error = %v", err)
	}
	return p
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "robot stopping", want: "robot stopping"},
		{name: "strips quotes", in: `say "hello" to 'them'`, want: "say hello to them"},
		{name: "newlines become sentence breaks", in: "line one\nline two", want: "line one. line two"},
		{name: "collapses spaces", in: "too    many   spaces", want: "too many spaces"},
		{name: "trims", in: "  padded  ", want: "padded"},
		{name: "whitespace only", in: "   \n  ", want: "."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanText(tt.in); got != tt.want {
				t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPiperSay(t *testing.T) {
	out := filepath.Join(t.TempDir(), "voice.wav")
	rec := newExecRecorder(t, out)
	p := newTestPiper(t, rec)

	if err := p.Say(context.Background(), `robot moving "forward" 2 meters`); err != nil {
		t.Fatalf("Say() error = %v", err)
	}

	piperCalls := rec.callsTo("piper")
	if len(piperCalls) != 1 {
		t.Fatalf("piper invoked %d times, want 1", len(piperCalls))
	}
	if piperCalls[0].stdin != "robot moving forward 2 meters" {
		t.Errorf("piper stdin = %q, want cleaned text", piperCalls[0].stdin)
	}
	wantArgs := []string{"--model", "voice.onnx", "--output_file", out}
	if got := strings.Join(piperCalls[0].args, " "); got != strings.Join(wantArgs, " ") {
		t.Errorf("piper args = %v, want %v", piperCalls[0].args, wantArgs)
	}

	players := rec.callsTo("aplay")
	if len(players) != 1 {
		t.Fatalf("aplay invoked %d times, want 1", len(players))
	}
	if len(players[0].args) != 1 || players[0].args[0] != out {
		t.Errorf("aplay args = %v, want [%s]", players[0].args, out)
	}
}

func TestPiperEmptyText(t *testing.T) {
	out := filepath.Join(t.TempDir(), "voice.wav")
	rec := newExecRecorder(t, out)
	p := newTestPiper(t, rec)

	if err := p.Say(context.Background(), "   "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Say(blank) error = %v, want ErrEmptyText", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("expected no commands for blank text, got %v", rec.calls)
	}
}

func TestPiperSynthesisFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "voice.wav")
	rec := newExecRecorder(t, out)
	rec.fail["piper"] = errors.New("model load failed")
	p := newTestPiper(t, rec)

	err := p.Say(context.Background(), "hello")
	if err == nil {
		t.Fatal("Say() expected error")
	}
	var sinkErr *SinkError
	if !errors.As(err, &sinkErr) || sinkErr.Sink != "piper" {
		t.Errorf("Say() error = %v, want SinkError from piper", err)
	}
	if rec.count("aplay") != 0 {
		t.Error("player should not run after failed synthesis")
	}
}

func TestPiperProbesPlayersInOrder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "voice.wav")
	rec := newExecRecorder(t, out)
	rec.fail["aplay"] = errors.New("no sound card")
	p := newTestPiper(t, rec)

	if err := p.Say(context.Background(), "hello"); err != nil {
		t.Fatalf("Say() error = %v", err)
	}
	if rec.count("aplay") != 1 {
		t.Errorf("aplay invoked %d times, want 1", rec.count("aplay"))
	}
	if rec.count("paplay") != 1 {
		t.Errorf("paplay invoked %d times, want 1", rec.count("paplay"))
	}
	if rec.count("mpg123") != 0 {
		t.Error("probe should stop at the first working player")
	}
}

func TestPiperRemembersWorkingPlayer(t *testing.T) {
	out := filepath.Join(t.TempDir(), "voice.wav")
	rec := newExecRecorder(t, out)
	rec.fail["aplay"] = errors.New("no sound card")
	p := newTestPiper(t, rec)

	if err := p.Say(context.Background(), "first"); err != nil {
		t.Fatalf("Say() error = %v", err)
	}
	if err := p.Say(context.Background(), "second"); err != nil {
		t.Fatalf("Say() error = %v", err)
	}

	// aplay was probed once; the second call goes straight to paplay.
	if rec.count("aplay") != 1 {
		t.Errorf("aplay invoked %d times, want 1", rec.count("aplay"))
	}
	if rec.count("paplay") != 2 {
		t.Errorf("paplay invoked %d times, want 2", rec.count("paplay"))
	}
}

func TestPiperAllPlayersFail(t *testing.T) {
	out := filepath.Join(t.TempDir(), "voice.wav")
	rec := newExecRecorder(t, out)
	for _, player := range []string{"aplay", "paplay", "mpg123", "mplayer", "omxplayer"} {
		rec.fail[player] = errors.New("unavailable")
	}
	p := newTestPiper(t, rec)

	if err := p.Say(context.Background(), "hello"); !errors.Is(err, ErrNoPlayer) {
		t.Errorf("Say() error = %v, want ErrNoPlayer", err)
	}
}

func TestPiperSetsMixerVolume(t *testing.T) {
	out := filepath.Join(t.TempDir(), "voice.wav")
	rec := newExecRecorder(t, out)
	rec.fail["amixer"] = errors.New("no mixer")

	// Mixer failure must not fail construction.
	if _, err := NewPiper(
		WithModel("voice.onnx"),
		WithOutput(out),
		WithVolume(80),
	); err != nil {
		t.Fatalf("NewPiper() error = %v", err)
	}

	calls := rec.callsTo("amixer")
	if len(calls) != 2 {
		t.Fatalf("amixer invoked %d times, want 2", len(calls))
	}
	want := [][]string{
		{"set", "PCM", "80%"},
		{"set", "Master", "80%"},
	}
	for i, c := range calls {
		if strings.Join(c.args, " ") != strings.Join(want[i], " ") {
			t.Errorf("amixer call %d args = %v, want %v", i, c.args, want[i])
		}
	}
}

func TestPiperRequiresModel(t *testing.T) {
	if _, err := NewPiper(); !errors.Is(err, ErrNoModel) {
		t.Errorf("NewPiper() error = %v, want ErrNoModel", err)
	}
}

func TestPiperHealth(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "piper")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	model := filepath.Join(dir, "voice.onnx")
	if err := os.WriteFile(model, []byte("onnx"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "voice.wav")
	rec := newExecRecorder(t, out)
	p := newTestPiper(t, rec, WithBinary(binary), WithModel(model))

	if err := p.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}

	missing := newTestPiper(t, rec, WithBinary(binary), WithModel(filepath.Join(dir, "absent.onnx")))
	if err := missing.Health(context.Background()); !errors.Is(err, ErrNoModel) {
		t.Errorf("Health() error = %v, want ErrNoModel", err)
	}
}

func TestChainFallsBack(t *testing.T) {
	broken := MockWithError(errors.New("sound stack down"))
	working := NewMock()

	chain, err := NewChain(broken, working)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	if err := chain.Say(context.Background(), "hello"); err != nil {
		t.Fatalf("Say() error = %v", err)
	}
	if got := working.Spoken(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("fallback sink spoke %v, want [hello]", got)
	}
}

func TestChainAggregatesErrors(t *testing.T) {
	first := MockWithError(errors.New("first down"))
	second := MockWithError(errors.New("second down"))

	chain, _ := NewChain(first, second)
	err := chain.Say(context.Background(), "hello")
	if err == nil {
		t.Fatal("Say() expected error")
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("Say() error = %T, want *ChainError", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("ChainError holds %d errors, want 2", len(chainErr.Errors))
	}
}

func TestChainRequiresSinks(t *testing.T) {
	if _, err := NewChain(); !errors.Is(err, ErrNoSinks) {
		t.Errorf("NewChain() error = %v, want ErrNoSinks", err)
	}
}

func TestConsoleSay(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)

	if err := c.Say(context.Background(), "robot stopping"); err != nil {
		t.Fatalf("Say() error = %v", err)
	}
	if got := buf.String(); !strings.Contains(got, "robot stopping") {
		t.Errorf("console output = %q, want it to contain the text", got)
	}
}

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock()
	m.Say(context.Background(), "one")
	m.Say(context.Background(), "two")
	m.Health(context.Background())

	if m.CallCount("Say") != 2 {
		t.Errorf("Say count = %d, want 2", m.CallCount("Say"))
	}
	if got := m.Spoken(); len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("Spoken() = %v, want [one two]", got)
	}
	m.Reset()
	if m.CallCount("Say") != 0 {
		t.Error("Reset() should clear calls")
	}
}
