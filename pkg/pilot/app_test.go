package pilot

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/roverbyte/go-rover/internal/log"
	"github.com/roverbyte/go-rover/pkg/channel"
	"github.com/roverbyte/go-rover/pkg/dispatch"
	"github.com/roverbyte/go-rover/pkg/indicator"
	"github.com/roverbyte/go-rover/pkg/intent"
	"github.com/roverbyte/go-rover/pkg/serialport"
	"github.com/roverbyte/go-rover/pkg/speak"
)

const forwardJSON = `{"command": "FORWARD", "value": 2, "unit": "meter"}`

// fastChannelOptions returns channel options with millisecond-scale
// timing so app tests run quickly.
func fastChannelOptions(o *channel.MockOpener) []channel.Option {
	return []channel.Option{
		channel.WithOpener(o.Open),
		channel.WithSettlePeriod(time.Millisecond),
		channel.WithStartupWindow(40 * time.Millisecond),
		channel.WithCollection(150*time.Millisecond, 50*time.Millisecond),
		channel.WithPollInterval(5 * time.Millisecond),
		channel.WithPreReadDelay(time.Millisecond),
		channel.WithTimeouts(50*time.Millisecond, 50*time.Millisecond),
		channel.WithBackoff(20 * time.Millisecond),
		channel.WithLinePulse(time.Millisecond),
	}
}

// testApp builds a pilot wired to a mock channel and a mock provider
// whose model always answers reply.
func testApp(t *testing.T, reply string) (*App, *channel.MockOpener, *speak.Mock) {
	t.Helper()
	return testAppWithProvider(t, intent.Replying(reply))
}

func testAppWithProvider(t *testing.T, provider intent.Provider) (*App, *channel.MockOpener, *speak.Mock) {
	t.Helper()
	opener := channel.NewMockOpener()
	ch := channel.New(fastChannelOptions(opener)...)
	ep := serialport.Endpoint{Path: "/dev/ttyUSB0", Kind: serialport.KindUSB, Priority: serialport.PriorityListed}
	if err := ch.Open(context.Background(), ep); err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { ch.Close() })

	voice := speak.NewMock()
	app := &App{
		config:  DefaultConfig(),
		logger:  log.Component("pilot"),
		ch:      ch,
		sup:     channel.NewSupervisor(ch),
		interp:  intent.NewInterpreter(provider),
		voice:   voice,
		ind:     indicator.Nop{},
		queue:   make(chan string, utteranceQueueSize),
		history: NewHistory(10),
	}
	return app, opener, voice
}

func lastWritten(t *testing.T, opener *channel.MockOpener) string {
	t.Helper()
	port := opener.Port(0)
	if port == nil {
		t.Fatal("no port opened")
	}
	lines := port.WrittenLines()
	if len(lines) == 0 {
		t.Fatal("nothing written")
	}
	return lines[len(lines)-1]
}

func TestHandleUtteranceSendsCommand(t *testing.T) {
	app, opener, voice := testApp(t, forwardJSON)

	app.handleUtterance(context.Background(), "go forward two meters")

	if got := lastWritten(t, opener); got != "FORWARD,2,meter" {
		t.Errorf("wire line = %q, want FORWARD,2,meter", got)
	}
	rec := app.history.Last()
	if rec == nil {
		t.Fatal("no record in history")
	}
	if rec.Failed {
		t.Errorf("record failed: %s", rec.Error)
	}
	if rec.Command != "FORWARD,2,meter" {
		t.Errorf("record command = %q, want FORWARD,2,meter", rec.Command)
	}
	spoken := voice.Spoken()
	if len(spoken) != 1 || spoken[0] != "robot moving forward 2 meters" {
		t.Errorf("spoken = %v, want the forward acknowledgement", spoken)
	}
}

func TestHandleUtteranceDialogue(t *testing.T) {
	app, opener, voice := testApp(t, "hello, I am the rover")

	app.handleUtterance(context.Background(), "how are you")

	// Only the handshake probe reaches the wire.
	if got := lastWritten(t, opener); got != "STATUS,0,none" {
		t.Errorf("wire line = %q, want only the handshake probe", got)
	}
	if app.history.Len() != 0 {
		t.Errorf("history length = %d, want 0 for dialogue", app.history.Len())
	}
	spoken := voice.Spoken()
	if len(spoken) != 1 || spoken[0] != "hello, I am the rover" {
		t.Errorf("spoken = %v, want the model's reply", spoken)
	}
}

func TestHandleUtteranceProviderfailure(t *testing.T) {
	app, opener, voice := testAppWithProvider(t, intent.WithError(errors.New("connection refused")))

	app.handleUtterance(context.Background(), "go forward")

	if got := lastWritten(t, opener); got != "STATUS,0,none" {
		t.Errorf("wire line = %q, want only the handshake probe", got)
	}
	spoken := voice.Spoken()
	if len(spoken) != 1 || spoken[0] != sayIntentFailed {
		t.Errorf("spoken = %v, want the provider apology", spoken)
	}
}

func TestHandleUtteranceSendFailure(t *testing.T) {
	app, opener, voice := testApp(t, forwardJSON)
	opener.Port(0).FailWrites(errors.New("mock port: input/output error"))

	app.handleUtterance(context.Background(), "go forward two meters")

	rec := app.history.Last()
	if rec == nil {
		t.Fatal("no record in history")
	}
	if !rec.Failed {
		t.Error("record not marked failed")
	}
	spoken := voice.Spoken()
	if len(spoken) != 1 || spoken[0] != saySendFailed {
		t.Errorf("spoken = %v, want the send apology", spoken)
	}
	// The write failure triggers exactly one recovery cycle.
	if got := app.sup.Cycles(); got != 1 {
		t.Errorf("Cycles() = %d, want 1", got)
	}
}

func TestHandleUtteranceCollectsReply(t *testing.T) {
	app, opener, _ := testApp(t, forwardJSON)
	go func() {
		time.Sleep(20 * time.Millisecond)
		opener.Port(0).FeedLine("OK: moving forward 2.00 m")
	}()

	app.handleUtterance(context.Background(), "go forward two meters")

	rec := app.history.Last()
	if rec == nil {
		t.Fatal("no record in history")
	}
	if len(rec.Reply) != 1 || rec.Reply[0].Text != "OK: moving forward 2.00 m" {
		t.Errorf("reply = %v, want the controller's line", rec.Reply)
	}
}

func TestSubmitCommand(t *testing.T) {
	app, opener, voice := testApp(t, "unused")

	rec, err := app.SubmitCommand("forward 2")
	if err != nil {
		t.Fatalf("SubmitCommand() = %v", err)
	}
	if rec.Command != "FORWARD,2,meter" {
		t.Errorf("record command = %q, want FORWARD,2,meter", rec.Command)
	}
	if got := lastWritten(t, opener); got != "FORWARD,2,meter" {
		t.Errorf("wire line = %q, want FORWARD,2,meter", got)
	}
	// Manual commands are silent.
	if n := len(voice.Spoken()); n != 0 {
		t.Errorf("spoken %d phrases, want 0 for manual commands", n)
	}
}

func TestSubmitCommandRaw(t *testing.T) {
	app, opener, _ := testApp(t, "unused")

	rec, err := app.SubmitCommand("raw PING,1,none")
	if err != nil {
		t.Fatalf("SubmitCommand() = %v", err)
	}
	if rec.Command != "" || rec.Wire != "PING,1,none" {
		t.Errorf("record = {Command:%q Wire:%q}, want raw payload only", rec.Command, rec.Wire)
	}
	if got := lastWritten(t, opener); got != "PING,1,none" {
		t.Errorf("wire line = %q, want PING,1,none", got)
	}
}

func TestSubmitCommandRejects(t *testing.T) {
	app, _, _ := testApp(t, "unused")

	for _, input := range []string{"help", "quit", "dance", "forward", "speed 250"} {
		_, err := app.SubmitCommand(input)
		var parseErr *dispatch.ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("SubmitCommand(%q) = %v, want *dispatch.ParseError", input, err)
		}
	}
}

func TestSubmitUtterance(t *testing.T) {
	app, _, _ := testApp(t, "unused")

	if err := app.SubmitUtterance("go forward"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("SubmitUtterance before Run = %v, want ErrNotRunning", err)
	}

	app.running.Store(true)
	if err := app.SubmitUtterance("   "); err != nil {
		t.Errorf("blank utterance = %v, want nil", err)
	}
	if len(app.queue) != 0 {
		t.Errorf("blank utterance queued")
	}

	for i := 0; i < utteranceQueueSize; i++ {
		if err := app.SubmitUtterance("go forward"); err != nil {
			t.Fatalf("SubmitUtterance #%d = %v", i, err)
		}
	}
	if err := app.SubmitUtterance("one too many"); !errors.Is(err, ErrQueueFull) {
		t.Errorf("overfull queue = %v, want ErrQueueFull", err)
	}
}

// scriptSource yields a fixed list of utterances, then EOF.
type scriptSource struct {
	lines []string
	i     int
}

func (s *scriptSource) Next(ctx context.Context) (string, error) {
	if s.i >= len(s.lines) {
		return "", io.EOF
	}
	line := s.lines[s.i]
	s.i++
	return line, nil
}

func (s *scriptSource) Close() error { return nil }

// blockSource blocks until the context ends.
type blockSource struct{}

func (blockSource) Next(ctx context.Context) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockSource) Close() error { return nil }

func TestRunProcessesSourceUntilEOF(t *testing.T) {
	app, opener, _ := testApp(t, forwardJSON)
	app.SetSource(&scriptSource{lines: []string{"go forward two meters"}})

	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := lastWritten(t, opener); got != "FORWARD,2,meter" {
		t.Errorf("wire line = %q, want FORWARD,2,meter", got)
	}
	if app.history.Len() != 1 {
		t.Errorf("history length = %d, want 1", app.history.Len())
	}
}

func TestRunShutdownUtterance(t *testing.T) {
	provider := intent.Replying(forwardJSON)
	app, _, voice := testAppWithProvider(t, provider)
	app.SetSource(&scriptSource{lines: []string{"shutdown", "go forward two meters"}})

	if err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	// The shutdown phrase never reaches the model, and nothing after it
	// runs.
	if n := provider.CallCount("Chat"); n != 0 {
		t.Errorf("Chat called %d times, want 0", n)
	}
	spoken := voice.Spoken()
	if len(spoken) != 1 || spoken[0] != sayGoodbye {
		t.Errorf("spoken = %v, want the goodbye phrase", spoken)
	}
}

func TestRunContextCancel(t *testing.T) {
	app, _, _ := testApp(t, "unused")
	app.SetSource(blockSource{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunDrainsDashboardQueue(t *testing.T) {
	app, opener, _ := testApp(t, forwardJSON)
	app.SetSource(blockSource{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	// Wait for the loop to come up, then feed it through the queue.
	deadline := time.Now().Add(2 * time.Second)
	for !app.running.Load() {
		if time.Now().After(deadline) {
			t.Fatal("run loop never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := app.SubmitUtterance("go forward two meters"); err != nil {
		t.Fatalf("SubmitUtterance() = %v", err)
	}

	for app.history.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("queued utterance never processed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if got := lastWritten(t, opener); got != "FORWARD,2,meter" {
		t.Errorf("wire line = %q, want FORWARD,2,meter", got)
	}
}

func TestIsShutdownRequest(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"shutdown", true},
		{"Shut Down.", true},
		{"POWER OFF!", true},
		{"quit", true},
		{"turn off", true},
		{"do not shut down", false},
		{"exiting", false},
		{"stop", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isShutdownRequest(tt.text); got != tt.want {
			t.Errorf("isShutdownRequest(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
