package pilot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roverbyte/go-rover/internal/log"
	"github.com/roverbyte/go-rover/pkg/channel"
	"github.com/roverbyte/go-rover/pkg/command"
	"github.com/roverbyte/go-rover/pkg/dispatch"
	"github.com/roverbyte/go-rover/pkg/indicator"
	"github.com/roverbyte/go-rover/pkg/intent"
	"github.com/roverbyte/go-rover/pkg/serialport"
	"github.com/roverbyte/go-rover/pkg/speak"
	"github.com/roverbyte/go-rover/pkg/web"
)

// utteranceQueueSize bounds dashboard-submitted utterances waiting for
// the run loop.
const utteranceQueueSize = 8

// healthTimeout bounds the intent provider probe during Init.
const healthTimeout = 2 * time.Second

// submitTimeout bounds one dashboard-submitted command exchange.
const submitTimeout = 10 * time.Second

// Spoken phrases for outcomes the model never sees. The interpreter
// supplies per-command acknowledgements; these cover the edges around
// it.
const (
	sayReadyConnected    = "voice control ready. robot controller connected."
	sayReadyDisconnected = "voice control ready, but the robot controller is not connected."
	saySendFailed        = "sorry, the command did not reach the robot. check the serial connection."
	sayIntentFailed      = "sorry, I could not reach the language model. please try again."
	sayGoodbye           = "shutting down the rover. goodbye."
)

// App is the pilot application orchestrator. It owns the serial channel
// and is the only writer to it; console and dashboard input converge
// here.
type App struct {
	config Config
	logger *slog.Logger

	// Serial channel
	ch  *channel.Channel
	sup *channel.Supervisor

	// Intent extraction
	interp *intent.Interpreter

	// Spoken acknowledgements
	voice speak.Sink

	// Status LEDs
	ind indicator.Indicator

	// Web dashboard (nil when disabled)
	web *web.Server

	// Operator input
	source Source
	queue  chan string

	history *History

	// Single-writer discipline across the voice loop and dashboard
	// callbacks.
	sendMu sync.Mutex

	running atomic.Bool
}

// New creates a pilot application from a fully resolved configuration.
func New(cfg Config) (*App, error) {
	if cfg.HistorySize == 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{
		config:  cfg,
		logger:  log.Component("pilot"),
		queue:   make(chan string, utteranceQueueSize),
		history: NewHistory(cfg.HistorySize),
	}, nil
}

// SetSource replaces the utterance source. Call before Run; the default
// is a stdin console source.
func (a *App) SetSource(s Source) {
	a.source = s
}

// History returns the command record history.
func (a *App) History() *History {
	return a.history
}

// Init initializes all components. Call after New and before Run.
// A missing robot controller is not fatal; the pilot runs disconnected
// and reports send failures until the cable comes back.
func (a *App) Init() error {
	log.Init(a.config.LogLevel)

	fmt.Println("🤖 Rover Pilot - Voice-Driven Rover Control")
	fmt.Println("===========================================")

	a.initIndicator()
	a.initChannel()
	if err := a.initIntent(); err != nil {
		return fmt.Errorf("intent init: %w", err)
	}
	a.initSpeech()
	a.initWeb()

	if a.ch.Connected() {
		a.say(context.Background(), sayReadyConnected)
	} else {
		a.say(context.Background(), sayReadyDisconnected)
	}
	return nil
}

// Run pumps utterances from the source and the dashboard queue through
// the interpreter until the source ends, a shutdown utterance arrives,
// or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.source == nil {
		a.source = NewConsoleSource()
	}
	if a.web != nil {
		a.web.StartAsync()
	}
	a.publishState()

	// Run-scoped context so the source pump ends with the loop.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.running.Store(true)
	defer a.running.Store(false)

	fmt.Println("\n🎙️  Listening. Say or type a request (Ctrl+C to exit).")

	lines := make(chan string)
	pumpErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for {
			text, err := a.source.Next(ctx)
			if err != nil {
				pumpErr <- err
				return
			}
			select {
			case lines <- text:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case text, ok := <-lines:
			if !ok {
				return a.pumpResult(pumpErr)
			}
			if isShutdownRequest(text) {
				a.say(ctx, sayGoodbye)
				return nil
			}
			a.handleUtterance(ctx, text)
		case text := <-a.queue:
			a.handleUtterance(ctx, text)
		}
	}
}

// pumpResult maps the source outcome to the run result. A clean end of
// input is a normal exit.
func (a *App) pumpResult(pumpErr chan error) error {
	select {
	case err := <-pumpErr:
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	default:
		return nil
	}
}

// Shutdown stops everything, best effort: halt the rover, close the
// channel, turn off the LEDs, stop the dashboard.
func (a *App) Shutdown() {
	fmt.Println("\n👋 Goodbye!")

	if a.ch != nil {
		if a.ch.Connected() {
			if err := a.ch.Send(command.Halt()); err != nil {
				a.logger.Debug("final halt failed", "error", err)
			}
		}
		if err := a.ch.Close(); err != nil {
			a.logger.Debug("channel close failed", "error", err)
		}
	}
	if a.ind != nil {
		a.ind.Set(false, false)
	}
	if a.web != nil {
		if err := a.web.Shutdown(); err != nil {
			a.logger.Debug("web shutdown failed", "error", err)
		}
	}
	if a.interp != nil {
		a.interp.Close()
	}
	if a.voice != nil {
		a.voice.Close()
	}
	if a.source != nil {
		a.source.Close()
	}
}

// SubmitUtterance queues natural-language text from the dashboard for
// the run loop.
func (a *App) SubmitUtterance(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !a.running.Load() {
		return ErrNotRunning
	}
	select {
	case a.queue <- text:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitCommand parses console-grammar text ("forward 2", "raw ...")
// and sends it through the channel, returning the resulting record.
// Console-local verbs are rejected; they mean nothing here.
func (a *App) SubmitCommand(text string) (Record, error) {
	action, err := dispatch.Parse(text)
	if err != nil {
		return Record{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	switch act := action.(type) {
	case dispatch.SendCommand:
		return a.exchange(ctx, act.Cmd, ""), nil
	case dispatch.SendRaw:
		return a.exchangeRaw(ctx, act.Payload), nil
	case dispatch.Meta:
		return Record{}, &dispatch.ParseError{Input: text, Msg: fmt.Sprintf("%q is a console action", act.Kind)}
	default:
		return Record{}, &dispatch.ParseError{Input: text, Msg: fmt.Sprintf("unknown command %q", strings.TrimSpace(text))}
	}
}

// handleUtterance runs one utterance through the interpreter and acts
// on the result: commands go to the rover, dialogue goes to the
// speaker.
func (a *App) handleUtterance(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	a.logger.Info("utterance", "text", text)
	a.updateWeb(func(s *web.RoverState) { s.LastUtterance = text })

	res, err := a.interp.Interpret(ctx, text)
	if err != nil {
		a.logger.Error("interpretation failed", "error", err)
		a.say(ctx, sayIntentFailed)
		return
	}

	if !res.IsCommand {
		fmt.Printf("💬 %s\n", res.Reply)
		a.say(ctx, res.Reply)
		return
	}

	fmt.Printf("📤 %s\n", res.Cmd)
	rec := a.exchange(ctx, res.Cmd, res.Ack)
	if rec.Failed {
		a.say(ctx, saySendFailed)
	}
}

// exchange sends one command through the supervisor, records the
// outcome, and publishes it to the dashboard. ack, when non-empty, is
// spoken after a successful send.
func (a *App) exchange(ctx context.Context, cmd command.Command, ack string) Record {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	rec := newRecord(cmd.String(), cmd.String())
	lines, err := a.sup.Exchange(ctx, cmd)
	a.finishRecord(&rec, lines, err)

	if !rec.Failed && ack != "" {
		a.say(ctx, ack)
	}
	return rec
}

// exchangeRaw sends a verbatim payload with the same bookkeeping.
func (a *App) exchangeRaw(ctx context.Context, payload string) Record {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	rec := newRecord("", payload)
	lines, err := a.sup.ExchangeRaw(ctx, payload)
	a.finishRecord(&rec, lines, err)
	return rec
}

// finishRecord stores the exchange outcome and mirrors it to the
// history and the dashboard.
func (a *App) finishRecord(rec *Record, lines []channel.Line, err error) {
	rec.Reply = lines
	if err != nil {
		rec.Failed = true
		rec.Error = err.Error()
		a.logger.Warn("send failed", "wire", rec.Wire, "error", err)
	}
	a.history.Add(*rec)

	for _, ln := range lines {
		fmt.Printf("📥 %s\n", ln.Text)
		if a.web != nil {
			a.web.AddLine(ln.Text)
		}
	}

	a.updateWeb(func(s *web.RoverState) {
		s.CommandsSent++
		s.LinesReceived += len(lines)
		if rec.Command != "" {
			s.LastCommand = rec.Command
		} else {
			s.LastCommand = rec.Wire
		}
		if len(lines) > 0 {
			s.LastReply = lines[len(lines)-1].Text
		}
	})
	a.publishState()
}

// say speaks text through the sink. Speech failures are logged, never
// fatal; motion must not depend on audio.
func (a *App) say(ctx context.Context, text string) {
	if a.voice == nil || text == "" {
		return
	}
	if err := a.voice.Say(ctx, text); err != nil {
		a.logger.Warn("speech failed", "error", err)
	}
	a.updateWeb(func(s *web.RoverState) { s.LastSpoken = text })
}

// initIndicator sets up the status LEDs and runs the boot lamp test:
// three alternating blinks.
func (a *App) initIndicator() {
	if !a.config.GPIOEnabled {
		a.ind = indicator.Nop{}
		return
	}
	a.ind = indicator.NewGPIO(a.config.StatusPin, a.config.ReadyPin)
	fmt.Printf("💡 Status LEDs on pins %d/%d\n", a.config.StatusPin, a.config.ReadyPin)
	for i := 0; i < 3; i++ {
		a.ind.Set(true, false)
		time.Sleep(200 * time.Millisecond)
		a.ind.Set(false, true)
		time.Sleep(200 * time.Millisecond)
	}
	a.ind.Set(false, false)
}

// initChannel resolves the serial endpoint and opens the channel.
// Failure leaves the pilot disconnected but alive.
func (a *App) initChannel() {
	a.ch = channel.New(
		channel.WithBaud(a.config.Baud),
		channel.WithIndicator(a.ind),
	)
	a.sup = channel.NewSupervisor(a.ch)
	a.sup.OnReconnect = func(ep serialport.Endpoint, err error) {
		a.publishState()
	}

	var ep serialport.Endpoint
	if a.config.Port != "" {
		ep = serialport.FromPath(a.config.Port)
	} else {
		resolver := serialport.NewResolver(serialport.Config{PreferGPIO: a.config.PreferGPIO})
		found, err := resolver.Discover()
		if err != nil {
			fmt.Printf("⚠️  No robot controller found: %v\n", err)
			a.logger.Warn("discovery failed", "error", err)
			return
		}
		ep = found
	}

	fmt.Printf("🔌 Connecting to %s (%s)... ", ep.Path, ep.RuleName())
	if err := a.ch.Open(context.Background(), ep); err != nil {
		fmt.Printf("⚠️  %v\n", err)
		a.logger.Warn("open failed", "path", ep.Path, "error", err)
		return
	}
	fmt.Println("✅")
}

// initIntent builds the chat client and interpreter and probes the
// provider once. An unreachable provider is reported, not fatal; it may
// come up later.
func (a *App) initIntent() error {
	client, err := intent.NewClient(
		intent.WithBaseURL(a.config.IntentURL),
		intent.WithModel(a.config.IntentModel),
		intent.WithAPIKey(a.config.IntentKey),
		intent.WithLogger(log.Component("intent")),
	)
	if err != nil {
		return err
	}
	a.interp = intent.NewInterpreter(client)

	fmt.Printf("🧠 Intent model %s at %s... ", a.config.IntentModel, a.config.IntentURL)
	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		fmt.Printf("⚠️  %v\n", err)
	} else {
		fmt.Println("✅")
	}
	return nil
}

// initSpeech builds the spoken acknowledgement sink. Piper first with a
// console fallback, console only when speech is disabled or piper can't
// be configured.
func (a *App) initSpeech() {
	if a.config.SpeechDisabled {
		a.voice = speak.NewConsole()
		fmt.Println("🔇 Speech disabled, printing acknowledgements")
		return
	}

	piper, err := speak.NewPiper(
		speak.WithModel(a.config.PiperModel),
		speak.WithVolume(a.config.Volume),
		speak.WithLogger(log.Component("speak")),
	)
	if err != nil {
		fmt.Printf("⚠️  Piper unavailable (%v), printing acknowledgements\n", err)
		a.voice = speak.NewConsole()
		return
	}

	chain, err := speak.NewChainWithLogger(log.Component("speak"), piper, speak.NewConsole())
	if err != nil {
		a.voice = speak.NewConsole()
		return
	}
	a.voice = chain
	fmt.Printf("🗣️  Speaking via piper (%s)\n", a.config.PiperModel)
}

// initWeb builds the dashboard server and wires its callbacks into the
// pilot.
func (a *App) initWeb() {
	if a.config.WebDisabled {
		return
	}
	s := web.NewServer(a.config.WebPort)
	s.OnCommand = func(text string) (interface{}, error) {
		return a.SubmitCommand(text)
	}
	s.OnUtterance = a.SubmitUtterance
	s.OnHistory = func() interface{} {
		return a.history.Records()
	}
	a.web = s
	fmt.Printf("🌐 Dashboard on http://0.0.0.0:%s\n", a.config.WebPort)
}

// updateWeb applies a state mutation when the dashboard is enabled.
func (a *App) updateWeb(fn func(*web.RoverState)) {
	if a.web == nil {
		return
	}
	a.web.UpdateState(fn)
}

// publishState mirrors the channel's connection facts to the dashboard.
func (a *App) publishState() {
	if a.web == nil {
		return
	}
	st := a.ch.State()
	ep := a.ch.Endpoint()
	cycles := a.sup.Cycles()
	a.web.UpdateState(func(s *web.RoverState) {
		s.ConnState = string(st)
		s.Connected = st == channel.StateConnected
		s.Port = ep.Path
		s.Reconnects = cycles
	})
}

// shutdownPhrases end the run loop when spoken or typed as a whole
// utterance. Substring matches would fire on sentences that merely
// mention stopping, so only exact matches count.
var shutdownPhrases = []string{"shutdown", "shut down", "power off", "turn off", "exit", "quit"}

func isShutdownRequest(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, ".!?")
	for _, p := range shutdownPhrases {
		if t == p {
			return true
		}
	}
	return false
}
