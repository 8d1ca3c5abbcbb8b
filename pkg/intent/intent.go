package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/roverbyte/go-rover/internal/log"
	"github.com/roverbyte/go-rover/pkg/command"
)

// systemPrompt steers the model: movement requests become one JSON
// object, everything else stays plain text.
const systemPrompt = `You are the voice assistant controlling a small mobile robot.
When the user asks for a movement, you MUST answer with exactly one JSON object
in this form and nothing around it:
{"command": "NAME", "value": NUMBER, "unit": "UNIT"}

Available commands:
- FORWARD = move forward (unit "meter"; value -1 with unit "continuous" means keep going)
- BACKWARD = move backward (unit "meter"; value -1 with unit "continuous" means keep going)
- LEFT = turn left (unit "degree")
- RIGHT = turn right (unit "degree")
- STOP = halt immediately (value 0, unit "none")
- SPEED = set speed percentage 0-100 (unit "percent")
- STATUS = report robot status (value 0, unit "none")

Examples:
- "go forward five meters" -> {"command": "FORWARD", "value": 5, "unit": "meter"}
- "back up two meters" -> {"command": "BACKWARD", "value": 2, "unit": "meter"}
- "turn left" -> {"command": "LEFT", "value": 90, "unit": "degree"}
- "spin right ninety degrees" -> {"command": "RIGHT", "value": 90, "unit": "degree"}
- "stop" -> {"command": "STOP", "value": 0, "unit": "none"}
- "half speed" -> {"command": "SPEED", "value": 50, "unit": "percent"}
- "keep driving forward" -> {"command": "FORWARD", "value": -1, "unit": "continuous"}
- "how is the robot doing" -> {"command": "STATUS", "value": 0, "unit": "none"}

If the user says anything that is not a movement request, answer normally in one
or two short sentences and do not use JSON.`

// jsonObject matches the first flat JSON object in model output,
// fenced or inline.
var jsonObject = regexp.MustCompile(`\{[^{}]*\}`)

// Result is the interpretation of one utterance. Either Cmd carries a
// validated command with its spoken acknowledgement, or Reply carries
// the model's dialogue answer.
type Result struct {
	IsCommand bool
	Cmd       command.Command
	Ack       string
	Reply     string
	Raw       string // full model output, for logs and the dashboard
}

// Interpreter extracts robot commands from utterances via a chat model.
type Interpreter struct {
	provider Provider
	logger   *slog.Logger
}

// NewInterpreter wraps a chat provider.
func NewInterpreter(p Provider) *Interpreter {
	return &Interpreter{
		provider: p,
		logger:   log.Component("intent"),
	}
}

// Interpret asks the model about one utterance and classifies the
// answer. Dialogue is not an error; only provider failures are.
func (i *Interpreter) Interpret(ctx context.Context, utterance string) (Result, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return Result{}, ErrEmptyUtterance
	}

	resp, err := i.provider.Chat(ctx, &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: utterance},
		},
	})
	if err != nil {
		return Result{}, err
	}

	i.logger.Debug("model reply",
		"utterance", utterance,
		"reply", resp.Content,
		"latency_ms", resp.LatencyMs,
	)

	cmd, err := ExtractCommand(resp.Content)
	if err != nil {
		// Ordinary dialogue: speak the model's own words.
		return Result{Reply: strings.TrimSpace(resp.Content), Raw: resp.Content}, nil
	}

	return Result{
		IsCommand: true,
		Cmd:       cmd,
		Ack:       Acknowledgement(cmd),
		Raw:       resp.Content,
	}, nil
}

// Close releases the underlying provider.
func (i *Interpreter) Close() error {
	return i.provider.Close()
}

// wireIntent is the JSON shape the prompt asks for. Missing value and
// unit default like the wire format's neutral fields; a missing command
// name never defaults, so stray JSON in dialogue cannot move the robot.
type wireIntent struct {
	Command string     `json:"command"`
	Value   looseFloat `json:"value"`
	Unit    string     `json:"unit"`
}

// looseFloat tolerates models quoting numeric values.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = looseFloat(v)
	return nil
}

// ExtractCommand finds the first JSON object in text and maps it to a
// validated command. ErrNotACommand means the text is dialogue.
func ExtractCommand(text string) (command.Command, error) {
	blob := jsonObject.FindString(text)
	if blob == "" {
		return command.Command{}, ErrNotACommand
	}

	var w wireIntent
	if err := json.Unmarshal([]byte(blob), &w); err != nil {
		return command.Command{}, ErrNotACommand
	}
	if strings.TrimSpace(w.Command) == "" {
		return command.Command{}, ErrNotACommand
	}

	unit := strings.ToLower(strings.TrimSpace(w.Unit))
	if unit == "" {
		unit = string(command.None)
	}

	cmd := command.Command{
		Name:  command.Name(strings.ToUpper(strings.TrimSpace(w.Command))),
		Value: float64(w.Value),
		Unit:  command.Unit(unit),
	}
	if err := cmd.Validate(); err != nil {
		return command.Command{}, ErrNotACommand
	}
	return cmd, nil
}

// Acknowledgement returns the spoken confirmation for a command.
func Acknowledgement(cmd command.Command) string {
	switch cmd.Name {
	case command.Forward:
		if cmd.Unit == command.Continuous {
			return "robot moving forward until told to stop"
		}
		return fmt.Sprintf("robot moving forward %s meters", spokenValue(cmd.Value))
	case command.Backward:
		if cmd.Unit == command.Continuous {
			return "robot moving backward until told to stop"
		}
		return fmt.Sprintf("robot moving backward %s meters", spokenValue(cmd.Value))
	case command.Left:
		return fmt.Sprintf("robot turning left %s degrees", spokenValue(cmd.Value))
	case command.Right:
		return fmt.Sprintf("robot turning right %s degrees", spokenValue(cmd.Value))
	case command.Stop:
		return "robot stopping"
	case command.Speed:
		return fmt.Sprintf("speed set to %s percent", spokenValue(cmd.Value))
	case command.Status:
		return "status request sent to the robot"
	}
	return "command sent to the robot"
}

func spokenValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
