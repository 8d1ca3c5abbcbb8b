// Package dispatch parses operator console input into channel actions.
//
// The grammar is one verb token, optionally followed by a numeric
// argument. Verbs are matched case-insensitively; raw payloads are
// passed through byte-for-byte. Parsing is pure and performs no I/O,
// so anything it rejects never reaches the wire.
package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roverbyte/go-rover/pkg/command"
)

// Action is what one line of operator input asks for. It is one of
// SendCommand, SendRaw, Meta, or Unknown.
type Action interface {
	action()
}

// SendCommand carries a validated motion or query command.
type SendCommand struct {
	Cmd command.Command
}

// SendRaw carries a literal payload to transmit unmodified.
type SendRaw struct {
	Payload string
}

// MetaKind names a console-local action.
type MetaKind string

const (
	MetaHelp  MetaKind = "help"
	MetaClear MetaKind = "clear"
	MetaQuit  MetaKind = "quit"
)

// Meta is a console-local action that produces no channel I/O.
type Meta struct {
	Kind MetaKind
}

// Unknown is input matching no verb. It produces no channel I/O.
type Unknown struct {
	Input string
}

func (SendCommand) action() {}
func (SendRaw) action()     {}
func (Meta) action()        {}
func (Unknown) action()     {}

// ParseError reports input that named a known verb but broke its
// grammar. Msg is operator-facing.
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dispatch: %s", e.Msg)
}

// Parse maps one line of input to an Action. Input matching no verb at
// all comes back as Unknown with a nil error; a known verb with a bad
// argument comes back as a *ParseError and nothing is sent either way.
func Parse(text string) (Action, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Unknown{Input: ""}, nil
	}

	fields := strings.Fields(trimmed)
	verb := strings.ToLower(fields[0])

	switch verb {
	case "help":
		return Meta{Kind: MetaHelp}, nil
	case "clear":
		return Meta{Kind: MetaClear}, nil
	case "quit", "exit", "q":
		return Meta{Kind: MetaQuit}, nil

	case "stop", "status":
		if len(fields) > 1 {
			return nil, &ParseError{Input: trimmed, Msg: fmt.Sprintf("usage: %s", verb)}
		}
		if verb == "stop" {
			return SendCommand{Cmd: command.Halt()}, nil
		}
		return SendCommand{Cmd: command.QueryStatus()}, nil

	case "forward", "backward":
		v, err := numericArg(trimmed, fields, verb, "<distance>")
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, &ParseError{Input: trimmed, Msg: "distance must be zero or positive"}
		}
		if verb == "forward" {
			return SendCommand{Cmd: command.MoveForward(v)}, nil
		}
		return SendCommand{Cmd: command.MoveBackward(v)}, nil

	case "left", "right":
		v, err := numericArg(trimmed, fields, verb, "<degrees>")
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, &ParseError{Input: trimmed, Msg: "degrees must be zero or positive"}
		}
		if verb == "left" {
			return SendCommand{Cmd: command.TurnLeft(v)}, nil
		}
		return SendCommand{Cmd: command.TurnRight(v)}, nil

	case "speed":
		v, err := numericArg(trimmed, fields, verb, "<percent>")
		if err != nil {
			return nil, err
		}
		if v < 0 || v > 100 {
			return nil, &ParseError{Input: trimmed, Msg: "speed must be between 0 and 100"}
		}
		return SendCommand{Cmd: command.SetSpeed(v)}, nil

	case "raw":
		// Everything after the verb, original case and spacing kept.
		payload := strings.TrimSpace(trimmed[len(fields[0]):])
		if payload == "" {
			return nil, &ParseError{Input: trimmed, Msg: "usage: raw <payload>"}
		}
		return SendRaw{Payload: payload}, nil
	}

	return Unknown{Input: trimmed}, nil
}

func numericArg(input string, fields []string, verb, placeholder string) (float64, error) {
	if len(fields) < 2 {
		return 0, &ParseError{Input: input, Msg: fmt.Sprintf("usage: %s %s", verb, placeholder)}
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, &ParseError{Input: input, Msg: fmt.Sprintf("usage: %s %s", verb, placeholder)}
	}
	return v, nil
}

// Help returns the operator help text shown by the consoles.
func Help() string {
	var b strings.Builder
	b.WriteString("Movement commands:\n")
	b.WriteString("  forward <distance>    move forward (meters)\n")
	b.WriteString("  backward <distance>   move backward (meters)\n")
	b.WriteString("  left <degrees>        turn left\n")
	b.WriteString("  right <degrees>       turn right\n")
	b.WriteString("  stop                  halt all motion\n")
	b.WriteString("\nSpeed:\n")
	b.WriteString("  speed <percent>       set speed (0-100)\n")
	b.WriteString("\nSystem:\n")
	b.WriteString("  status                query controller status\n")
	b.WriteString("  raw <payload>         send a raw line verbatim\n")
	b.WriteString("\nConsole:\n")
	b.WriteString("  help / clear / quit\n")
	return b.String()
}
