package command

import (
	"strconv"
	"strings"
)

// Encode renders a command as its wire line:
//
//	<NAME>,<value>,<unit>\n
//
// The value is formatted with strconv so the output never depends on
// locale. Integral values render without a decimal point ("5", not "5.0").
// Encode validates the command first; an invalid command is never written.
func Encode(c Command) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	return string(c.Name) + "," + formatValue(c.Value) + "," + string(c.Unit) + "\n", nil
}

// Decode parses a wire line back into a Command. It exists for tests and
// for replaying the outbound history; inbound device text is free-form
// diagnostic output and must NOT be fed through Decode.
func Decode(line string) (Command, error) {
	s := strings.TrimRight(line, "\r\n")
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Command{}, wrapDecode(s, ErrBadLine)
	}

	value, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Command{}, wrapDecode(s, ErrBadLine)
	}

	c := Command{Name: Name(parts[0]), Value: value, Unit: Unit(parts[2])}
	if err := c.Validate(); err != nil {
		return Command{}, wrapDecode(s, err)
	}
	return c, nil
}

// formatValue renders a float for the wire with no locale separators.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
