// Package command defines the canonical command model for the rover's
// motion controller and the ASCII wire codec for it.
//
// A Command is a (name, value, unit) triple. The channel transmits it as a
// single ASCII line; see Encode for the exact format. Inbound device text is
// free-form and is never parsed back into commands.
package command

import "math"

// Name is the wire verb of a command.
type Name string

// Command verbs understood by the motion controller firmware.
const (
	Forward  Name = "FORWARD"
	Backward Name = "BACKWARD"
	Left     Name = "LEFT"
	Right    Name = "RIGHT"
	Stop     Name = "STOP"
	Speed    Name = "SPEED"
	Status   Name = "STATUS"
)

// Unit qualifies a command value.
type Unit string

// Units carried on the wire.
const (
	Meter      Unit = "meter"
	Degree     Unit = "degree"
	Percent    Unit = "percent"
	None       Unit = "none"
	Continuous Unit = "continuous"
)

// ContinuousValue is the sentinel meaning "drive until a later STOP".
// Only FORWARD and BACKWARD accept it, paired with the Continuous unit.
const ContinuousValue = -1

// Command is one instruction for the motion controller.
// Commands are built by a dispatcher or intent extractor, encoded once,
// and never persisted.
type Command struct {
	Name  Name
	Value float64
	Unit  Unit
}

// MoveForward drives forward the given distance in meters.
func MoveForward(meters float64) Command {
	return Command{Name: Forward, Value: meters, Unit: Meter}
}

// MoveBackward drives backward the given distance in meters.
func MoveBackward(meters float64) Command {
	return Command{Name: Backward, Value: meters, Unit: Meter}
}

// MoveForwardContinuous drives forward until a later STOP.
func MoveForwardContinuous() Command {
	return Command{Name: Forward, Value: ContinuousValue, Unit: Continuous}
}

// MoveBackwardContinuous drives backward until a later STOP.
func MoveBackwardContinuous() Command {
	return Command{Name: Backward, Value: ContinuousValue, Unit: Continuous}
}

// TurnLeft rotates left by the given angle in degrees.
func TurnLeft(degrees float64) Command {
	return Command{Name: Left, Value: degrees, Unit: Degree}
}

// TurnRight rotates right by the given angle in degrees.
func TurnRight(degrees float64) Command {
	return Command{Name: Right, Value: degrees, Unit: Degree}
}

// SetSpeed sets the drive speed as a percentage in [0,100].
func SetSpeed(percent float64) Command {
	return Command{Name: Speed, Value: percent, Unit: Percent}
}

// Halt stops all motion.
func Halt() Command {
	return Command{Name: Stop, Value: 0, Unit: None}
}

// QueryStatus asks the controller to report its state.
func QueryStatus() Command {
	return Command{Name: Status, Value: 0, Unit: None}
}

// Validate checks the command against the model invariants:
// SPEED in [0,100] percent, STOP/STATUS always (0, none), the continuous
// sentinel only on FORWARD/BACKWARD, and finite non-negative values
// everywhere else.
func (c Command) Validate() error {
	if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
		return ErrBadValue
	}

	switch c.Name {
	case Forward, Backward:
		switch c.Unit {
		case Meter:
			if c.Value < 0 {
				return ErrBadValue
			}
		case Continuous:
			if c.Value != ContinuousValue {
				return ErrBadValue
			}
		default:
			return ErrUnitMismatch
		}
	case Left, Right:
		if c.Unit != Degree {
			return ErrUnitMismatch
		}
		if c.Value < 0 {
			return ErrBadValue
		}
	case Speed:
		if c.Unit != Percent {
			return ErrUnitMismatch
		}
		if c.Value < 0 || c.Value > 100 {
			return ErrSpeedRange
		}
	case Stop, Status:
		if c.Unit != None || c.Value != 0 {
			return ErrUnitMismatch
		}
	default:
		return ErrUnknownName
	}
	return nil
}

// IsMotion reports whether the command causes the rover to move.
func (c Command) IsMotion() bool {
	switch c.Name {
	case Forward, Backward, Left, Right:
		return true
	}
	return false
}

// String returns the wire form without the trailing newline, for logs.
func (c Command) String() string {
	return string(c.Name) + "," + formatValue(c.Value) + "," + string(c.Unit)
}
