package loco

import (
	"fmt"
	"strings"
)

// Address range for DCC locomotive decoders.
const (
	MinAddress     = 0
	MaxAddress     = 10293
	DefaultAddress = 3
)

// Speed range in 128-step mode (0 stop, 1..126 running).
const (
	MinSpeed = 0
	MaxSpeed = 126
)

// Function flag range. F0 is usually the headlights.
const (
	MinFunction   = 0
	MaxFunction   = 28
	FunctionCount = MaxFunction - MinFunction + 1
)

// Direction represents the motion state of a loco.
type Direction string

// Direction constants.
const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
	DirectionStopped Direction = "stopped"
)

// AllDirections returns all valid direction values.
func AllDirections() []Direction {
	return []Direction{DirectionForward, DirectionReverse, DirectionStopped}
}

// Valid reports whether d is one of the Direction constants.
func (d Direction) Valid() bool {
	switch d {
	case DirectionForward, DirectionReverse, DirectionStopped:
		return true
	}
	return false
}

// Label returns the display label used in human-readable dumps.
func (d Direction) Label() string {
	switch d {
	case DirectionForward:
		return "Forward"
	case DirectionReverse:
		return "Reverse"
	case DirectionStopped:
		return "Stopped"
	}
	return string(d)
}

// String implements fmt.Stringer using the display label.
func (d Direction) String() string {
	return d.Label()
}

// ParseDirection converts a token such as "reverse" or "Reverse" to a Direction.
// Matching is case-insensitive so display labels round-trip.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
	}
	return d, nil
}

func validAddress(a int) bool {
	return a >= MinAddress && a <= MaxAddress
}

func validSpeed(s int) bool {
	return s >= MinSpeed && s <= MaxSpeed
}

func validFunction(i int) bool {
	return i >= MinFunction && i <= MaxFunction
}
