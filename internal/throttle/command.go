package throttle

import (
	"encoding/json"
	"fmt"

	"github.com/trainlink-org/shared-lib/internal/loco"
)

// Command kinds, used as metric labels.
const (
	KindSpeed     = "speed"
	KindDirection = "direction"
	KindFunction  = "function"
)

// Command is a throttle change for one loco. Nil fields are left alone.
//
//	{"speed": 40, "direction": "reverse", "function": {"index": 0, "state": true}}
type Command struct {
	Speed     *int             `json:"speed,omitempty"`
	Direction *string          `json:"direction,omitempty"`
	Function  *FunctionCommand `json:"function,omitempty"`
}

// FunctionCommand switches one function flag.
type FunctionCommand struct {
	Index int  `json:"index"`
	State bool `json:"state"`
}

// DecodeCommand parses a JSON command and checks it.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// Validate rejects empty commands and unknown directions. Out-of-range
// speeds and function indices are not errors; the loco ignores them.
func (c Command) Validate() error {
	if c.Speed == nil && c.Direction == nil && c.Function == nil {
		return fmt.Errorf("%w: no speed, direction or function given", ErrInvalidCommand)
	}
	if c.Direction != nil {
		if _, err := loco.ParseDirection(*c.Direction); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
	}
	return nil
}

// Kinds lists the kinds of change the command carries.
func (c Command) Kinds() []string {
	var kinds []string
	if c.Speed != nil {
		kinds = append(kinds, KindSpeed)
	}
	if c.Direction != nil {
		kinds = append(kinds, KindDirection)
	}
	if c.Function != nil {
		kinds = append(kinds, KindFunction)
	}
	return kinds
}

// applyTo writes the command to l through its fail-soft mutators.
// The command must already be valid.
func (c Command) applyTo(l *loco.Loco) {
	var dir *loco.Direction
	if c.Direction != nil {
		d, _ := loco.ParseDirection(*c.Direction) //nolint:errcheck // checked by Validate
		dir = &d
	}
	l.Drive(c.Speed, dir)
	if c.Function != nil {
		l.SetFunction(c.Function.Index, c.Function.State)
	}
}
