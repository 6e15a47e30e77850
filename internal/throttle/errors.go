package throttle

import "errors"

// Sentinel errors for throttle operations.
var (
	// ErrInvalidCommand indicates a command that is empty or malformed.
	ErrInvalidCommand = errors.New("throttle: invalid command")
)
