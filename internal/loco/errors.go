package loco

import "errors"

// Domain errors for the loco package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, loco.ErrNotFound) {
//	    // handle unknown identifier
//	}
var (
	// ErrNotFound is returned when an identifier does not resolve to a stored loco.
	ErrNotFound = errors.New("loco: not found in store")

	// ErrInvalidRecord is returned when a wire record cannot be decoded into a loco.
	ErrInvalidRecord = errors.New("loco: invalid record")

	// ErrInvalidDirection is returned when a direction token is not recognised.
	ErrInvalidDirection = errors.New("loco: invalid direction")
)
