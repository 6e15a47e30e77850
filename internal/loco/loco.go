package loco

import (
	"fmt"
	"sync"
)

// Loco represents one controllable locomotive.
//
// Name and address are fixed when the loco is built. Renaming or
// re-addressing is done by the Registry, which replaces the instance.
type Loco struct {
	name    string
	address int

	mu        sync.RWMutex
	speed     int
	direction Direction
	functions [FunctionCount]bool
}

// New returns a loco with the given name and address.
//
// An address outside [MinAddress, MaxAddress] is replaced by DefaultAddress.
// Speed starts at 0, direction at forward, and every function flag is off.
func New(name string, address int) *Loco {
	if !validAddress(address) {
		address = DefaultAddress
	}
	return &Loco{
		name:      name,
		address:   address,
		direction: DirectionForward,
	}
}

// NewDefault returns an unnamed loco at DefaultAddress.
func NewDefault() *Loco {
	return New("", DefaultAddress)
}

// Name returns the loco name.
func (l *Loco) Name() string { return l.name }

// Address returns the loco address.
func (l *Loco) Address() int { return l.address }

// Speed returns the current speed step.
func (l *Loco) Speed() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.speed
}

// SetSpeed sets the speed step if it lies in [MinSpeed, MaxSpeed].
// Any other value is ignored and the previous speed is kept.
func (l *Loco) SetSpeed(speed int) {
	if !validSpeed(speed) {
		return
	}
	l.mu.Lock()
	l.speed = speed
	l.mu.Unlock()
}

// Direction returns the current direction.
func (l *Loco) Direction() Direction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.direction
}

// SetDirection sets the direction. Values that are not one of the Direction
// constants are ignored.
func (l *Loco) SetDirection(d Direction) {
	if !d.Valid() {
		return
	}
	l.mu.Lock()
	l.direction = d
	l.mu.Unlock()
}

// Drive sets speed and direction under one lock, so readers never see one
// without the other. A nil argument, an out-of-range speed or an unknown
// direction leaves that field unchanged.
func (l *Loco) Drive(speed *int, d *Direction) {
	setSpeed := speed != nil && validSpeed(*speed)
	setDirection := d != nil && d.Valid()
	if !setSpeed && !setDirection {
		return
	}
	l.mu.Lock()
	if setSpeed {
		l.speed = *speed
	}
	if setDirection {
		l.direction = *d
	}
	l.mu.Unlock()
}

// Function returns the state of function flag i, or false if i is out of range.
func (l *Loco) Function(i int) bool {
	if !validFunction(i) {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.functions[i-MinFunction]
}

// SetFunction sets function flag i. Out-of-range indices are ignored.
func (l *Loco) SetFunction(i int, state bool) {
	if !validFunction(i) {
		return
	}
	l.mu.Lock()
	l.functions[i-MinFunction] = state
	l.mu.Unlock()
}

// Functions returns a copy of all function flags, indexed from MinFunction.
func (l *Loco) Functions() [FunctionCount]bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.functions
}

// String renders the loco as "<name> <address> - <speed> <Direction>".
func (l *Loco) String() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fmt.Sprintf("%s %d - %d %s", l.name, l.address, l.speed, l.direction.Label())
}

// snapshot returns speed and direction under one read lock.
func (l *Loco) snapshot() (int, Direction) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.speed, l.direction
}
