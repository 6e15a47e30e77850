package loco

// Throttle is the client-facing view of a loco that transports deliver to
// throttle listeners (UI sliders, handsets).
type Throttle struct {
	LocoAddress    int       `json:"locoAddress"`
	Name           string    `json:"name"`
	Speed          int       `json:"speed"`
	Direction      Direction `json:"direction"`
	SliderDisabled bool      `json:"sliderDisabled"`
	Disabled       bool      `json:"disabled"`
}

// ThrottleOf builds the throttle view of a stored loco.
// The speed slider is disabled while the loco is stopped.
func ThrottleOf(l *Loco) Throttle {
	speed, direction := l.snapshot()
	return Throttle{
		LocoAddress:    l.address,
		Name:           l.name,
		Speed:          speed,
		Direction:      direction,
		SliderDisabled: direction == DirectionStopped,
	}
}

// DisabledThrottle is sent for an address that no longer resolves.
func DisabledThrottle(address int) Throttle {
	return Throttle{
		LocoAddress:    address,
		Direction:      DirectionStopped,
		SliderDisabled: true,
		Disabled:       true,
	}
}
