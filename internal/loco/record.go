package loco

import (
	"encoding/json"
	"fmt"
)

// RecordVersion is the wire shape version written by Loco.Record.
const RecordVersion = 1

// Record is the serialised form of a Loco.
//
// It carries only public fields. Decoding goes through FromRecord, which
// applies the same range rules as New and the setters.
type Record struct {
	Version   int       `json:"version"`
	Name      string    `json:"name"`
	Address   int       `json:"address"`
	Speed     int       `json:"speed"`
	Direction Direction `json:"direction"`
	Functions []bool    `json:"functions"`
}

// Record returns the current state of the loco as a wire record.
func (l *Loco) Record() Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fns := make([]bool, FunctionCount)
	copy(fns, l.functions[:])

	return Record{
		Version:   RecordVersion,
		Name:      l.name,
		Address:   l.address,
		Speed:     l.speed,
		Direction: l.direction,
		Functions: fns,
	}
}

// FromRecord builds a Loco from a wire record.
//
// Field values are re-validated rather than trusted:
//   - an out-of-range address becomes DefaultAddress
//   - an out-of-range speed is dropped, leaving 0
//   - function flags past MaxFunction are ignored; missing flags are off
//   - an empty direction means forward; direction tokens match case-insensitively
//
// A version other than 0 (unset) or RecordVersion, or an unknown direction,
// returns ErrInvalidRecord.
func FromRecord(rec Record) (*Loco, error) {
	if rec.Version != 0 && rec.Version != RecordVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidRecord, rec.Version)
	}

	direction := DirectionForward
	if rec.Direction != "" {
		d, err := ParseDirection(string(rec.Direction))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
		direction = d
	}

	l := New(rec.Name, rec.Address)
	l.SetSpeed(rec.Speed)
	l.SetDirection(direction)
	for i, state := range rec.Functions {
		l.SetFunction(MinFunction+i, state)
	}
	return l, nil
}

// MarshalJSON encodes the loco as its wire record.
func (l *Loco) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Record())
}

// DecodeRecord parses JSON into a Loco via FromRecord.
func DecodeRecord(data []byte) (*Loco, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return FromRecord(rec)
}
