package influxdb

import "github.com/trainlink-org/shared-lib/internal/loco"

// Writer is the subset of Client used by Recorder.
type Writer interface {
	WriteLocoState(l *loco.Loco)
	WriteLocoEvent(event string, address int, name string)
}

// Event names written to the loco_events measurement.
const (
	EventAdded   = "added"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Recorder turns registry changes and throttle state changes into
// telemetry points. It implements loco.Observer.
type Recorder struct {
	w Writer
}

// NewRecorder creates a Recorder writing through w.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{w: w}
}

// LocoAdded implements loco.Observer.
func (r *Recorder) LocoAdded(l *loco.Loco) {
	r.w.WriteLocoEvent(EventAdded, l.Address(), l.Name())
	r.w.WriteLocoState(l)
}

// LocoUpdated implements loco.Observer. The event is tagged with the old
// address so the history of a re-addressed loco stays joined.
func (r *Recorder) LocoUpdated(old, replacement *loco.Loco) {
	r.w.WriteLocoEvent(EventUpdated, old.Address(), replacement.Name())
	r.w.WriteLocoState(replacement)
}

// LocoDeleted implements loco.Observer.
func (r *Recorder) LocoDeleted(l *loco.Loco) {
	r.w.WriteLocoEvent(EventDeleted, l.Address(), l.Name())
}

// StateChanged records a throttle change (speed, direction or function).
func (r *Recorder) StateChanged(l *loco.Loco) {
	r.w.WriteLocoState(l)
}
