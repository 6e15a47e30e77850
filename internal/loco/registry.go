package loco

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// describeHeader opens the Registry dump produced by String.
const describeHeader = "\nContents of LocoStore\n--------------------\n"

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives registry changes. Calls are made after the registry
// lock is released, in the order the changes happened.
type Observer interface {
	// LocoAdded is called after a loco is stored by Add or Restore.
	LocoAdded(l *Loco)
	// LocoUpdated is called after Update replaces old with repl.
	LocoUpdated(old, repl *Loco)
	// LocoDeleted is called after a loco leaves the registry, either via
	// Delete or because Add/Update evicted it.
	LocoDeleted(l *Loco)
}

// event is a pending observer notification collected under the lock.
type event struct {
	kind eventKind
	old  *Loco
	loco *Loco
}

type eventKind uint8

const (
	eventAdded eventKind = iota
	eventUpdated
	eventDeleted
)

// Registry is the dual-indexed in-memory loco store.
//
// byAddress is the primary index. byName maps a non-empty name to the
// address of the loco carrying it. Both maps change together under mu.
//
// All public methods are thread-safe.
type Registry struct {
	mu        sync.RWMutex
	byAddress map[int]*Loco
	byName    map[string]int

	obsMu     sync.RWMutex
	observers []Observer

	logger Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byAddress: make(map[int]*Loco),
		byName:    make(map[string]int),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// AddObserver registers o for change notifications.
func (r *Registry) AddObserver(o Observer) {
	r.obsMu.Lock()
	r.observers = append(r.observers, o)
	r.obsMu.Unlock()
}

// Add stores l, overwriting whatever is at its address.
//
// Any other loco already holding l's name is evicted from both indices so
// that every name resolves to the loco that carries it. Evictions are
// logged at warn level and reported to observers as deletions.
func (r *Registry) Add(l *Loco) {
	if l == nil {
		return
	}

	r.mu.Lock()
	events := r.insertLocked(l, nil)
	r.mu.Unlock()

	r.dispatch(events)
}

// Resolve returns the loco selected by id.
func (r *Registry) Resolve(id Identifier) (*Loco, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(id)
}

// Get returns the loco selected by id, or ErrNotFound.
func (r *Registry) Get(id Identifier) (*Loco, error) {
	l, ok := r.Resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l, nil
}

// Delete removes the loco selected by id from both indices.
// It returns false when id does not resolve.
func (r *Registry) Delete(id Identifier) bool {
	r.mu.Lock()
	l, ok := r.resolveLocked(id)
	if !ok {
		r.mu.Unlock()
		return false
	}
	removed := r.removeLocked(l)
	r.mu.Unlock()

	if removed {
		r.logger.Debug("loco deleted", "address", l.address, "name", l.name)
		r.dispatch([]event{{kind: eventDeleted, loco: l}})
	}
	return removed
}

// Update replaces the loco selected by id with a new instance.
//
// The replacement takes name and address from the arguments when they are
// non-nil, otherwise from the current loco. Speed and direction are copied
// across. Function flags are not: the replacement starts with every
// function off.
//
// An unresolved id is a no-op and returns (nil, false).
func (r *Registry) Update(id Identifier, name *string, address *int) (*Loco, bool) {
	r.mu.Lock()
	cur, ok := r.resolveLocked(id)
	if !ok {
		r.mu.Unlock()
		return nil, false
	}

	newName := cur.name
	if name != nil {
		newName = *name
	}
	newAddress := cur.address
	if address != nil {
		newAddress = *address
	}

	repl := New(newName, newAddress)
	speed, direction := cur.snapshot()
	repl.SetSpeed(speed)
	repl.SetDirection(direction)

	r.removeLocked(cur)
	events := r.insertLocked(repl, cur)
	r.mu.Unlock()

	r.logger.Debug("loco updated",
		"old_address", cur.address, "old_name", cur.name,
		"address", repl.address, "name", repl.name)
	r.dispatch(events)
	return repl, true
}

// ListAll returns a snapshot of every stored loco, ordered by address.
// Later registry changes do not affect the returned slice.
func (r *Registry) ListAll() []*Loco {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

// Len returns the number of stored locos.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddress)
}

// Records returns the wire record of every stored loco, ordered by address.
func (r *Registry) Records() []Record {
	locos := r.ListAll()
	records := make([]Record, len(locos))
	for i, l := range locos {
		records[i] = l.Record()
	}
	return records
}

// Restore replaces the registry contents with records.
//
// Every record is decoded first; if any is invalid the registry is left
// untouched and the error names the offending index. Records are then
// inserted in order under the usual Add rules.
func (r *Registry) Restore(records []Record) error {
	locos := make([]*Loco, 0, len(records))
	for i, rec := range records {
		l, err := FromRecord(rec)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		locos = append(locos, l)
	}

	r.mu.Lock()
	var events []event
	for _, old := range r.sortedLocked() {
		events = append(events, event{kind: eventDeleted, loco: old})
	}
	r.byAddress = make(map[int]*Loco, len(locos))
	r.byName = make(map[string]int, len(locos))
	for _, l := range locos {
		events = append(events, r.insertLocked(l, nil)...)
	}
	count := len(r.byAddress)
	r.mu.Unlock()

	r.logger.Info("loco registry restored", "records", len(records), "count", count)
	r.dispatch(events)
	return nil
}

// String renders every stored loco, one line per address in ascending order.
func (r *Registry) String() string {
	var b strings.Builder
	b.WriteString(describeHeader)
	for _, l := range r.ListAll() {
		fmt.Fprintf(&b, "%d => %s\n", l.address, l)
	}
	return b.String()
}

// resolveLocked looks id up. Caller must hold mu.
func (r *Registry) resolveLocked(id Identifier) (*Loco, bool) {
	address, isAddress := id.Address()
	if !isAddress {
		name, _ := id.Name()
		a, ok := r.byName[name]
		if !ok {
			return nil, false
		}
		address = a
	}
	l, ok := r.byAddress[address]
	return l, ok
}

// removeLocked drops l from both indices and reports whether its primary
// entry was present. The name entry is dropped only while it still points
// at l. Caller must hold mu.
func (r *Registry) removeLocked(l *Loco) bool {
	if r.byAddress[l.address] != l {
		return false
	}
	delete(r.byAddress, l.address)
	if l.name != "" {
		if a, ok := r.byName[l.name]; ok && a == l.address {
			delete(r.byName, l.name)
		}
	}
	return true
}

// insertLocked stores l, evicting any loco that shares its address or name.
// When replacing is non-nil the insert is reported as an update of it.
// Caller must hold mu.
func (r *Registry) insertLocked(l, replacing *Loco) []event {
	var events []event

	if prev, ok := r.byAddress[l.address]; ok && prev != l {
		r.removeLocked(prev)
		r.logger.Warn("loco evicted by address",
			"address", prev.address, "evicted_name", prev.name, "name", l.name)
		events = append(events, event{kind: eventDeleted, loco: prev})
	}
	if l.name != "" {
		if a, ok := r.byName[l.name]; ok && a != l.address {
			if prev, ok := r.byAddress[a]; ok {
				r.removeLocked(prev)
				r.logger.Warn("loco evicted by name",
					"name", prev.name, "evicted_address", prev.address, "address", l.address)
				events = append(events, event{kind: eventDeleted, loco: prev})
			} else {
				delete(r.byName, l.name)
			}
		}
		r.byName[l.name] = l.address
	}
	r.byAddress[l.address] = l

	if replacing != nil {
		return append(events, event{kind: eventUpdated, old: replacing, loco: l})
	}
	return append(events, event{kind: eventAdded, loco: l})
}

// sortedLocked returns stored locos ordered by address. Caller must hold mu.
func (r *Registry) sortedLocked() []*Loco {
	locos := make([]*Loco, 0, len(r.byAddress))
	for _, l := range r.byAddress {
		locos = append(locos, l)
	}
	sort.Slice(locos, func(i, j int) bool {
		return locos[i].address < locos[j].address
	})
	return locos
}

func (r *Registry) dispatch(events []event) {
	if len(events) == 0 {
		return
	}
	r.obsMu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.obsMu.RUnlock()

	for _, ev := range events {
		for _, o := range observers {
			switch ev.kind {
			case eventAdded:
				o.LocoAdded(ev.loco)
			case eventUpdated:
				o.LocoUpdated(ev.old, ev.loco)
			case eventDeleted:
				o.LocoDeleted(ev.loco)
			}
		}
	}
}
