package throttle

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/trainlink-org/shared-lib/internal/loco"
)

// Client is the boundary a throttle front end talks to.
type Client interface {
	// OnLoaded runs fn once the registry has been loaded, or immediately
	// if it already has been.
	OnLoaded(fn func())
	// Listen binds throttleID to the loco at t.LocoAddress. cb receives
	// every later throttle change for that loco. A throttle whose address
	// is out of range, such as one for an unknown name, is not bound.
	Listen(t loco.Throttle, throttleID int, cb func(loco.Throttle))
}

// Sink receives every throttle the hub emits, whoever is listening.
type Sink interface {
	ThrottleChanged(t loco.Throttle)
}

// StateObserver is told about live state changes (speed, direction,
// function) applied through the hub.
type StateObserver interface {
	StateChanged(l *loco.Loco)
}

// CommandRecorder counts applied commands.
type CommandRecorder interface {
	CommandApplied(transport, kind string)
}

// Logger is the logging interface used by the hub.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// listenerKey scopes throttle IDs to a session so two front ends can both
// use throttle 1.
type listenerKey struct {
	session    string
	throttleID int
}

type listener struct {
	address int
	cb      func(loco.Throttle)
}

// delivery is a callback invocation collected under the lock.
type delivery struct {
	cb func(loco.Throttle)
	t  loco.Throttle
}

// Hub routes throttle changes to listeners.
//
// Hub implements Client for the default session and loco.Observer so the
// registry can tell it about renames, re-addressing and deletions. All
// callbacks run outside the hub lock.
type Hub struct {
	registry *loco.Registry

	mu        sync.Mutex
	loaded    bool
	onLoaded  []func()
	listeners map[listenerKey]listener
	sinks     []Sink
	observers []StateObserver
	recorder  CommandRecorder
	reportFn  func(int)

	logger Logger
}

// NewHub creates a hub serving throttles from registry.
func NewHub(registry *loco.Registry) *Hub {
	return &Hub{
		registry:  registry,
		listeners: make(map[listenerKey]listener),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the hub.
func (h *Hub) SetLogger(logger Logger) {
	h.logger = logger
}

// AddSink registers s for every emitted throttle.
func (h *Hub) AddSink(s Sink) {
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
}

// AddStateObserver registers o for live state changes.
func (h *Hub) AddStateObserver(o StateObserver) {
	h.mu.Lock()
	h.observers = append(h.observers, o)
	h.mu.Unlock()
}

// SetCommandRecorder sets the recorder told about each applied command.
func (h *Hub) SetCommandRecorder(r CommandRecorder) {
	h.mu.Lock()
	h.recorder = r
	h.mu.Unlock()
}

// SetListenerReporter sets fn to receive the listener count whenever it
// changes.
func (h *Hub) SetListenerReporter(fn func(int)) {
	h.mu.Lock()
	h.reportFn = fn
	h.mu.Unlock()
}

// MarkLoaded flags the registry as loaded and runs pending OnLoaded
// callbacks. Later calls do nothing.
func (h *Hub) MarkLoaded() {
	h.mu.Lock()
	if h.loaded {
		h.mu.Unlock()
		return
	}
	h.loaded = true
	pending := h.onLoaded
	h.onLoaded = nil
	h.mu.Unlock()

	h.logger.Debug("throttle hub loaded", "callbacks", len(pending))
	for _, fn := range pending {
		fn()
	}
}

// Loaded reports whether MarkLoaded has been called.
func (h *Hub) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// OnLoaded implements Client.
func (h *Hub) OnLoaded(fn func()) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	if !h.loaded {
		h.onLoaded = append(h.onLoaded, fn)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	fn()
}

// Listen implements Client for the default session.
func (h *Hub) Listen(t loco.Throttle, throttleID int, cb func(loco.Throttle)) {
	h.listen("", t, throttleID, cb)
}

// Forget removes the default-session listener for throttleID.
func (h *Hub) Forget(throttleID int) {
	h.forget("", throttleID)
}

// ListenerCount returns the number of registered listeners.
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// NoAddress is the LocoAddress of a throttle for a name that does not
// resolve. Listen never binds it.
const NoAddress = -1

// Throttle returns the current throttle for id. When id does not resolve
// the throttle is disabled: at the requested address for ByAddress, or at
// NoAddress for ByName.
func (h *Hub) Throttle(id loco.Identifier) (loco.Throttle, bool) {
	if l, ok := h.registry.Resolve(id); ok {
		return loco.ThrottleOf(l), true
	}
	if address, ok := id.Address(); ok {
		return loco.DisabledThrottle(address), false
	}
	return loco.DisabledThrottle(NoAddress), false
}

// Notify sends the current throttle for address to its listeners and
// sinks. An address with no loco yields a disabled throttle.
func (h *Hub) Notify(address int) {
	l, ok := h.registry.Resolve(loco.ByAddress(address))
	if !ok {
		h.emit(loco.DisabledThrottle(address))
		return
	}

	h.mu.Lock()
	observers := append([]StateObserver(nil), h.observers...)
	h.mu.Unlock()
	for _, o := range observers {
		o.StateChanged(l)
	}

	h.emit(loco.ThrottleOf(l))
}

// Apply resolves id, applies cmd and notifies listeners. transport labels
// the command for the recorder.
func (h *Hub) Apply(transport string, id loco.Identifier, cmd Command) (loco.Throttle, error) {
	if err := cmd.Validate(); err != nil {
		return loco.Throttle{}, err
	}
	l, err := h.registry.Get(id)
	if err != nil {
		return loco.Throttle{}, err
	}

	cmd.applyTo(l)

	h.mu.Lock()
	recorder := h.recorder
	h.mu.Unlock()
	if recorder != nil {
		for _, kind := range cmd.Kinds() {
			recorder.CommandApplied(transport, kind)
		}
	}

	h.logger.Debug("throttle command applied",
		"transport", transport, "address", l.Address(), "kinds", cmd.Kinds())
	h.Notify(l.Address())
	return loco.ThrottleOf(l), nil
}

// LocoAdded implements loco.Observer. Listeners already bound to the
// address become live.
func (h *Hub) LocoAdded(l *loco.Loco) {
	h.emit(loco.ThrottleOf(l))
}

// LocoUpdated implements loco.Observer. Listeners bound to the old address
// follow the loco to its new one.
//
// Listeners are bound to addresses, not locos. When the new address was
// occupied, the registry evicts the occupant first, so its listeners get a
// disabled throttle and then track the incoming loco.
func (h *Hub) LocoUpdated(old, replacement *loco.Loco) {
	if old.Address() != replacement.Address() {
		h.mu.Lock()
		for key, ln := range h.listeners {
			if ln.address == old.Address() {
				ln.address = replacement.Address()
				h.listeners[key] = ln
			}
		}
		h.mu.Unlock()

		h.logger.Debug("throttle listeners rebound",
			"old_address", old.Address(), "address", replacement.Address())
		h.emitSinks(loco.DisabledThrottle(old.Address()))
	}
	h.emit(loco.ThrottleOf(replacement))
}

// LocoDeleted implements loco.Observer. Listeners stay bound and receive a
// disabled throttle.
func (h *Hub) LocoDeleted(l *loco.Loco) {
	h.emit(loco.DisabledThrottle(l.Address()))
}

// NewSession returns a Client whose throttle IDs do not collide with any
// other session's.
func (h *Hub) NewSession() *Session {
	return &Session{hub: h, id: uuid.NewString()}
}

func (h *Hub) listen(session string, t loco.Throttle, throttleID int, cb func(loco.Throttle)) {
	if cb == nil {
		return
	}
	if t.LocoAddress < loco.MinAddress || t.LocoAddress > loco.MaxAddress {
		h.logger.Debug("throttle not bound: no loco address",
			"session", session, "throttle_id", throttleID, "name", t.Name)
		return
	}
	h.mu.Lock()
	h.listeners[listenerKey{session: session, throttleID: throttleID}] = listener{
		address: t.LocoAddress,
		cb:      cb,
	}
	count, report := len(h.listeners), h.reportFn
	h.mu.Unlock()

	h.logger.Debug("throttle listening",
		"session", session, "throttle_id", throttleID, "address", t.LocoAddress)
	if report != nil {
		report(count)
	}
}

func (h *Hub) forget(session string, throttleID int) {
	h.mu.Lock()
	delete(h.listeners, listenerKey{session: session, throttleID: throttleID})
	count, report := len(h.listeners), h.reportFn
	h.mu.Unlock()

	if report != nil {
		report(count)
	}
}

func (h *Hub) forgetSession(session string) {
	h.mu.Lock()
	for key := range h.listeners {
		if key.session == session {
			delete(h.listeners, key)
		}
	}
	count, report := len(h.listeners), h.reportFn
	h.mu.Unlock()

	if report != nil {
		report(count)
	}
}

// emit delivers t to every listener bound to its address and to the sinks.
func (h *Hub) emit(t loco.Throttle) {
	h.mu.Lock()
	var deliveries []delivery
	keys := make([]listenerKey, 0, len(h.listeners))
	for key, ln := range h.listeners {
		if ln.address == t.LocoAddress {
			keys = append(keys, key)
		}
	}
	sortKeys(keys)
	for _, key := range keys {
		deliveries = append(deliveries, delivery{cb: h.listeners[key].cb, t: t})
	}
	h.mu.Unlock()

	for _, d := range deliveries {
		d.cb(d.t)
	}
	h.emitSinks(t)
}

func (h *Hub) emitSinks(t loco.Throttle) {
	h.mu.Lock()
	sinks := append([]Sink(nil), h.sinks...)
	h.mu.Unlock()

	for _, s := range sinks {
		s.ThrottleChanged(t)
	}
}

// sortKeys orders listeners by session then throttle ID so delivery order
// is stable.
func sortKeys(keys []listenerKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].session != keys[j].session {
			return keys[i].session < keys[j].session
		}
		return keys[i].throttleID < keys[j].throttleID
	})
}

// Session is a Client with its own throttle ID space, used for one
// connected front end.
type Session struct {
	hub *Hub
	id  string
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// OnLoaded implements Client.
func (s *Session) OnLoaded(fn func()) {
	s.hub.OnLoaded(fn)
}

// Listen implements Client.
func (s *Session) Listen(t loco.Throttle, throttleID int, cb func(loco.Throttle)) {
	s.hub.listen(s.id, t, throttleID, cb)
}

// Forget removes the listener for throttleID.
func (s *Session) Forget(throttleID int) {
	s.hub.forget(s.id, throttleID)
}

// Close removes every listener registered through the session.
func (s *Session) Close() {
	s.hub.forgetSession(s.id)
}

// String implements fmt.Stringer.
func (s *Session) String() string {
	return fmt.Sprintf("session %s", s.id)
}
