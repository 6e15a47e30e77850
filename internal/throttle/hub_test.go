package throttle

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/trainlink-org/shared-lib/internal/loco"
)

// recorder collects throttles delivered to a listener or sink.
type recorder struct {
	mu  sync.Mutex
	got []loco.Throttle
}

func (r *recorder) cb(t loco.Throttle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, t)
}

func (r *recorder) ThrottleChanged(t loco.Throttle) { r.cb(t) }

func (r *recorder) last(t *testing.T) loco.Throttle {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.got) == 0 {
		t.Fatal("no throttle delivered")
	}
	return r.got[len(r.got)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

type countingRecorder struct {
	mu    sync.Mutex
	kinds map[string]int
}

func (c *countingRecorder) CommandApplied(transport, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kinds == nil {
		c.kinds = make(map[string]int)
	}
	c.kinds[transport+"/"+kind]++
}

type stateRecorder struct {
	addresses []int
}

func (s *stateRecorder) StateChanged(l *loco.Loco) {
	s.addresses = append(s.addresses, l.Address())
}

func newTestHub(t *testing.T) (*loco.Registry, *Hub) {
	t.Helper()
	registry := loco.NewRegistry()
	hub := NewHub(registry)
	registry.AddObserver(hub)
	return registry, hub
}

func TestHub_OnLoaded(t *testing.T) {
	_, hub := newTestHub(t)

	calls := 0
	hub.OnLoaded(func() { calls++ })
	hub.OnLoaded(func() { calls++ })
	if calls != 0 {
		t.Fatalf("OnLoaded ran %d callbacks before MarkLoaded", calls)
	}

	hub.MarkLoaded()
	if calls != 2 {
		t.Errorf("callbacks after MarkLoaded = %d, want 2", calls)
	}

	hub.MarkLoaded()
	if calls != 2 {
		t.Errorf("second MarkLoaded re-ran callbacks: %d", calls)
	}

	hub.OnLoaded(func() { calls++ })
	if calls != 3 {
		t.Errorf("OnLoaded after load did not run immediately: %d", calls)
	}
	if !hub.Loaded() {
		t.Error("Loaded() = false")
	}
}

func TestHub_ApplyNotifiesListeners(t *testing.T) {
	registry, hub := newTestHub(t)
	l := loco.New("Class 66", 66)
	registry.Add(l)

	r66, rOther := &recorder{}, &recorder{}
	hub.Listen(loco.ThrottleOf(l), 1, r66.cb)
	hub.Listen(loco.DisabledThrottle(3), 2, rOther.cb)

	speed := 40
	got, err := hub.Apply("test", loco.ByName("Class 66"), Command{Speed: &speed})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got.Speed != 40 || got.LocoAddress != 66 || got.Disabled {
		t.Errorf("Apply() = %+v", got)
	}
	if last := r66.last(t); last != got {
		t.Errorf("listener got %+v, want %+v", last, got)
	}
	if rOther.count() != 0 {
		t.Errorf("listener on another address received %d throttles", rOther.count())
	}
}

func TestHub_ApplyErrors(t *testing.T) {
	registry, hub := newTestHub(t)
	registry.Add(loco.New("Class 66", 66))

	speed := 10
	if _, err := hub.Apply("test", loco.ByAddress(4), Command{Speed: &speed}); !errors.Is(err, loco.ErrNotFound) {
		t.Errorf("Apply(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := hub.Apply("test", loco.ByAddress(66), Command{}); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("Apply(empty) error = %v, want ErrInvalidCommand", err)
	}
}

func TestHub_ApplyRecordsCommandsAndState(t *testing.T) {
	registry, hub := newTestHub(t)
	registry.Add(loco.New("Class 66", 66))

	counts := &countingRecorder{}
	states := &stateRecorder{}
	hub.SetCommandRecorder(counts)
	hub.AddStateObserver(states)

	speed, dir := 5, "forward"
	if _, err := hub.Apply("mqtt", loco.ByAddress(66), Command{Speed: &speed, Direction: &dir}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := map[string]int{"mqtt/speed": 1, "mqtt/direction": 1}
	if !reflect.DeepEqual(counts.kinds, want) {
		t.Errorf("recorded = %v, want %v", counts.kinds, want)
	}
	if !reflect.DeepEqual(states.addresses, []int{66}) {
		t.Errorf("state changes = %v, want [66]", states.addresses)
	}
}

func TestHub_UpdateRebindsListeners(t *testing.T) {
	registry, hub := newTestHub(t)
	l := loco.New("Class 66", 66)
	registry.Add(l)

	r := &recorder{}
	hub.Listen(loco.ThrottleOf(l), 1, r.cb)

	addr := 67
	registry.Update(loco.ByAddress(66), nil, &addr)

	last := r.last(t)
	if last.LocoAddress != 67 || last.Disabled {
		t.Errorf("after re-address listener got %+v, want live throttle at 67", last)
	}

	// Later changes at the new address still reach the listener.
	speed := 12
	if _, err := hub.Apply("test", loco.ByAddress(67), Command{Speed: &speed}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := r.last(t); got.Speed != 12 {
		t.Errorf("listener speed = %d, want 12", got.Speed)
	}
}

func TestHub_DeleteSendsDisabledThrottle(t *testing.T) {
	registry, hub := newTestHub(t)
	l := loco.New("Class 66", 66)
	registry.Add(l)

	r := &recorder{}
	hub.Listen(loco.ThrottleOf(l), 1, r.cb)

	registry.Delete(loco.ByName("Class 66"))

	if got := r.last(t); got != loco.DisabledThrottle(66) {
		t.Errorf("after delete listener got %+v, want disabled", got)
	}

	// Re-adding the address brings the listener back to life.
	registry.Add(loco.New("Class 66", 66))
	if got := r.last(t); got.Disabled {
		t.Errorf("after re-add listener got %+v, want enabled", got)
	}
}

func TestHub_SessionsAreIsolated(t *testing.T) {
	registry, hub := newTestHub(t)
	l := loco.New("Class 66", 66)
	registry.Add(l)

	a, b := hub.NewSession(), hub.NewSession()
	if a.ID() == b.ID() {
		t.Fatal("sessions share an ID")
	}

	ra, rb := &recorder{}, &recorder{}
	a.Listen(loco.ThrottleOf(l), 1, ra.cb)
	b.Listen(loco.ThrottleOf(l), 1, rb.cb)
	if hub.ListenerCount() != 2 {
		t.Fatalf("ListenerCount() = %d, want 2", hub.ListenerCount())
	}

	hub.Notify(66)
	if ra.count() != 1 || rb.count() != 1 {
		t.Errorf("deliveries = (%d, %d), want (1, 1)", ra.count(), rb.count())
	}

	a.Close()
	hub.Notify(66)
	if ra.count() != 1 || rb.count() != 2 {
		t.Errorf("after Close deliveries = (%d, %d), want (1, 2)", ra.count(), rb.count())
	}
	if hub.ListenerCount() != 1 {
		t.Errorf("ListenerCount() = %d, want 1", hub.ListenerCount())
	}
}

func TestHub_ListenReplacesAndForget(t *testing.T) {
	registry, hub := newTestHub(t)
	registry.Add(loco.New("A", 1))
	registry.Add(loco.New("B", 2))

	var reported []int
	hub.SetListenerReporter(func(n int) { reported = append(reported, n) })

	r := &recorder{}
	hub.Listen(loco.DisabledThrottle(1), 7, r.cb)
	hub.Listen(loco.DisabledThrottle(2), 7, r.cb)

	hub.Notify(1)
	if r.count() != 0 {
		t.Errorf("rebound throttle still received address 1")
	}
	hub.Notify(2)
	if r.count() != 1 {
		t.Errorf("deliveries = %d, want 1", r.count())
	}

	hub.Forget(7)
	hub.Notify(2)
	if r.count() != 1 {
		t.Errorf("forgotten listener still called")
	}
	if !reflect.DeepEqual(reported, []int{1, 1, 0}) {
		t.Errorf("reported counts = %v, want [1 1 0]", reported)
	}
}

func TestHub_Throttle(t *testing.T) {
	registry, hub := newTestHub(t)
	registry.Add(loco.New("Class 66", 66))

	if got, ok := hub.Throttle(loco.ByName("Class 66")); !ok || got.LocoAddress != 66 || got.Disabled {
		t.Errorf("Throttle(name) = %+v, %v", got, ok)
	}
	if got, ok := hub.Throttle(loco.ByAddress(5)); ok || got != loco.DisabledThrottle(5) {
		t.Errorf("Throttle(5) = %+v, %v", got, ok)
	}
	if got, ok := hub.Throttle(loco.ByName("nope")); ok || !got.Disabled || got.LocoAddress != NoAddress {
		t.Errorf("Throttle(nope) = %+v, %v", got, ok)
	}
}

func TestHub_UnknownNameIsNotBound(t *testing.T) {
	registry, hub := newTestHub(t)

	current, ok := hub.Throttle(loco.ByName("Flying Scotsman"))
	if ok || current.LocoAddress != NoAddress {
		t.Fatalf("Throttle(unknown name) = %+v, %v", current, ok)
	}

	r := &recorder{}
	hub.Listen(current, 1, r.cb)
	if hub.ListenerCount() != 0 {
		t.Fatalf("ListenerCount() = %d, want 0", hub.ListenerCount())
	}

	registry.Add(loco.New("Shunter", 0))
	if r.count() != 0 {
		t.Errorf("listener for unknown name received %+v", r.last(t))
	}
}

func TestHub_UpdateOntoOccupiedAddress(t *testing.T) {
	registry, hub := newTestHub(t)
	mover, occupant := loco.New("Class 66", 66), loco.New("Tank", 67)
	registry.Add(mover)
	registry.Add(occupant)

	rMover, rOccupant := &recorder{}, &recorder{}
	hub.Listen(loco.ThrottleOf(mover), 1, rMover.cb)
	hub.Listen(loco.ThrottleOf(occupant), 2, rOccupant.cb)

	addr := 67
	registry.Update(loco.ByAddress(66), nil, &addr)

	// The occupant's listener sees the eviction, then the loco now at 67.
	rOccupant.mu.Lock()
	got := append([]loco.Throttle(nil), rOccupant.got...)
	rOccupant.mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("occupant listener got %d throttles, want 2: %+v", len(got), got)
	}
	if got[0] != loco.DisabledThrottle(67) {
		t.Errorf("first = %+v, want disabled at 67", got[0])
	}
	if got[1].Name != "Class 66" || got[1].Disabled {
		t.Errorf("second = %+v, want Class 66 live at 67", got[1])
	}

	if last := rMover.last(t); last.LocoAddress != 67 || last.Name != "Class 66" {
		t.Errorf("mover listener got %+v", last)
	}
}

func TestHub_SinksSeeEveryChange(t *testing.T) {
	registry, hub := newTestHub(t)
	sink := &recorder{}
	hub.AddSink(sink)

	registry.Add(loco.New("Class 66", 66))
	addr := 67
	registry.Update(loco.ByAddress(66), nil, &addr)
	registry.Delete(loco.ByAddress(67))

	want := []loco.Throttle{
		{LocoAddress: 66, Name: "Class 66", Direction: loco.DirectionForward},
		loco.DisabledThrottle(66),
		{LocoAddress: 67, Name: "Class 66", Direction: loco.DirectionForward},
		loco.DisabledThrottle(67),
	}
	if !reflect.DeepEqual(sink.got, want) {
		t.Errorf("sink got %+v\nwant %+v", sink.got, want)
	}
}

func TestHub_ConcurrentApply(t *testing.T) {
	registry, hub := newTestHub(t)
	registry.Add(loco.New("Class 66", 66))

	r := &recorder{}
	hub.Listen(loco.DisabledThrottle(66), 1, r.cb)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(speed int) {
			defer wg.Done()
			hub.Apply("test", loco.ByAddress(66), Command{Speed: &speed}) //nolint:errcheck // loco exists
		}(i)
	}
	wg.Wait()

	if r.count() != 20 {
		t.Errorf("deliveries = %d, want 20", r.count())
	}
}
