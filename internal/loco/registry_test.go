package loco

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// recordingObserver captures registry notifications in order.
type recordingObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *recordingObserver) LocoAdded(l *Loco) {
	o.add(fmt.Sprintf("added %d %s", l.Address(), l.Name()))
}

func (o *recordingObserver) LocoUpdated(old, repl *Loco) {
	o.add(fmt.Sprintf("updated %d %s -> %d %s", old.Address(), old.Name(), repl.Address(), repl.Name()))
}

func (o *recordingObserver) LocoDeleted(l *Loco) {
	o.add(fmt.Sprintf("deleted %d %s", l.Address(), l.Name()))
}

func (o *recordingObserver) add(s string) {
	o.mu.Lock()
	o.events = append(o.events, s)
	o.mu.Unlock()
}

func (o *recordingObserver) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.events...)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// assertIndexConsistent checks that every name entry points at a loco carrying that name.
func assertIndexConsistent(t *testing.T, r *Registry) {
	t.Helper()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, address := range r.byName {
		l, ok := r.byAddress[address]
		if !ok {
			t.Errorf("name %q points at empty address %d", name, address)
			continue
		}
		if l.name != name {
			t.Errorf("name %q points at %d which carries %q", name, address, l.name)
		}
	}
}

func TestRegistry_AddResolve(t *testing.T) {
	r := NewRegistry()
	l := New("Test", 5)
	r.Add(l)

	byAddr, ok := r.Resolve(ByAddress(5))
	if !ok || byAddr != l {
		t.Fatalf("Resolve(ByAddress(5)) = %v, %v", byAddr, ok)
	}
	byName, ok := r.Resolve(ByName("Test"))
	if !ok || byName != l {
		t.Fatalf("Resolve(ByName(Test)) = %v, %v", byName, ok)
	}

	if _, ok := r.Resolve(ByAddress(6)); ok {
		t.Error("Resolve(ByAddress(6)) succeeded on empty slot")
	}
	if _, ok := r.Resolve(ByName("Nope")); ok {
		t.Error("Resolve(ByName(Nope)) succeeded")
	}
	assertIndexConsistent(t, r)
}

func TestRegistry_AddNil(t *testing.T) {
	r := NewRegistry()
	r.Add(nil)
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Add(New("Test", 5))

	l, err := r.Get(ByName("Test"))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if l.Address() != 5 {
		t.Errorf("Address() = %d, want 5", l.Address())
	}

	_, err = r.Get(ByAddress(99))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(99) error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_Delete(t *testing.T) {
	tests := []struct {
		name string
		id   Identifier
	}{
		{"by address", ByAddress(5)},
		{"by name", ByName("Test")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			if r.Delete(tt.id) {
				t.Fatal("Delete() on empty registry returned true")
			}

			r.Add(New("Test", 5))
			if !r.Delete(tt.id) {
				t.Fatal("Delete() after Add returned false")
			}

			if _, err := r.Get(ByAddress(5)); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(ByAddress) after delete error = %v", err)
			}
			if _, err := r.Get(ByName("Test")); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(ByName) after delete error = %v", err)
			}
			if r.Delete(tt.id) {
				t.Error("second Delete() returned true")
			}
		})
	}
}

func TestRegistry_DeleteUnnamed(t *testing.T) {
	r := NewRegistry()
	r.Add(New("", 25))
	if !r.Delete(ByAddress(25)) {
		t.Error("Delete() of unnamed loco returned false")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_UpdateNoChanges(t *testing.T) {
	r := NewRegistry()
	orig := New("", 25)
	orig.SetSpeed(40)
	orig.SetDirection(DirectionReverse)
	orig.SetFunction(0, true)
	orig.SetFunction(12, true)
	r.Add(orig)

	repl, ok := r.Update(ByAddress(25), nil, nil)
	if !ok {
		t.Fatal("Update() returned false")
	}

	got, ok := r.Resolve(ByAddress(25))
	if !ok || got != repl {
		t.Fatalf("Resolve(25) = %v, %v; want replacement", got, ok)
	}
	if got.Name() != orig.Name() || got.Address() != orig.Address() ||
		got.Speed() != orig.Speed() || got.Direction() != orig.Direction() {
		t.Errorf("replacement %q differs from original %q", got, orig)
	}
	if got.String() != orig.String() {
		t.Errorf("String() = %q, want %q", got.String(), orig.String())
	}
	for i, on := range got.Functions() {
		if on {
			t.Errorf("function %d carried over", i)
		}
	}
}

func TestRegistry_UpdateRenameReaddress(t *testing.T) {
	r := NewRegistry()
	r.Add(New("", 25))

	if _, ok := r.Update(ByAddress(25), nil, nil); !ok {
		t.Fatal("first Update() returned false")
	}
	repl, ok := r.Update(ByAddress(25), strPtr("UpdateTest"), intPtr(26))
	if !ok {
		t.Fatal("Update() returned false")
	}
	if repl.Name() != "UpdateTest" || repl.Address() != 26 {
		t.Errorf("replacement = %q", repl)
	}

	got, ok := r.Resolve(ByAddress(26))
	if !ok || got.Name() != "UpdateTest" {
		t.Errorf("Resolve(26) = %v, %v", got, ok)
	}
	if _, ok := r.Resolve(ByName("UpdateTest")); !ok {
		t.Error("Resolve(ByName(UpdateTest)) failed")
	}
	if _, ok := r.Resolve(ByAddress(25)); ok {
		t.Error("Resolve(25) still succeeds")
	}
	assertIndexConsistent(t, r)
}

func TestRegistry_UpdateByNameDropsOldName(t *testing.T) {
	r := NewRegistry()
	r.Add(New("Old", 10))

	if _, ok := r.Update(ByName("Old"), strPtr("New"), nil); !ok {
		t.Fatal("Update() returned false")
	}
	if _, ok := r.Resolve(ByName("Old")); ok {
		t.Error("old name still resolves")
	}
	l, ok := r.Resolve(ByName("New"))
	if !ok || l.Address() != 10 {
		t.Errorf("Resolve(New) = %v, %v", l, ok)
	}
	assertIndexConsistent(t, r)
}

func TestRegistry_UpdateInvalidAddressNormalises(t *testing.T) {
	r := NewRegistry()
	r.Add(New("A", 10))

	repl, ok := r.Update(ByAddress(10), nil, intPtr(-5))
	if !ok {
		t.Fatal("Update() returned false")
	}
	if repl.Address() != DefaultAddress {
		t.Errorf("Address() = %d, want %d", repl.Address(), DefaultAddress)
	}
	if _, ok := r.Resolve(ByName("A")); !ok {
		t.Error("name lost after re-address")
	}
}

func TestRegistry_UpdateUnresolvedIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Add(New("A", 1))
	obs := &recordingObserver{}
	r.AddObserver(obs)

	if l, ok := r.Update(ByAddress(2), strPtr("B"), nil); ok || l != nil {
		t.Errorf("Update() = %v, %v; want nil, false", l, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if len(obs.list()) != 0 {
		t.Errorf("observer saw %v", obs.list())
	}
}

func TestRegistry_DuplicateNameEvicts(t *testing.T) {
	r := NewRegistry()
	obs := &recordingObserver{}
	r.AddObserver(obs)

	r.Add(New("Shunter", 8))
	r.Add(New("Shunter", 9))

	if _, ok := r.Resolve(ByAddress(8)); ok {
		t.Error("first Shunter still stored at 8")
	}
	l, ok := r.Resolve(ByName("Shunter"))
	if !ok || l.Address() != 9 {
		t.Errorf("Resolve(Shunter) = %v, %v; want address 9", l, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	assertIndexConsistent(t, r)

	want := []string{"added 8 Shunter", "deleted 8 Shunter", "added 9 Shunter"}
	assertEvents(t, obs.list(), want)
}

func TestRegistry_DuplicateAddressEvicts(t *testing.T) {
	r := NewRegistry()
	r.Add(New("First", 8))
	r.Add(New("Second", 8))

	if _, ok := r.Resolve(ByName("First")); ok {
		t.Error("overwritten loco still resolves by name")
	}
	l, ok := r.Resolve(ByAddress(8))
	if !ok || l.Name() != "Second" {
		t.Errorf("Resolve(8) = %v, %v", l, ok)
	}
	assertIndexConsistent(t, r)
}

func TestRegistry_UpdateOntoOccupiedAddress(t *testing.T) {
	r := NewRegistry()
	r.Add(New("A", 1))
	r.Add(New("B", 2))

	if _, ok := r.Update(ByName("A"), nil, intPtr(2)); !ok {
		t.Fatal("Update() returned false")
	}

	if _, ok := r.Resolve(ByName("B")); ok {
		t.Error("B still resolves after being overwritten")
	}
	l, ok := r.Resolve(ByAddress(2))
	if !ok || l.Name() != "A" {
		t.Errorf("Resolve(2) = %v, %v", l, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	assertIndexConsistent(t, r)
}

func TestRegistry_UnnamedLocosCoexist(t *testing.T) {
	r := NewRegistry()
	r.Add(New("", 3))
	r.Add(New("", 4))

	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if _, ok := r.Resolve(ByName("")); ok {
		t.Error("empty name resolved")
	}
}

func TestRegistry_ReAddSameInstance(t *testing.T) {
	r := NewRegistry()
	obs := &recordingObserver{}
	r.AddObserver(obs)

	l := New("A", 1)
	r.Add(l)
	r.Add(l)

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	assertEvents(t, obs.list(), []string{"added 1 A", "added 1 A"})
}

func TestRegistry_ListAllSnapshot(t *testing.T) {
	r := NewRegistry()
	for _, a := range []int{30, 10, 20} {
		r.Add(New(fmt.Sprintf("L%d", a), a))
	}

	list := r.ListAll()
	if len(list) != 3 {
		t.Fatalf("ListAll() len = %d, want 3", len(list))
	}
	for i, want := range []int{10, 20, 30} {
		if list[i].Address() != want {
			t.Errorf("list[%d].Address() = %d, want %d", i, list[i].Address(), want)
		}
	}

	r.Delete(ByAddress(20))
	r.Add(New("L40", 40))
	if len(list) != 3 || list[1].Address() != 20 {
		t.Error("snapshot changed after registry mutation")
	}
}

func TestRegistry_String(t *testing.T) {
	r := NewRegistry()
	a := New("Test", 5)
	a.SetSpeed(10)
	r.Add(a)
	b := New("Shunter", 2)
	b.SetDirection(DirectionStopped)
	r.Add(b)

	want := "\nContents of LocoStore\n--------------------\n" +
		"2 => Shunter 2 - 0 Stopped\n" +
		"5 => Test 5 - 10 Forward\n"
	if got := r.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	empty := NewRegistry()
	if got := empty.String(); got != describeHeader {
		t.Errorf("empty String() = %q", got)
	}
}

func TestRegistry_RecordsRestore(t *testing.T) {
	src := NewRegistry()
	a := New("A", 1)
	a.SetSpeed(20)
	a.SetFunction(5, true)
	src.Add(a)
	src.Add(New("B", 2))

	dst := NewRegistry()
	dst.Add(New("Stale", 99))
	obs := &recordingObserver{}
	dst.AddObserver(obs)

	if err := dst.Restore(src.Records()); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if dst.String() != src.String() {
		t.Errorf("restored String() = %q, want %q", dst.String(), src.String())
	}
	if _, ok := dst.Resolve(ByName("Stale")); ok {
		t.Error("Restore kept previous contents")
	}
	l, _ := dst.Resolve(ByName("A"))
	if l == nil || !l.Function(5) {
		t.Error("function flag not restored")
	}
	assertEvents(t, obs.list(), []string{"deleted 99 Stale", "added 1 A", "added 2 B"})
}

func TestRegistry_RestoreInvalidLeavesContents(t *testing.T) {
	r := NewRegistry()
	r.Add(New("Keep", 1))

	err := r.Restore([]Record{
		{Name: "Good", Address: 2},
		{Name: "Bad", Address: 3, Direction: "sideways"},
	})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("Restore() error = %v, want ErrInvalidRecord", err)
	}
	if _, ok := r.Resolve(ByName("Keep")); !ok || r.Len() != 1 {
		t.Error("registry changed by failed Restore")
	}
}

func TestRegistry_ObserverUpdateAndDelete(t *testing.T) {
	r := NewRegistry()
	r.Add(New("A", 1))
	obs := &recordingObserver{}
	r.AddObserver(obs)

	r.Update(ByAddress(1), strPtr("B"), intPtr(2))
	r.Delete(ByName("B"))

	assertEvents(t, obs.list(), []string{"updated 1 A -> 2 B", "deleted 2 B"})
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				address := w*100 + i
				name := fmt.Sprintf("w%d-%d", w, i)
				r.Add(New(name, address))
				r.Resolve(ByName(name))
				if i%3 == 0 {
					r.Update(ByAddress(address), strPtr(name+"x"), nil)
				}
				if i%5 == 0 {
					r.Delete(ByAddress(address))
				}
				_ = r.ListAll()
			}
		}(w)
	}
	wg.Wait()

	assertIndexConsistent(t, r)
}

func assertEvents(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, got[i], want[i])
		}
	}
}
