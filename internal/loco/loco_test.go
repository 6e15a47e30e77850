package loco

import (
	"errors"
	"sync"
	"testing"
)

func TestNew_AddressNormalisation(t *testing.T) {
	tests := []struct {
		name    string
		address int
		want    int
	}{
		{"lower bound", 0, 0},
		{"upper bound", 10293, 10293},
		{"typical", 25, 25},
		{"negative", -1, DefaultAddress},
		{"just above max", 10294, DefaultAddress},
		{"far above max", 1 << 20, DefaultAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New("x", tt.address)
			if got := l.Address(); got != tt.want {
				t.Errorf("Address() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNew_InitialState(t *testing.T) {
	l := New("Class 66", 66)

	if l.Name() != "Class 66" {
		t.Errorf("Name() = %q, want %q", l.Name(), "Class 66")
	}
	if l.Speed() != 0 {
		t.Errorf("Speed() = %d, want 0", l.Speed())
	}
	if l.Direction() != DirectionForward {
		t.Errorf("Direction() = %q, want %q", l.Direction(), DirectionForward)
	}
	for i, on := range l.Functions() {
		if on {
			t.Errorf("function %d on at construction", i)
		}
	}
}

func TestNewDefault(t *testing.T) {
	l := NewDefault()
	if l.Name() != "" || l.Address() != DefaultAddress {
		t.Errorf("NewDefault() = (%q, %d), want (\"\", %d)", l.Name(), l.Address(), DefaultAddress)
	}
}

func TestSetSpeed_FailSoft(t *testing.T) {
	l := New("Test", 5)

	l.SetSpeed(100)
	if l.Speed() != 100 {
		t.Fatalf("Speed() = %d, want 100", l.Speed())
	}

	for _, bad := range []int{200, 127, -1} {
		l.SetSpeed(bad)
		if l.Speed() != 100 {
			t.Errorf("after SetSpeed(%d) Speed() = %d, want 100", bad, l.Speed())
		}
	}

	l.SetSpeed(MaxSpeed)
	if l.Speed() != MaxSpeed {
		t.Errorf("Speed() = %d, want %d", l.Speed(), MaxSpeed)
	}
	l.SetSpeed(MinSpeed)
	if l.Speed() != MinSpeed {
		t.Errorf("Speed() = %d, want %d", l.Speed(), MinSpeed)
	}
}

func TestSetDirection(t *testing.T) {
	l := New("Test", 5)

	for _, d := range AllDirections() {
		l.SetDirection(d)
		if l.Direction() != d {
			t.Errorf("Direction() = %q, want %q", l.Direction(), d)
		}
	}

	l.SetDirection(DirectionReverse)
	l.SetDirection(Direction("sideways"))
	if l.Direction() != DirectionReverse {
		t.Errorf("invalid direction was applied: %q", l.Direction())
	}
}

func TestFunctions_Range(t *testing.T) {
	l := New("Test", 5)

	l.SetFunction(0, true)
	l.SetFunction(28, true)
	if !l.Function(0) || !l.Function(28) {
		t.Error("in-range functions not set")
	}

	for _, i := range []int{-1, 29, 100} {
		l.SetFunction(i, true)
		if l.Function(i) {
			t.Errorf("Function(%d) = true, want false", i)
		}
	}

	fns := l.Functions()
	for i, on := range fns {
		want := i == 0 || i == 28
		if on != want {
			t.Errorf("function %d = %v, want %v", i, on, want)
		}
	}

	l.SetFunction(0, false)
	if l.Function(0) {
		t.Error("Function(0) still on after clearing")
	}
}

func TestLocoString(t *testing.T) {
	l := New("Test", 5)
	l.SetSpeed(100)
	l.SetSpeed(200)
	l.SetDirection(DirectionStopped)
	if l.Direction() != DirectionStopped {
		t.Fatalf("Direction() = %q, want stopped", l.Direction())
	}

	l.SetSpeed(10)
	l.SetDirection(DirectionForward)
	if got, want := l.String(), "Test 5 - 10 Forward"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	l.SetDirection(DirectionReverse)
	if got, want := l.String(), "Test 5 - 10 Reverse"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"forward", DirectionForward, false},
		{"Reverse", DirectionReverse, false},
		{" STOPPED ", DirectionStopped, false},
		{"", "", true},
		{"backwards", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDirection) {
					t.Errorf("ParseDirection(%q) error = %v, want ErrInvalidDirection", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDirection(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDirection(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoco_ConcurrentAccess(t *testing.T) {
	l := New("Test", 5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				l.SetSpeed(j % (MaxSpeed + 1))
				l.SetFunction(n, j%2 == 0)
				_ = l.String()
				_ = l.Record()
			}
		}(i)
	}
	wg.Wait()

	if s := l.Speed(); s < MinSpeed || s > MaxSpeed {
		t.Errorf("Speed() = %d out of range", s)
	}
}

func TestDrive(t *testing.T) {
	speed, reverse, bad, unknown := 40, DirectionReverse, 500, Direction("sideways")

	tests := []struct {
		name      string
		speed     *int
		direction *Direction
		wantSpeed int
		wantDir   Direction
	}{
		{"both", &speed, &reverse, 40, DirectionReverse},
		{"speed only", &speed, nil, 40, DirectionForward},
		{"direction only", nil, &reverse, 0, DirectionReverse},
		{"out-of-range speed kept apart", &bad, &reverse, 0, DirectionReverse},
		{"unknown direction kept apart", &speed, &unknown, 40, DirectionForward},
		{"nothing", nil, nil, 0, DirectionForward},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New("Class 66", 66)
			l.Drive(tt.speed, tt.direction)
			if l.Speed() != tt.wantSpeed || l.Direction() != tt.wantDir {
				t.Errorf("state = (%d, %v), want (%d, %v)", l.Speed(), l.Direction(), tt.wantSpeed, tt.wantDir)
			}
		})
	}
}

func TestDrive_ReadersSeeMatchingPairs(t *testing.T) {
	l := New("Class 66", 66)
	stop, run := 0, 100
	stopped, forward := DirectionStopped, DirectionForward
	l.Drive(&stop, &stopped)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			if i%2 == 0 {
				l.Drive(&run, &forward)
			} else {
				l.Drive(&stop, &stopped)
			}
		}
	}()

	for n := 0; n < 2000; n++ {
		speed, direction := l.snapshot()
		if (speed == 0) != (direction == DirectionStopped) {
			t.Errorf("torn state: speed %d with direction %v", speed, direction)
			break
		}
	}
	close(done)
	wg.Wait()
}
