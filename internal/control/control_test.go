package control

import (
	"sync"
	"testing"

	"petcare-console/internal/telemetry"
)

type recorder struct {
	mu   sync.Mutex
	cmds []telemetry.ControlCommand
}

func (r *recorder) move(l, a float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, telemetry.ControlCommand{Linear: l, Angular: a})
}

func (r *recorder) snapshot() []telemetry.ControlCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telemetry.ControlCommand(nil), r.cmds...)
}

func TestHoldingWDispatchesOnce(t *testing.T) {
	rec := &recorder{}
	s := NewSampler(rec.move)

	s.KeyDown("W")
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	got := rec.snapshot()
	if len(got) != 1 || got[0] != (telemetry.ControlCommand{Linear: 1}) {
		t.Fatalf("expected single {1,0}, got %v", got)
	}

	s.KeyUp("w")
	s.Tick()
	s.Tick()
	got = rec.snapshot()
	if len(got) != 2 || !got[1].IsZero() {
		t.Fatalf("release should emit one stop, got %v", got)
	}
}

func TestIdleEmitsNothing(t *testing.T) {
	rec := &recorder{}
	s := NewSampler(rec.move)
	for i := 0; i < 5; i++ {
		if _, sent := s.Tick(); sent {
			t.Fatalf("idle tick should not emit")
		}
	}
}

func TestDerive(t *testing.T) {
	cases := []struct {
		keys []string
		want telemetry.ControlCommand
	}{
		{[]string{"w"}, telemetry.ControlCommand{Linear: 1}},
		{[]string{"s"}, telemetry.ControlCommand{Linear: -1}},
		{[]string{"a"}, telemetry.ControlCommand{Angular: 1}},
		{[]string{"d"}, telemetry.ControlCommand{Angular: -1}},
		{[]string{"w", "s"}, telemetry.ControlCommand{}},
		{[]string{"w", "d"}, telemetry.ControlCommand{Linear: 1, Angular: -1}},
		{[]string{"x"}, telemetry.ControlCommand{}},
	}
	for _, c := range cases {
		held := map[string]bool{}
		for _, k := range c.keys {
			held[k] = true
		}
		if got := Derive(held); got != c.want {
			t.Errorf("Derive(%v) = %v, want %v", c.keys, got, c.want)
		}
	}
}

func TestInputFocusIgnoresKeyDown(t *testing.T) {
	rec := &recorder{}
	s := NewSampler(rec.move)
	s.SetInputFocus(true)
	s.KeyDown("w")
	s.Tick()
	if len(rec.snapshot()) != 0 {
		t.Fatalf("keys typed into an input must not drive the robot")
	}

	s.SetInputFocus(false)
	s.KeyDown("a")
	s.Tick()
	s.SetInputFocus(true)
	s.KeyUp("a")
	s.Tick()
	got := rec.snapshot()
	if len(got) != 2 || !got[1].IsZero() {
		t.Fatalf("key up must be honored under focus, got %v", got)
	}
}

func TestJoystick(t *testing.T) {
	if got := Joystick(0, -1); got != (telemetry.ControlCommand{Linear: 1}) {
		t.Errorf("stick up = %v", got)
	}
	if got := Joystick(1, 0); got != (telemetry.ControlCommand{Angular: -1}) {
		t.Errorf("stick right = %v", got)
	}
	if got := Joystick(0, 3); got.Linear != -1 {
		t.Errorf("deflection should clamp, got %v", got)
	}
	if !Release().IsZero() {
		t.Errorf("release should stop")
	}
}
