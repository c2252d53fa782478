// Package control turns keyboard and joystick input into drive commands.
package control

import (
	"strings"
	"sync"
	"time"

	"petcare-console/internal/telemetry"
)

// DefaultInterval is the keyboard sampling period (20 Hz).
const DefaultInterval = 50 * time.Millisecond

// MoveFunc receives a command whenever the sampled input changes.
type MoveFunc func(linear, angular float64)

// Sampler tracks held keys and emits a command on each tick where the
// derived (linear, angular) pair differs from the last one emitted.
type Sampler struct {
	move MoveFunc

	mu    sync.Mutex
	held  map[string]bool
	focus bool
	last  telemetry.ControlCommand
}

// NewSampler returns a sampler with no keys held; the last emitted command
// starts as a stop, so idling emits nothing.
func NewSampler(move MoveFunc) *Sampler {
	return &Sampler{move: move, held: make(map[string]bool)}
}

// KeyDown marks key held. Ignored while a text input has focus.
func (s *Sampler) KeyDown(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focus {
		return
	}
	s.held[strings.ToLower(key)] = true
}

// KeyUp releases key. Always honored so a key pressed before focus moved
// to an input can still be released.
func (s *Sampler) KeyUp(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, strings.ToLower(key))
}

// ReleaseAll forgets every held key.
func (s *Sampler) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.held)
}

// SetInputFocus tells the sampler whether a text input owns the keyboard.
func (s *Sampler) SetInputFocus(focused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = focused
}

// Held reports whether key is currently held.
func (s *Sampler) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[strings.ToLower(key)]
}

// Derive maps held keys to a command: w/s drive, a/d turn.
func Derive(held map[string]bool) telemetry.ControlCommand {
	var linear, angular float64
	if held["w"] {
		linear++
	}
	if held["s"] {
		linear--
	}
	if held["a"] {
		angular++
	}
	if held["d"] {
		angular--
	}
	return telemetry.NewCommand(linear, angular)
}

// Tick samples the keys once. It returns the derived command and whether it
// was emitted.
func (s *Sampler) Tick() (telemetry.ControlCommand, bool) {
	s.mu.Lock()
	cmd := Derive(s.held)
	if cmd == s.last {
		s.mu.Unlock()
		return cmd, false
	}
	s.last = cmd
	s.mu.Unlock()

	if s.move != nil {
		s.move(cmd.Linear, cmd.Angular)
	}
	return cmd, true
}
