package robot

import (
	"encoding/json"
	"errors"
	"fmt"

	"petcare-console/internal/bus"
	"petcare-console/internal/metrics"
	"petcare-console/internal/notify"
	"petcare-console/internal/telemetry"
)

// ErrEmergencyLatched rejects a mode toggle while emergency is active; only
// Resume leaves emergency.
var ErrEmergencyLatched = errors.New("robot: emergency stop active, resume first")

// Move drives the robot. It is dropped silently in auto mode. With a live
// channel the command is published; without one the position is nudged
// optimistically and later overwritten by telemetry.
func (s *Session) Move(linear, angular float64) {
	cmd := telemetry.NewCommand(linear, angular)
	s.mu.Lock()
	closed, mode := s.closed, s.state.Mode()
	s.mu.Unlock()
	if closed {
		return
	}
	if mode == telemetry.ModeAuto {
		metrics.MovesDroppedTotal.Inc()
		return
	}
	if s.live() {
		_ = s.send(telemetry.MoveMessage(cmd))
		return
	}
	at := s.now()
	s.update(telemetry.SourceLocal, func(st *telemetry.State) bool {
		return st.ApplyLocalMove(cmd, s.opts.MoveStep, at)
	})
}

// EmergencyStop sends STOP when a channel is live, forces emergency mode
// with zero speed and raises one high-priority alert.
func (s *Session) EmergencyStop() {
	if s.isClosed() {
		return
	}
	if s.live() {
		_ = s.send(telemetry.StopMessage())
	}
	at := s.now()
	if !s.update(telemetry.SourceLocal, func(st *telemetry.State) bool {
		st.Halt(at)
		return true
	}) {
		return
	}
	s.log.Warn("emergency stop")
	s.raise(notify.Draft{
		Type:     notify.TypeAlert,
		Title:    "Emergency stop",
		Message:  "The robot was stopped by the user.",
		Link:     "/",
		Priority: notify.PriorityHigh,
	})
}

// ToggleMode flips manual and auto and tells the robot. It returns the new
// mode, or ErrEmergencyLatched while in emergency.
func (s *Session) ToggleMode() (telemetry.Mode, error) {
	var next telemetry.Mode
	var latched bool
	ok := s.update(telemetry.SourceLocal, func(st *telemetry.State) bool {
		switch st.Mode() {
		case telemetry.ModeEmergency:
			latched = true
			return false
		case telemetry.ModeAuto:
			next = telemetry.ModeManual
		default:
			next = telemetry.ModeAuto
		}
		return st.SetMode(next)
	})
	if latched {
		return telemetry.ModeEmergency, ErrEmergencyLatched
	}
	if !ok {
		return s.Mode(), ErrClosed
	}
	s.announceMode(next)
	return next, nil
}

// Resume leaves emergency for manual mode. It reports false when the robot
// was not in emergency.
func (s *Session) Resume() bool {
	ok := s.update(telemetry.SourceLocal, func(st *telemetry.State) bool {
		if st.Mode() != telemetry.ModeEmergency {
			return false
		}
		return st.SetMode(telemetry.ModeManual)
	})
	if !ok {
		return false
	}
	s.announceMode(telemetry.ModeManual)
	return true
}

func (s *Session) announceMode(m telemetry.Mode) {
	if s.live() {
		_ = s.send(telemetry.ModeMessage(m))
	}
	s.log.Info("mode changed", "mode", m)
	s.raise(notify.Draft{
		Type:     notify.TypeRobot,
		Title:    "Mode changed",
		Message:  fmt.Sprintf("The robot switched to %s mode.", m),
		Link:     "/",
		Priority: notify.PriorityMedium,
	})
}

func (s *Session) send(msg telemetry.ControlMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.deps.Bus.Publish(bus.TopicControl, data); err != nil {
		s.log.Warn("send command", "type", msg.Type, "err", err)
		return err
	}
	metrics.RecordCommand(msg.Type)
	return nil
}

// raise relays a session event to the notification center.
func (s *Session) raise(d notify.Draft) {
	if s.isClosed() {
		return
	}
	s.deps.Notifier.Notify(d)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
