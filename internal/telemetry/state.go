package telemetry

import "time"

// Source tags who produced a field value.
type Source int

const (
	SourceNone Source = iota
	// SourceRemote is telemetry reported by the robot or server.
	SourceRemote
	// SourceLocal is an optimistic value computed by the console.
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceLocal:
		return "local"
	}
	return "none"
}

// Stamp records the origin and time of the last accepted write to a field group.
type Stamp struct {
	Source Source
	At     time.Time
}

// Field identifies an independently merged group of status fields.
type Field int

const (
	FieldBattery Field = iota
	FieldOnline
	FieldPosition
	FieldSpeed
	FieldExtras
	numFields
)

// State is a RobotStatus plus per-field stamps. Writes are last-writer-wins:
// a write older than the stamp already held for its field is discarded.
// State is not safe for concurrent use; the owner serializes access.
type State struct {
	status RobotStatus
	stamps [numFields]Stamp
}

// NewState returns the status shown before any telemetry arrives.
func NewState(mode Mode) *State {
	if !mode.Valid() || mode == ModeEmergency {
		mode = ModeManual
	}
	return &State{status: RobotStatus{
		Battery:  DefaultBattery,
		Mode:     mode,
		Position: Position{X: DefaultX, Y: DefaultY},
	}}
}

// Snapshot returns a copy of the current status.
func (s *State) Snapshot() RobotStatus { return s.status }

// Mode returns the current mode.
func (s *State) Mode() Mode { return s.status.Mode }

// Stamp returns the last accepted stamp for f.
func (s *State) Stamp(f Field) Stamp { return s.stamps[f] }

func (s *State) accept(f Field, src Source, at time.Time) bool {
	if at.Before(s.stamps[f].At) {
		return false
	}
	s.stamps[f] = Stamp{Source: src, At: at}
	return true
}

// ApplyRemote folds a pushed status message into the state. Every field
// carried by u overwrites the current value except Mode, which only the
// console changes. It reports whether anything was applied.
func (s *State) ApplyRemote(u StatusUpdate, at time.Time) bool {
	applied := false
	if u.Battery != nil && s.accept(FieldBattery, SourceRemote, at) {
		s.status.Battery = ClampBattery(*u.Battery)
		applied = true
	}
	if u.Online != nil && s.accept(FieldOnline, SourceRemote, at) {
		s.status.Online = *u.Online
		applied = true
	}
	if (u.X != nil || u.Y != nil) && s.accept(FieldPosition, SourceRemote, at) {
		p := s.status.Position
		if u.X != nil {
			p.X = *u.X
		}
		if u.Y != nil {
			p.Y = *u.Y
		}
		s.status.Position = ClampPosition(p)
		applied = true
	}
	if u.Speed != nil && s.accept(FieldSpeed, SourceRemote, at) {
		s.status.Speed = ClampSpeed(*u.Speed)
		applied = true
	}
	if (u.Temperature != nil || u.Charging != nil) && s.accept(FieldExtras, SourceRemote, at) {
		if u.Temperature != nil {
			s.status.Temperature = *u.Temperature
		}
		if u.Charging != nil {
			s.status.Charging = *u.Charging
		}
		applied = true
	}
	if applied && at.After(s.status.LastUpdate) {
		s.status.LastUpdate = at
	}
	return applied
}

// ApplyPoll merges a successful REST poll: battery, the StatusCard extras,
// online=true and lastUpdate. Position and speed are left to the push path.
func (s *State) ApplyPoll(u StatusUpdate, at time.Time) bool {
	s.SetOnline(true, SourceRemote, at)
	if u.Battery != nil && s.accept(FieldBattery, SourceRemote, at) {
		s.status.Battery = ClampBattery(*u.Battery)
	}
	if (u.Temperature != nil || u.Charging != nil) && s.accept(FieldExtras, SourceRemote, at) {
		if u.Temperature != nil {
			s.status.Temperature = *u.Temperature
		}
		if u.Charging != nil {
			s.status.Charging = *u.Charging
		}
	}
	if at.After(s.status.LastUpdate) {
		s.status.LastUpdate = at
	}
	return true
}

// SetOnline records connectivity.
func (s *State) SetOnline(online bool, src Source, at time.Time) bool {
	if !s.accept(FieldOnline, src, at) {
		return false
	}
	changed := s.status.Online != online
	s.status.Online = online
	return changed
}

// ApplyLocalMove nudges the position by the command scaled by step:
// x follows angular, y moves against linear. Used only while no channel
// to the robot is live.
func (s *State) ApplyLocalMove(cmd ControlCommand, step float64, at time.Time) bool {
	if cmd.IsZero() || !s.accept(FieldPosition, SourceLocal, at) {
		return false
	}
	s.status.Position = ClampPosition(Position{
		X: s.status.Position.X + cmd.Angular*step,
		Y: s.status.Position.Y - cmd.Linear*step,
	})
	return true
}

// SetMode changes the mode and reports whether it differed.
func (s *State) SetMode(m Mode) bool {
	if s.status.Mode == m {
		return false
	}
	s.status.Mode = m
	return true
}

// Halt forces emergency mode and zero speed.
func (s *State) Halt(at time.Time) {
	s.status.Mode = ModeEmergency
	s.accept(FieldSpeed, SourceLocal, at)
	s.status.Speed = 0
}
