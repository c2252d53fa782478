// Robot status model shared by the session, recorder and views
package telemetry

import (
	"math"
	"time"
)

// Mode is the robot's control mode.
type Mode string

const (
	ModeManual    Mode = "manual"
	ModeAuto      Mode = "auto"
	ModeEmergency Mode = "emergency"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeManual, ModeAuto, ModeEmergency:
		return true
	}
	return false
}

// Position is a normalized map position; both axes live in [0,100].
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RobotStatus is the view state of the robot.
type RobotStatus struct {
	Online      bool      `json:"isOnline"`
	Battery     float64   `json:"battery"`
	Mode        Mode      `json:"mode"`
	Position    Position  `json:"position"`
	Speed       float64   `json:"speed"`
	LastUpdate  time.Time `json:"lastUpdate"`
	Temperature float64   `json:"temperature"`
	Charging    bool      `json:"charging"`
}

// ControlCommand is a velocity request produced by an input device.
type ControlCommand struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// NewCommand returns a command with both components clamped to [-1,1].
func NewCommand(linear, angular float64) ControlCommand {
	return ControlCommand{Linear: clamp(linear, -1, 1), Angular: clamp(angular, -1, 1)}
}

// IsZero reports whether the command requests no motion.
func (c ControlCommand) IsZero() bool { return c.Linear == 0 && c.Angular == 0 }

// Default values shown before the first telemetry arrives.
const (
	DefaultBattery = 80.0
	DefaultX       = 50.0
	DefaultY       = 50.0
)

// ClampBattery bounds a battery reading to [0,100].
func ClampBattery(b float64) float64 { return clamp(b, 0, 100) }

// ClampPosition bounds both axes to [0,100].
func ClampPosition(p Position) Position {
	return Position{X: clamp(p.X, 0, 100), Y: clamp(p.Y, 0, 100)}
}

// ClampSpeed bounds speed to be non-negative.
func ClampSpeed(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
