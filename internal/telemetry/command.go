package telemetry

import (
	"encoding/json"
	"fmt"
)

// Control message types sent on the robot control topic.
const (
	CommandMove = "MOVE"
	CommandStop = "STOP"
	CommandMode = "MODE"
)

// ControlMessage is the wire form of a command sent to the robot.
type ControlMessage struct {
	Type    string   `json:"type"`
	Linear  *float64 `json:"linear,omitempty"`
	Angular *float64 `json:"angular,omitempty"`
	Value   Mode     `json:"value,omitempty"`
}

// MoveMessage wraps a drive command.
func MoveMessage(cmd ControlCommand) ControlMessage {
	l, a := cmd.Linear, cmd.Angular
	return ControlMessage{Type: CommandMove, Linear: &l, Angular: &a}
}

// StopMessage halts the robot.
func StopMessage() ControlMessage { return ControlMessage{Type: CommandStop} }

// ModeMessage switches the robot's mode.
func ModeMessage(m Mode) ControlMessage { return ControlMessage{Type: CommandMode, Value: m} }

// Command returns the drive command carried by a MOVE message; absent
// components read as zero.
func (m ControlMessage) Command() ControlCommand {
	var l, a float64
	if m.Linear != nil {
		l = *m.Linear
	}
	if m.Angular != nil {
		a = *m.Angular
	}
	return NewCommand(l, a)
}

// DecodeControl parses and checks a control message.
func DecodeControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return m, err
	}
	switch m.Type {
	case CommandMove, CommandStop:
	case CommandMode:
		if !m.Value.Valid() {
			return m, fmt.Errorf("invalid mode %q", m.Value)
		}
	default:
		return m, fmt.Errorf("unknown command type %q", m.Type)
	}
	return m, nil
}
