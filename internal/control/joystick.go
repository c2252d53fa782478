package control

import "petcare-console/internal/telemetry"

// Joystick maps a stick deflection in screen coordinates (x right, y down,
// both in [-1,1]) to a drive command: pushing up drives forward, pushing
// right turns clockwise.
func Joystick(x, y float64) telemetry.ControlCommand {
	return telemetry.NewCommand(-y, -x)
}

// Release is the command sent when the stick is let go.
func Release() telemetry.ControlCommand {
	return telemetry.ControlCommand{}
}
