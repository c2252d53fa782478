package telemetry

import (
	"os"
	"time"
)

// StatusRow is one recorded status sample.
type StatusRow struct {
	SessionID   string    `json:"session_id"`  // TAG
	Source      string    `json:"source"`      // TAG
	Online      bool      `json:"online"`      // FIELD
	Battery     float64   `json:"battery"`     // FIELD
	Mode        string    `json:"mode"`        // FIELD
	X           float64   `json:"x"`           // FIELD
	Y           float64   `json:"y"`           // FIELD
	Speed       float64   `json:"speed"`       // FIELD
	Temperature float64   `json:"temperature"` // FIELD
	Charging    bool      `json:"charging"`    // FIELD
	Timestamp   time.Time `json:"ts"`          // TIME INDEX
}

// StatusTableName holds the GreptimeDB table for status rows. It defaults
// to "robot_status" and can be overridden with GREPTIMEDB_TABLE.
var StatusTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "robot_status"
}()

func (StatusRow) TableName() string {
	return StatusTableName
}

// RowFromStatus converts a status snapshot into a recorded row.
func RowFromStatus(sessionID string, src Source, st RobotStatus, ts time.Time) StatusRow {
	return StatusRow{
		SessionID:   sessionID,
		Source:      src.String(),
		Online:      st.Online,
		Battery:     st.Battery,
		Mode:        string(st.Mode),
		X:           st.Position.X,
		Y:           st.Position.Y,
		Speed:       st.Speed,
		Temperature: st.Temperature,
		Charging:    st.Charging,
		Timestamp:   ts.UTC(),
	}
}
