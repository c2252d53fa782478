package telemetry

import (
	"encoding/json"
	"time"
)

// StatusUpdate is a partial status report. Nil fields were absent from
// the message and leave the current value untouched.
type StatusUpdate struct {
	Battery     *float64
	Online      *bool
	X           *float64
	Y           *float64
	Speed       *float64
	Temperature *float64
	Charging    *bool
	Mode        *Mode
	Timestamp   *time.Time
}

// wireStatus accepts both the broker's push shape and the REST entity shape.
type wireStatus struct {
	Battery      *float64 `json:"battery"`
	BatteryLevel *float64 `json:"batteryLevel"`
	IsOnline     *bool    `json:"isOnline"`
	X            *float64 `json:"x"`
	Y            *float64 `json:"y"`
	Position     *struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	} `json:"position"`
	Speed       *float64 `json:"speed"`
	Temperature *float64 `json:"temperature"`
	IsCharging  *bool    `json:"isCharging"`
	Charging    *bool    `json:"charging"`
	Mode        *string  `json:"mode"`
	Timestamp   *string  `json:"timestamp"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *StatusUpdate) UnmarshalJSON(data []byte) error {
	var w wireStatus
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*u = StatusUpdate{
		Battery:     w.Battery,
		Online:      w.IsOnline,
		X:           w.X,
		Y:           w.Y,
		Speed:       w.Speed,
		Temperature: w.Temperature,
		Charging:    w.IsCharging,
	}
	if w.Timestamp != nil {
		if ts, ok := ParseTimestamp(*w.Timestamp); ok {
			u.Timestamp = &ts
		}
	}
	if u.Battery == nil {
		u.Battery = w.BatteryLevel
	}
	if u.Charging == nil {
		u.Charging = w.Charging
	}
	if w.Position != nil {
		if w.Position.X != nil {
			u.X = w.Position.X
		}
		if w.Position.Y != nil {
			u.Y = w.Position.Y
		}
	}
	if w.Mode != nil {
		m := Mode(*w.Mode)
		u.Mode = &m
	}
	return nil
}

// MarshalJSON writes the push shape.
func (u StatusUpdate) MarshalJSON() ([]byte, error) {
	w := wireStatus{
		Battery:     u.Battery,
		IsOnline:    u.Online,
		X:           u.X,
		Y:           u.Y,
		Speed:       u.Speed,
		Temperature: u.Temperature,
		IsCharging:  u.Charging,
	}
	if u.Timestamp != nil {
		ts := u.Timestamp.Format(time.RFC3339Nano)
		w.Timestamp = &ts
	}
	if u.Mode != nil {
		s := string(*u.Mode)
		w.Mode = &s
	}
	return json.Marshal(w)
}

// DecodeUpdate parses a status payload. A JSON null yields (nil, nil).
func DecodeUpdate(data []byte) (*StatusUpdate, error) {
	var u *StatusUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return u, nil
}

// Server timestamps may lack a zone; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp reads the timestamp formats the backend emits.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
