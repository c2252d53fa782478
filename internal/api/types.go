package api

import (
	"bytes"
	"encoding/json"
	"time"

	"petcare-console/internal/telemetry"
)

// Time is a backend timestamp. The server emits local date-times without a
// zone; those decode as UTC.
type Time struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if ts, ok := telemetry.ParseTimestamp(s); ok {
		t.Time = ts
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// User is the account record. Password is only sent, never shown.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// LoginResponse is returned by POST /users/login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Cat is a registered pet.
type Cat struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Breed          string  `json:"breed"`
	Age            int     `json:"age"`
	Weight         float64 `json:"weight"`
	Notes          string  `json:"notes"`
	HealthStatus   string  `json:"healthStatus"`
	BehaviorStatus string  `json:"behaviorStatus"`
	LastDetected   Time    `json:"lastDetected"`
}

// NewCat is the POST /cats body.
type NewCat struct {
	UserID int64   `json:"userId"`
	Name   string  `json:"name"`
	Breed  string  `json:"breed"`
	Age    int     `json:"age"`
	Weight float64 `json:"weight"`
	Notes  string  `json:"notes"`
}

// PatrolLog is one patrol run.
type PatrolLog struct {
	ID             int64   `json:"id"`
	Mode           string  `json:"mode"`
	Status         string  `json:"status"`
	StartTime      Time    `json:"startTime"`
	EndTime        Time    `json:"endTime"`
	Duration       string  `json:"duration"`
	DetectionCount int     `json:"detectionCount"`
	Distance       float64 `json:"distance"`
	Details        string  `json:"details"`
}

// NewPatrolLog is the POST /logs body. DurationMinutes backdates the start
// time on the server.
type NewPatrolLog struct {
	UserID          int64   `json:"userId"`
	Mode            string  `json:"mode"`
	Status          string  `json:"status"`
	Duration        string  `json:"duration"`
	Distance        float64 `json:"distance"`
	DetectionCount  int     `json:"detectionCount"`
	Details         string  `json:"details"`
	DurationMinutes int     `json:"durationNum"`
}

// Video is a recorded clip.
type Video struct {
	ID           int64  `json:"id"`
	CatName      string `json:"catName"`
	Behavior     string `json:"behavior"`
	Duration     string `json:"duration"`
	Timestamp    Time   `json:"timestamp"`
	ThumbnailURL string `json:"thumbnailUrl"`
	VideoURL     string `json:"videoUrl"`
}

// RemoteNotification is a server-side notification.
type RemoteNotification struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Priority  string `json:"priority"`
	Read      bool   `json:"read"`
	IsRead    bool   `json:"isRead"`
	Timestamp Time   `json:"timestamp"`
}

// Seen reports the read flag under either of its serialized names.
func (n RemoteNotification) Seen() bool { return n.Read || n.IsRead }

// ControlRequest is the REST fallback for a move command.
type ControlRequest struct {
	Linear  float64 `json:"linear"`
	Angular float64 `json:"angular"`
}

// TTSRequest asks the robot to speak text.
type TTSRequest struct {
	Text           string `json:"text"`
	UseClonedVoice bool   `json:"useClonedVoice"`
}
