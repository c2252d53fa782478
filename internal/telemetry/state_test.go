package telemetry

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }
func boolp(v bool) *bool     { return &v }

func TestBatteryAlwaysClamped(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	st := NewState(ModeManual)
	at := time.Unix(0, 0)
	for i := 0; i < 500; i++ {
		b := r.Float64()*400 - 200
		at = at.Add(time.Millisecond)
		st.ApplyRemote(StatusUpdate{Battery: &b}, at)
		got := st.Snapshot().Battery
		if got < 0 || got > 100 {
			t.Fatalf("battery %v clamped to %v", b, got)
		}
	}
}

func TestPositionAlwaysClamped(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	st := NewState(ModeManual)
	at := time.Unix(0, 0)
	for i := 0; i < 500; i++ {
		at = at.Add(time.Millisecond)
		if i%2 == 0 {
			cmd := NewCommand(r.Float64()*2-1, r.Float64()*2-1)
			st.ApplyLocalMove(cmd, 40, at)
		} else {
			st.ApplyRemote(StatusUpdate{X: f64(r.Float64()*300 - 100), Y: f64(r.Float64()*300 - 100)}, at)
		}
		p := st.Snapshot().Position
		if p.X < 0 || p.X > 100 || p.Y < 0 || p.Y > 100 {
			t.Fatalf("position out of range: %+v", p)
		}
	}
}

func TestRemoteDoesNotChangeMode(t *testing.T) {
	st := NewState(ModeManual)
	auto := ModeAuto
	st.ApplyRemote(StatusUpdate{Mode: &auto, Battery: f64(45)}, time.Unix(1, 0))
	if st.Mode() != ModeManual {
		t.Fatalf("mode = %s, want manual", st.Mode())
	}
}

func TestApplyRemoteScenario(t *testing.T) {
	st := NewState(ModeManual)
	u, err := DecodeUpdate([]byte(`{"battery":45,"isOnline":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	at := time.Unix(10, 0)
	if !st.ApplyRemote(*u, at) {
		t.Fatalf("expected update to apply")
	}
	got := st.Snapshot()
	if got.Battery != 45 || !got.Online {
		t.Fatalf("unexpected status: %+v", got)
	}
	if !got.LastUpdate.Equal(at) {
		t.Fatalf("lastUpdate = %v, want %v", got.LastUpdate, at)
	}
	if got.Position != (Position{X: DefaultX, Y: DefaultY}) {
		t.Fatalf("absent fields should be kept, got %+v", got.Position)
	}
}

func TestStaleLocalMoveLosesToRemote(t *testing.T) {
	st := NewState(ModeManual)
	st.ApplyRemote(StatusUpdate{X: f64(10), Y: f64(20)}, time.Unix(5, 0))
	if st.ApplyLocalMove(NewCommand(1, 1), 1.5, time.Unix(4, 0)) {
		t.Fatalf("stale optimistic move should be discarded")
	}
	if p := st.Snapshot().Position; p.X != 10 || p.Y != 20 {
		t.Fatalf("position = %+v", p)
	}
	if s := st.Stamp(FieldPosition); s.Source != SourceRemote {
		t.Fatalf("stamp source = %s", s.Source)
	}
}

func TestLocalMoveThenRemoteOverwrite(t *testing.T) {
	st := NewState(ModeManual)
	st.ApplyLocalMove(NewCommand(1, 0), 1.5, time.Unix(1, 0))
	if p := st.Snapshot().Position; p.Y != DefaultY-1.5 || p.X != DefaultX {
		t.Fatalf("optimistic position = %+v", p)
	}
	if s := st.Stamp(FieldPosition); s.Source != SourceLocal {
		t.Fatalf("stamp source = %s", s.Source)
	}
	st.ApplyRemote(StatusUpdate{X: f64(70), Y: f64(30)}, time.Unix(2, 0))
	if p := st.Snapshot().Position; p.X != 70 || p.Y != 30 {
		t.Fatalf("remote should win, got %+v", p)
	}
}

func TestApplyPollMergesOnlyStatusCardFields(t *testing.T) {
	st := NewState(ModeManual)
	u := StatusUpdate{Battery: f64(33), X: f64(1), Y: f64(1), Temperature: f64(36.5), Charging: boolp(true)}
	st.ApplyPoll(u, time.Unix(3, 0))
	got := st.Snapshot()
	if got.Battery != 33 || !got.Online || got.Temperature != 36.5 || !got.Charging {
		t.Fatalf("unexpected status: %+v", got)
	}
	if got.Position.X != DefaultX {
		t.Fatalf("poll must not move position: %+v", got.Position)
	}
}

func TestHalt(t *testing.T) {
	st := NewState(ModeAuto)
	st.ApplyRemote(StatusUpdate{Speed: f64(3)}, time.Unix(1, 0))
	st.Halt(time.Unix(2, 0))
	got := st.Snapshot()
	if got.Mode != ModeEmergency || got.Speed != 0 {
		t.Fatalf("unexpected status after halt: %+v", got)
	}
}

func TestDecodeRESTEntity(t *testing.T) {
	body := `{"id":7,"batteryLevel":61,"temperature":40.2,"isCharging":false,"x":12.5,"y":80,"mode":"auto","timestamp":"2024-05-01T10:11:12.345"}`
	u, err := DecodeUpdate([]byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Battery == nil || *u.Battery != 61 {
		t.Fatalf("battery not read from batteryLevel")
	}
	if u.Mode == nil || *u.Mode != ModeAuto {
		t.Fatalf("mode not decoded")
	}
	if u.Timestamp == nil || u.Timestamp.Year() != 2024 {
		t.Fatalf("timestamp not decoded: %v", u.Timestamp)
	}
	out, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := DecodeUpdate(out)
	if err != nil || back.Battery == nil || *back.Battery != 61 {
		t.Fatalf("re-decode failed: %v %+v", err, back)
	}
}

func TestDecodeNull(t *testing.T) {
	u, err := DecodeUpdate([]byte("null"))
	if err != nil || u != nil {
		t.Fatalf("expected nil update, got %+v %v", u, err)
	}
}
