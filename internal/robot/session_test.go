package robot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"petcare-console/internal/api"
	"petcare-console/internal/apperr"
	"petcare-console/internal/bus"
	"petcare-console/internal/notify"
	"petcare-console/internal/signaling"
	"petcare-console/internal/telemetry"
)

type notes struct {
	mu     sync.Mutex
	drafts []notify.Draft
}

func (n *notes) Notify(d notify.Draft) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drafts = append(n.drafts, d)
}

func (n *notes) list() []notify.Draft {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Draft(nil), n.drafts...)
}

type rows struct {
	mu  sync.Mutex
	got []telemetry.StatusRow
}

func (r *rows) WriteStatus(row telemetry.StatusRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, row)
	return nil
}

func (r *rows) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

type fakeSpeaker struct {
	mu   sync.Mutex
	reqs []api.TTSRequest
	err  error
}

func (f *fakeSpeaker) Speak(_ context.Context, req api.TTSRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return f.err
}

type fakeVideo struct {
	offers atomic.Int32
	closed atomic.Bool
}

func (f *fakeVideo) HandleOffer(context.Context, []byte) error {
	f.offers.Add(1)
	return nil
}
func (f *fakeVideo) State() signaling.State    { return signaling.StateAnswered }
func (f *fakeVideo) Stream() *signaling.Stream { return nil }
func (f *fakeVideo) Close() error {
	f.closed.Store(true)
	return nil
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func controls(t *testing.T, m *bus.Memory) []telemetry.ControlMessage {
	t.Helper()
	var out []telemetry.ControlMessage
	for _, msg := range m.Published(bus.TopicControl) {
		c, err := telemetry.DecodeControl(msg.Payload)
		if err != nil {
			t.Fatalf("bad control payload %s: %v", msg.Payload, err)
		}
		out = append(out, c)
	}
	return out
}

func startPush(t *testing.T, deps Deps) (*Session, *bus.Memory) {
	t.Helper()
	m := bus.NewMemory()
	deps.Bus = m
	if deps.Logger == nil {
		deps.Logger = quiet()
	}
	s := New(Options{Strategy: StrategyPush, Target: "memory"}, deps)
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s, m
}

func TestInitialStatus(t *testing.T) {
	s := New(Options{}, Deps{Logger: quiet()})
	st := s.Snapshot()
	if st.Online || st.Battery != 80 || st.Mode != telemetry.ModeManual || st.Position != (telemetry.Position{X: 50, Y: 50}) || st.Speed != 0 {
		t.Fatalf("unexpected initial status %+v", st)
	}
	if s.Strategy() != StrategyPush {
		t.Fatalf("default strategy = %s", s.Strategy())
	}
	if !s.Extras().VideoOn {
		t.Fatalf("video should default to on")
	}
}

func TestPushStatusApplied(t *testing.T) {
	rec := &rows{}
	s, m := startPush(t, Deps{Recorder: rec})
	if !s.Snapshot().Online {
		t.Fatalf("connect should mark online")
	}
	m.Deliver(bus.TopicStatus, []byte(`{"battery":45,"isOnline":true}`))
	st := s.Snapshot()
	if st.Battery != 45 || !st.Online {
		t.Fatalf("push not applied: %+v", st)
	}

	m.Deliver(bus.TopicStatus, []byte(`{"battery":140,"position":{"x":-3,"y":120},"speed":0.4,"mode":"auto"}`))
	st = s.Snapshot()
	if st.Battery != 100 || st.Position != (telemetry.Position{X: 0, Y: 100}) || st.Speed != 0.4 {
		t.Fatalf("clamping failed: %+v", st)
	}
	if st.Mode != telemetry.ModeManual {
		t.Fatalf("pushed mode must be ignored, got %s", st.Mode)
	}

	m.Deliver(bus.TopicStatus, []byte(`not json`))
	if s.Snapshot() != st {
		t.Fatalf("malformed message changed state")
	}
	if rec.len() < 3 {
		t.Fatalf("expected recorded rows, got %d", rec.len())
	}
	if rec.got[0].SessionID != s.ID() {
		t.Fatalf("row session = %q", rec.got[0].SessionID)
	}
}

func TestBrokerLossMarksOffline(t *testing.T) {
	s, m := startPush(t, Deps{})
	m.Deliver(bus.TopicStatus, []byte(`{"battery":45,"isOnline":true}`))
	if !s.Snapshot().Online {
		t.Fatalf("expected online before the drop")
	}

	m.Drop(errors.New("connection closed"))
	st := s.Snapshot()
	if st.Online {
		t.Fatalf("lost broker must mark the robot offline")
	}
	if st.Battery != 45 {
		t.Fatalf("loss should keep the last status, battery %v", st.Battery)
	}

	// Commands now take the optimistic path instead of the dead channel.
	sent := len(m.Published(bus.TopicControl))
	s.Move(1, 0)
	if len(m.Published(bus.TopicControl)) != sent {
		t.Fatalf("move published on a lost connection")
	}
	if p := s.Snapshot().Position; p.Y != 48.5 {
		t.Fatalf("expected optimistic move, got %+v", p)
	}
}

func TestCloseDoesNotReportLoss(t *testing.T) {
	s, m := startPush(t, Deps{})
	var calls atomic.Int32
	s.OnChange(func(telemetry.RobotStatus) { calls.Add(1) })
	_ = s.Close()
	m.Drop(errors.New("late"))
	if calls.Load() != 0 {
		t.Fatalf("observers called after close")
	}
}

func TestMoveDroppedInAuto(t *testing.T) {
	s, m := startPush(t, Deps{})
	if mode, err := s.ToggleMode(); err != nil || mode != telemetry.ModeAuto {
		t.Fatalf("ToggleMode = %s, %v", mode, err)
	}
	before := s.Snapshot()
	s.Move(1, 0)
	s.Move(0, -1)
	for _, c := range controls(t, m) {
		if c.Type == telemetry.CommandMove {
			t.Fatalf("move published in auto mode: %+v", c)
		}
	}
	if s.Snapshot().Position != before.Position {
		t.Fatalf("auto mode move changed position")
	}
}

func TestMovePublishesWhenLive(t *testing.T) {
	s, m := startPush(t, Deps{})
	s.Move(1, -0.5)
	s.Move(3, 0)
	got := controls(t, m)
	if len(got) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(got))
	}
	if got[0].Command() != (telemetry.ControlCommand{Linear: 1, Angular: -0.5}) {
		t.Fatalf("first command %+v", got[0].Command())
	}
	if got[1].Command().Linear != 1 {
		t.Fatalf("linear should clamp to 1, got %v", got[1].Command().Linear)
	}
	if s.Snapshot().Position != (telemetry.Position{X: 50, Y: 50}) {
		t.Fatalf("live moves must not move the local position")
	}

	raw := m.Published(bus.TopicControl)[0].Payload
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatal(err)
	}
	if wire["type"] != "MOVE" || wire["linear"] != 1.0 || wire["angular"] != -0.5 {
		t.Fatalf("wire shape %s", raw)
	}
}

func TestMoveOptimisticWithoutChannel(t *testing.T) {
	s := New(Options{}, Deps{Logger: quiet()})
	var seen atomic.Int32
	s.OnChange(func(telemetry.RobotStatus) { seen.Add(1) })

	s.Move(1, 0)
	if p := s.Snapshot().Position; p != (telemetry.Position{X: 50, Y: 48.5}) {
		t.Fatalf("forward move = %+v", p)
	}
	s.Move(0, 1)
	if p := s.Snapshot().Position; p.X != 51.5 {
		t.Fatalf("turn move = %+v", p)
	}
	for i := 0; i < 100; i++ {
		s.Move(1, -1)
	}
	p := s.Snapshot().Position
	if p.X < 0 || p.X > 100 || p.Y < 0 || p.Y > 100 {
		t.Fatalf("position escaped bounds: %+v", p)
	}
	if p.Y != 0 || p.X != 0 {
		t.Fatalf("expected clamp at corner, got %+v", p)
	}
	if seen.Load() == 0 {
		t.Fatalf("observers not told about local moves")
	}
}

func TestEmergencyStop(t *testing.T) {
	n := &notes{}
	s, m := startPush(t, Deps{Notifier: n})
	m.Deliver(bus.TopicStatus, []byte(`{"speed":0.8}`))

	s.EmergencyStop()
	st := s.Snapshot()
	if st.Mode != telemetry.ModeEmergency || st.Speed != 0 {
		t.Fatalf("emergency not applied: %+v", st)
	}
	high := 0
	for _, d := range n.list() {
		if d.Priority == notify.PriorityHigh {
			high++
		}
	}
	if high != 1 {
		t.Fatalf("expected one high-priority notification, got %d", high)
	}
	cmds := controls(t, m)
	if len(cmds) != 1 || cmds[0].Type != telemetry.CommandStop {
		t.Fatalf("expected STOP, got %+v", cmds)
	}

	if _, err := s.ToggleMode(); !errors.Is(err, ErrEmergencyLatched) {
		t.Fatalf("toggle in emergency: %v", err)
	}
	s.Move(1, 0)
	if got := len(controls(t, m)); got != 2 {
		t.Fatalf("manual moves are only blocked in auto; commands = %d", got)
	}

	if !s.Resume() {
		t.Fatalf("Resume should leave emergency")
	}
	if s.Mode() != telemetry.ModeManual {
		t.Fatalf("mode after resume = %s", s.Mode())
	}
	last := controls(t, m)[2]
	if last.Type != telemetry.CommandMode || last.Value != telemetry.ModeManual {
		t.Fatalf("resume should send MODE manual, got %+v", last)
	}
	if s.Resume() {
		t.Fatalf("Resume outside emergency should be a no-op")
	}
}

func TestEmergencyStopOffline(t *testing.T) {
	n := &notes{}
	s := New(Options{}, Deps{Notifier: n, Logger: quiet()})
	s.EmergencyStop()
	if s.Mode() != telemetry.ModeEmergency || len(n.list()) != 1 {
		t.Fatalf("offline stop: mode %s, %d notes", s.Mode(), len(n.list()))
	}
}

func TestToggleModeNotifies(t *testing.T) {
	n := &notes{}
	s, m := startPush(t, Deps{Notifier: n})
	s.ToggleMode()
	s.ToggleMode()
	cmds := controls(t, m)
	if len(cmds) != 2 || cmds[0].Value != telemetry.ModeAuto || cmds[1].Value != telemetry.ModeManual {
		t.Fatalf("mode commands %+v", cmds)
	}
	for _, d := range n.list() {
		if d.Type != notify.TypeRobot || d.Priority != notify.PriorityMedium {
			t.Fatalf("unexpected draft %+v", d)
		}
	}
	if len(n.list()) != 2 {
		t.Fatalf("expected two notifications, got %d", len(n.list()))
	}
}

func TestConnectFailureIsTerminal(t *testing.T) {
	m := bus.NewMemory()
	m.ConnectErr = errors.New("connection refused")
	s := New(Options{Target: "ws://robot"}, Deps{Bus: m, Logger: quiet()})
	defer s.Close()

	err := s.Start(context.Background())
	if !apperr.IsConnection(err) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if s.Snapshot().Online {
		t.Fatalf("failed connect must leave the robot offline")
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start: %v", err)
	}
	s.Move(1, 0)
	if s.Snapshot().Position.Y != 48.5 {
		t.Fatalf("without a channel moves are applied locally")
	}
}

type seq struct {
	mu    sync.Mutex
	calls int
	steps []func() (*telemetry.StatusUpdate, error)
}

func (q *seq) LatestStatus(context.Context) (*telemetry.StatusUpdate, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.calls
	q.calls++
	if i >= len(q.steps) {
		i = len(q.steps) - 1
	}
	return q.steps[i]()
}

func (q *seq) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func TestPollStrategy(t *testing.T) {
	battery, temp := 61.0, 31.5
	charging := true
	ok := func() (*telemetry.StatusUpdate, error) {
		return &telemetry.StatusUpdate{Battery: &battery, Temperature: &temp, Charging: &charging}, nil
	}
	fail := func() (*telemetry.StatusUpdate, error) {
		return nil, &apperr.NetworkError{Op: "GET /robot/latest", Err: errors.New("refused")}
	}
	q := &seq{steps: []func() (*telemetry.StatusUpdate, error){ok, fail}}
	s := New(Options{Strategy: StrategyPoll, PollInterval: 5 * time.Millisecond}, Deps{Poller: q, Logger: quiet()})
	defer s.Close()

	var onlineSeen atomic.Bool
	s.OnChange(func(st telemetry.RobotStatus) {
		if st.Online && st.Battery == 61 {
			onlineSeen.Store(true)
		}
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	eventually(t, "first poll", onlineSeen.Load)
	eventually(t, "failed poll", func() bool { return q.count() >= 2 && !s.Snapshot().Online })

	st := s.Snapshot()
	if st.Battery != 61 || st.Temperature != 31.5 || !st.Charging {
		t.Fatalf("stale fields should survive a failed poll: %+v", st)
	}
}

func TestPollNullBody(t *testing.T) {
	q := &seq{steps: []func() (*telemetry.StatusUpdate, error){
		func() (*telemetry.StatusUpdate, error) { return nil, nil },
	}}
	s := New(Options{Strategy: StrategyPoll, PollInterval: time.Hour}, Deps{Poller: q, Logger: quiet()})
	defer s.Close()
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	eventually(t, "online", func() bool { return s.Snapshot().Online })
	if s.Snapshot().Battery != telemetry.DefaultBattery {
		t.Fatalf("null body should merge nothing")
	}
}

func TestNoMutationAfterClose(t *testing.T) {
	n := &notes{}
	s, _ := startPush(t, Deps{Notifier: n})
	var calls atomic.Int32
	s.OnChange(func(telemetry.RobotStatus) { calls.Add(1) })

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	before := s.Snapshot()
	if before.Online {
		t.Fatalf("closed session should read offline")
	}

	s.handleStatus([]byte(`{"battery":10}`))
	s.Move(1, 1)
	s.EmergencyStop()
	if _, err := s.ToggleMode(); !errors.Is(err, ErrClosed) {
		t.Fatalf("toggle after close: %v", err)
	}
	s.SendTTS(context.Background(), "hello")

	if s.Snapshot() != before {
		t.Fatalf("state mutated after close")
	}
	if calls.Load() != 0 || len(n.list()) != 0 {
		t.Fatalf("callbacks after close: %d observers, %d notes", calls.Load(), len(n.list()))
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Start after close: %v", err)
	}
}

// hangingBus never finishes connecting until its context ends.
type hangingBus struct {
	entered chan struct{}
	closed  atomic.Bool
}

func (h *hangingBus) Connect(ctx context.Context) error {
	close(h.entered)
	<-ctx.Done()
	return ctx.Err()
}
func (h *hangingBus) Subscribe(string, bus.Handler) (bus.Subscription, error) {
	return nil, bus.ErrNotConnected
}
func (h *hangingBus) Publish(string, []byte) error { return bus.ErrNotConnected }
func (h *hangingBus) Connected() bool              { return false }
func (h *hangingBus) Close() error {
	h.closed.Store(true)
	return nil
}

func (h *hangingBus) OnDisconnect(func(error)) {}

func TestCloseMidConnection(t *testing.T) {
	hb := &hangingBus{entered: make(chan struct{})}
	s := New(Options{}, Deps{Bus: hb, Logger: quiet()})
	var calls atomic.Int32
	s.OnChange(func(telemetry.RobotStatus) { calls.Add(1) })

	errc := make(chan error, 1)
	go func() { errc <- s.Start(context.Background()) }()
	<-hb.entered
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-errc:
		if !apperr.IsConnection(err) {
			t.Fatalf("Start should fail once torn down, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Start did not return after Close")
	}
	if calls.Load() != 0 {
		t.Fatalf("observer called after teardown")
	}
	if !hb.closed.Load() {
		t.Fatalf("bus not closed")
	}
}

func TestOfferRoutedToVideo(t *testing.T) {
	v := &fakeVideo{}
	s, m := startPush(t, Deps{Video: v})
	m.Deliver(bus.TopicOffer, []byte(`{"sdp":"v=0","type":"offer"}`))
	eventually(t, "offer handled", func() bool { return v.offers.Load() == 1 })
	if got := s.Video(); !got.On || got.State != signaling.StateAnswered {
		t.Fatalf("video status %+v", got)
	}
	s.Close()
	if !v.closed.Load() {
		t.Fatalf("Close must close the peer")
	}
}

func TestTTSAndWalkieTalkie(t *testing.T) {
	n := &notes{}
	sp := &fakeSpeaker{err: errors.New("tts down")}
	s := New(Options{VoiceTraining: time.Millisecond}, Deps{Notifier: n, Speaker: sp, Logger: quiet()})
	defer s.Close()
	ctx := context.Background()

	s.SendTTS(ctx, "   ")
	if len(sp.reqs) != 0 || len(n.list()) != 0 {
		t.Fatalf("blank text should be ignored")
	}
	s.SendTTS(ctx, "dinner time")
	if len(sp.reqs) != 1 || sp.reqs[0].UseClonedVoice {
		t.Fatalf("tts request %+v", sp.reqs)
	}
	if len(n.list()) != 1 {
		t.Fatalf("tts should raise a notification even when the request fails")
	}

	s.SetUseClonedVoice(true)
	if s.Extras().UseClonedVoice {
		t.Fatalf("cloned voice cannot be selected before training")
	}
	if !s.TrainVoice() {
		t.Fatalf("TrainVoice refused")
	}
	eventually(t, "training", func() bool { return s.Extras().VoiceCloned })
	if ex := s.Extras(); !ex.UseClonedVoice || ex.Training {
		t.Fatalf("after training %+v", ex)
	}
	s.SendTTS(ctx, "good cat")
	if !sp.reqs[1].UseClonedVoice {
		t.Fatalf("trained voice should be used")
	}

	if s.StopWalkieTalkie() {
		t.Fatalf("stop without start should not announce")
	}
	s.StartWalkieTalkie()
	if !s.StopWalkieTalkie() {
		t.Fatalf("stop after start should announce")
	}
	if len(n.list()) != 3 {
		t.Fatalf("notifications = %d", len(n.list()))
	}

	if s.ToggleVideo() {
		t.Fatalf("video should toggle off")
	}
}
