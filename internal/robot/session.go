// Package robot is the live robot session: it owns the bus connection, folds
// telemetry into a RobotStatus, dispatches commands under the mode guard and
// relays session events to the notification center.
package robot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"petcare-console/internal/api"
	"petcare-console/internal/apperr"
	"petcare-console/internal/bus"
	"petcare-console/internal/metrics"
	"petcare-console/internal/notify"
	"petcare-console/internal/signaling"
	"petcare-console/internal/telemetry"
)

// Strategy selects how status reaches the session.
type Strategy string

const (
	StrategyPush Strategy = "push"
	StrategyPoll Strategy = "poll"
)

// DefaultPollInterval is the REST polling cadence.
const DefaultPollInterval = time.Second

// DefaultMoveStep scales optimistic position updates.
const DefaultMoveStep = 1.5

var (
	ErrClosed         = errors.New("robot: session closed")
	ErrAlreadyStarted = errors.New("robot: session already started")
)

// Poller fetches the latest status over REST.
type Poller interface {
	LatestStatus(ctx context.Context) (*telemetry.StatusUpdate, error)
}

// Speaker forwards text-to-speech requests.
type Speaker interface {
	Speak(ctx context.Context, req api.TTSRequest) error
}

// Recorder receives every status change.
type Recorder interface {
	WriteStatus(telemetry.StatusRow) error
}

// Video answers the robot's offer. *signaling.Bridge implements it.
type Video interface {
	HandleOffer(ctx context.Context, payload []byte) error
	State() signaling.State
	Stream() *signaling.Stream
	Close() error
}

// Options tunes a session.
type Options struct {
	Strategy     Strategy
	PollInterval time.Duration
	MoveStep     float64
	InitialMode  telemetry.Mode
	// VoiceTraining is how long TrainVoice takes.
	VoiceTraining time.Duration
	// Target names the bus endpoint in connection errors.
	Target string
}

// Deps are the collaborators a session talks to. Only Logger may be nil
// among the required ones; Bus may be nil for a REST-only poll session.
type Deps struct {
	Bus      bus.Bus
	Poller   Poller
	Speaker  Speaker
	Notifier notify.Notifier
	Recorder Recorder
	Video    Video
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Session owns one robot connection. All status mutation goes through
// update; after Close no mutation or observer callback happens.
type Session struct {
	id   string
	opts Options
	deps Deps
	log  *slog.Logger
	now  func() time.Time

	mu      sync.Mutex
	state   *telemetry.State
	extras  Extras
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
	subs    []bus.Subscription
	wg      sync.WaitGroup

	// cbMu is held for reading while observers run so Close can wait them out.
	cbMu      sync.RWMutex
	observers []func(telemetry.RobotStatus)
}

// New builds an idle session. Nothing is contacted until Start.
func New(opts Options, deps Deps) *Session {
	if opts.Strategy == "" {
		opts.Strategy = StrategyPush
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.MoveStep <= 0 {
		opts.MoveStep = DefaultMoveStep
	}
	if opts.VoiceTraining <= 0 {
		opts.VoiceTraining = DefaultVoiceTraining
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	if deps.Notifier == nil {
		deps.Notifier = discardNotifier{}
	}
	return &Session{
		id:     uuid.NewString(),
		opts:   opts,
		deps:   deps,
		log:    log.With("component", "robot"),
		now:    now,
		state:  telemetry.NewState(opts.InitialMode),
		extras: Extras{VideoOn: true},
		done:   make(chan struct{}),
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(notify.Draft) {}

// ID identifies the session in recorded rows.
func (s *Session) ID() string { return s.id }

// Strategy reports the active synchronization strategy.
func (s *Session) Strategy() Strategy { return s.opts.Strategy }

// Snapshot returns the current status.
func (s *Session) Snapshot() telemetry.RobotStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

// Mode returns the current mode.
func (s *Session) Mode() telemetry.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Mode()
}

// OnChange registers an observer called after every applied change.
func (s *Session) OnChange(fn func(telemetry.RobotStatus)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start connects the bus, subscribes the inbound topics and starts the
// synchronizer. A connect failure is terminal for this session: the status
// is marked offline and a ConnectionError returned. In poll mode the REST
// poller runs regardless since it does not use the bus.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Info("session starting", "session", s.id, "strategy", s.opts.Strategy)
	if s.opts.Strategy == StrategyPoll {
		s.spawn(func() { s.poll(ctx) })
	}
	if s.deps.Bus == nil {
		return nil
	}

	s.deps.Bus.OnDisconnect(s.connectionLost)
	if err := s.deps.Bus.Connect(ctx); err != nil {
		s.log.Warn("bus connect failed", "target", s.opts.Target, "err", err)
		s.setOnline(false)
		return &apperr.ConnectionError{Target: s.opts.Target, Err: err}
	}
	if s.opts.Strategy == StrategyPush {
		s.setOnline(true)
		if err := s.subscribe(bus.TopicStatus, s.handleStatus); err != nil {
			s.setOnline(false)
			return &apperr.ConnectionError{Target: s.opts.Target, Err: fmt.Errorf("subscribe %s: %w", bus.TopicStatus, err)}
		}
	}
	if s.deps.Video != nil {
		err := s.subscribe(bus.TopicOffer, func(payload []byte) {
			// Negotiation blocks on ICE gathering; keep the bus callback free.
			s.spawn(func() {
				if err := s.deps.Video.HandleOffer(ctx, payload); err != nil {
					s.log.Warn("video unavailable", "err", err)
				}
			})
		})
		if err != nil {
			s.log.Warn("offer subscription failed", "err", err)
		}
	}
	s.log.Info("session connected", "target", s.opts.Target)
	return nil
}

// connectionLost runs when the broker drops a live connection. Nothing is
// retried; commands fall back to the optimistic path.
func (s *Session) connectionLost(err error) {
	s.log.Warn("bus connection lost", "target", s.opts.Target, "err", err)
	s.setOnline(false)
}

func (s *Session) subscribe(topic string, h bus.Handler) error {
	sub, err := s.deps.Bus.Subscribe(topic, h)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = sub.Unsubscribe()
		return ErrClosed
	}
	s.subs = append(s.subs, sub)
	return nil
}

// spawn runs fn on a tracked goroutine unless the session is closed.
func (s *Session) spawn(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// live reports whether commands can reach the robot over the bus.
func (s *Session) live() bool {
	return s.deps.Bus != nil && s.deps.Bus.Connected()
}

// update runs fn under the session lock. When fn reports a change the new
// status is recorded and observers are told. It is a no-op after Close.
func (s *Session) update(src telemetry.Source, fn func(st *telemetry.State) bool) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if !fn(s.state) {
		s.mu.Unlock()
		return false
	}
	snap := s.state.Snapshot()
	s.mu.Unlock()

	if s.deps.Recorder != nil {
		row := telemetry.RowFromStatus(s.id, src, snap, s.now())
		if err := s.deps.Recorder.WriteStatus(row); err != nil {
			s.log.Warn("record status", "err", err)
		}
	}
	s.emit(snap)
	return true
}

func (s *Session) emit(snap telemetry.RobotStatus) {
	s.cbMu.RLock()
	defer s.cbMu.RUnlock()
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	for _, fn := range s.observers {
		fn(snap)
	}
}

func (s *Session) setOnline(online bool) {
	s.update(telemetry.SourceRemote, func(st *telemetry.State) bool {
		return st.SetOnline(online, telemetry.SourceRemote, s.now())
	})
	metrics.SetOnline(online)
}

// Close cancels the poller, unsubscribes, closes the peer and the bus. It
// is safe to call more than once and from any exit path.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	cancel := s.cancel
	subs := s.subs
	s.subs = nil
	s.state.SetOnline(false, telemetry.SourceLocal, s.now())
	s.mu.Unlock()

	// Wait for in-flight observers, then drop them.
	s.cbMu.Lock()
	s.observers = nil
	s.cbMu.Unlock()

	if cancel != nil {
		cancel()
	}
	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.deps.Video != nil {
		if err := s.deps.Video.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.deps.Bus != nil {
		if err := s.deps.Bus.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()
	metrics.SetOnline(false)
	s.log.Info("session closed", "session", s.id)
	return errors.Join(errs...)
}
