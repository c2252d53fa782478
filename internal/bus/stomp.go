package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stomp/stomp/v3"
	"github.com/gorilla/websocket"

	"petcare-console/internal/config"
)

// heartBeat is negotiated in both directions, matching the browser client.
const heartBeat = 10 * time.Second

// Stomp speaks STOMP 1.2 over a WebSocket, the broker endpoint the backend
// exposes for browsers.
type Stomp struct {
	cfg config.BusConfig
	log *slog.Logger

	mu        sync.Mutex
	conn      *stomp.Conn
	subs      []*stomp.Subscription
	lost      func(error)
	closed    bool
	wg        sync.WaitGroup
	connected atomic.Bool
	closeOnce sync.Once
}

// NewStomp returns an unconnected STOMP bus for cfg.URL.
func NewStomp(cfg config.BusConfig, log *slog.Logger) *Stomp {
	return &Stomp{cfg: cfg, log: log}
}

// Connect dials the websocket and performs the STOMP handshake. Cancelling
// ctx aborts a pending handshake.
func (s *Stomp) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		Proxy:        websocket.DefaultDialer.Proxy,
		Subprotocols: []string{"v12.stomp", "v11.stomp", "v10.stomp"},
	}
	ws, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	opts := []func(*stomp.Conn) error{
		stomp.ConnOpt.Host(s.cfg.Host),
		stomp.ConnOpt.HeartBeat(heartBeat, heartBeat),
		stomp.ConnOpt.AcceptVersion(stomp.V12),
		stomp.ConnOpt.Logger(stompLogger{s.log}),
	}
	if s.cfg.Username != "" {
		opts = append(opts, stomp.ConnOpt.Login(s.cfg.Username, s.cfg.Password))
	}
	conn, err := stomp.Connect(newWSConn(ws), opts...)
	if err != nil {
		_ = ws.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("stomp handshake: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.MustDisconnect()
		return ErrNotConnected
	}
	s.conn = conn
	s.connected.Store(true)
	s.mu.Unlock()
	s.log.Info("stomp connected", "url", s.cfg.URL)
	return nil
}

// OnDisconnect registers the loss callback.
func (s *Stomp) OnDisconnect(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lost = fn
}

// drop marks a live connection lost and reports it once, unless the bus
// is being closed.
func (s *Stomp) drop(err error) {
	if !s.connected.CompareAndSwap(true, false) {
		return
	}
	s.mu.Lock()
	fn, closed := s.lost, s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.log.Warn("stomp connection lost", "err", err)
	if fn != nil {
		fn(err)
	}
}

// Subscribe starts delivering messages for topic to h on a dedicated
// goroutine, in arrival order.
func (s *Stomp) Subscribe(topic string, h Handler) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected.Load() {
		return nil, ErrNotConnected
	}
	sub, err := s.conn.Subscribe(topic, stomp.AckAuto)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}
	s.subs = append(s.subs, sub)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for msg := range sub.C {
			if msg.Err != nil {
				s.log.Debug("stomp subscription ended", "topic", topic, "err", msg.Err)
				s.drop(msg.Err)
				return
			}
			h(msg.Body)
		}
	}()

	var once sync.Once
	return subFunc(func() error {
		var err error
		once.Do(func() {
			if sub.Active() {
				err = sub.Unsubscribe()
			}
		})
		return err
	}), nil
}

// Publish sends payload as a JSON frame to topic.
func (s *Stomp) Publish(topic string, payload []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil || !s.connected.Load() {
		return ErrNotConnected
	}
	if err := conn.Send(topic, "application/json", payload); err != nil {
		if errors.Is(err, stomp.ErrAlreadyClosed) {
			s.drop(err)
		}
		return fmt.Errorf("send %s: %w", topic, err)
	}
	return nil
}

// Connected reports whether the session is believed live.
func (s *Stomp) Connected() bool { return s.connected.Load() }

// Close disconnects gracefully and waits for subscription goroutines.
func (s *Stomp) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.connected.Store(false)
		conn := s.conn
		s.conn = nil
		s.subs = nil
		s.mu.Unlock()
		if conn != nil {
			if derr := conn.Disconnect(); derr != nil {
				err = derr
				_ = conn.MustDisconnect()
			}
		}
		s.wg.Wait()
	})
	return err
}

func deadlineSoon() time.Time { return time.Now().Add(time.Second) }

// stompLogger routes go-stomp's logging onto slog so nothing reaches the
// terminal directly.
type stompLogger struct{ log *slog.Logger }

func (l stompLogger) Debugf(format string, v ...interface{}) { l.log.Debug(fmt.Sprintf(format, v...)) }

func (l stompLogger) Infof(format string, v ...interface{}) { l.log.Debug(fmt.Sprintf(format, v...)) }

func (l stompLogger) Warningf(format string, v ...interface{}) { l.log.Warn(fmt.Sprintf(format, v...)) }

func (l stompLogger) Errorf(format string, v ...interface{}) { l.log.Error(fmt.Sprintf(format, v...)) }

func (l stompLogger) Debug(msg string) { l.log.Debug(msg) }

func (l stompLogger) Info(msg string) { l.log.Debug(msg) }

func (l stompLogger) Warning(msg string) { l.log.Warn(msg) }

func (l stompLogger) Error(msg string) { l.log.Error(msg) }
