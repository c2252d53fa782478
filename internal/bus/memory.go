package bus

import (
	"context"
	"sync"
)

// Message is one payload seen by the in-memory bus.
type Message struct {
	Topic   string
	Payload []byte
}

// Memory is an in-process bus. Published messages are recorded and delivered
// synchronously to subscribers of the same topic, so two parties sharing one
// Memory talk to each other as through a broker.
type Memory struct {
	// ConnectErr, when set, makes Connect fail with it.
	ConnectErr error
	// PublishErr, when set, makes Publish fail with it.
	PublishErr error

	mu        sync.Mutex
	lost      func(error)
	connected bool
	closed    bool
	nextID    int
	subs      map[string]map[int]Handler
	published []Message
}

// NewMemory returns a disconnected in-memory bus.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[int]Handler)}
}

// Connect marks the bus live unless ConnectErr is set or ctx is done.
func (m *Memory) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	if m.closed {
		return ErrNotConnected
	}
	m.connected = true
	return nil
}

// Subscribe registers h for topic.
func (m *Memory) Subscribe(topic string, h Handler) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil, ErrNotConnected
	}
	id := m.nextID
	m.nextID++
	if m.subs[topic] == nil {
		m.subs[topic] = make(map[int]Handler)
	}
	m.subs[topic][id] = h
	return subFunc(func() error {
		m.mu.Lock()
		delete(m.subs[topic], id)
		m.mu.Unlock()
		return nil
	}), nil
}

// Publish records the message and delivers it to current subscribers.
func (m *Memory) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	if m.PublishErr != nil {
		err := m.PublishErr
		m.mu.Unlock()
		return err
	}
	body := append([]byte(nil), payload...)
	m.published = append(m.published, Message{Topic: topic, Payload: body})
	handlers := m.handlersLocked(topic)
	m.mu.Unlock()

	for _, h := range handlers {
		h(body)
	}
	return nil
}

// Deliver injects an inbound message as if a remote party had sent it. It
// is not recorded in Published.
func (m *Memory) Deliver(topic string, payload []byte) {
	m.mu.Lock()
	handlers := m.handlersLocked(topic)
	m.mu.Unlock()
	for _, h := range handlers {
		h(payload)
	}
}

func (m *Memory) handlersLocked(topic string) []Handler {
	out := make([]Handler, 0, len(m.subs[topic]))
	for _, h := range m.subs[topic] {
		out = append(out, h)
	}
	return out
}

// Published returns the messages published on topic, or on every topic when
// topic is empty.
func (m *Memory) Published(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Message
	for _, msg := range m.published {
		if topic == "" || msg.Topic == topic {
			out = append(out, msg)
		}
	}
	return out
}

// Subscribers reports how many handlers are registered for topic.
func (m *Memory) Subscribers(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[topic])
}

// Connected reports whether Connect succeeded and Close was not called.
func (m *Memory) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// OnDisconnect registers the callback Drop invokes.
func (m *Memory) OnDisconnect(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lost = fn
}

// Drop simulates the broker going away: Publish and Subscribe fail and the
// loss callback runs once. It does nothing when the bus is not live.
func (m *Memory) Drop(err error) {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return
	}
	m.connected = false
	fn := m.lost
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Close drops all subscriptions. Safe to call more than once.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.closed = true
	m.subs = make(map[string]map[int]Handler)
	return nil
}
