package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"petcare-console/internal/config"
)

// mqttTopics maps broker-relay destinations to the topics the robot uses
// on its own MQTT broker.
var mqttTopics = map[string]string{
	TopicStatus:  "/robot/status",
	TopicOffer:   "/robot/peer/offer",
	TopicControl: "/robot/control",
	TopicAnswer:  "/robot/peer/answer",
}

// MQTTTopic returns the robot-side MQTT topic for a bus destination.
// Unknown destinations pass through unchanged.
func MQTTTopic(topic string) string {
	if t, ok := mqttTopics[topic]; ok {
		return t
	}
	return topic
}

// MQTT talks to the robot's broker directly, bypassing the backend relay.
type MQTT struct {
	cfg config.BusConfig
	log *slog.Logger

	mu     sync.RWMutex
	client mqtt.Client
	lost   func(error)
	closed bool
}

// NewMQTT returns an unconnected MQTT bus.
func NewMQTT(cfg config.BusConfig, log *slog.Logger) *MQTT {
	if cfg.ClientID == "" {
		cfg.ClientID = "petcare-console-" + uuid.NewString()[:8]
	}
	return &MQTT{cfg: cfg, log: log}
}

// Connect opens the broker session. Automatic reconnects are disabled: a
// lost connection stays lost until a new session is created.
func (m *MQTT) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.URL).
		SetClientID(m.cfg.ClientID).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.log.Warn("mqtt connection lost", "err", err)
			m.mu.RLock()
			fn, closed := m.lost, m.closed
			m.mu.RUnlock()
			if fn != nil && !closed {
				fn(err)
			}
		})
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username).SetPassword(m.cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		client.Disconnect(0)
		return ErrNotConnected
	}
	m.client = client
	m.mu.Unlock()
	m.log.Info("mqtt connected", "broker", m.cfg.URL, "client_id", m.cfg.ClientID)
	return nil
}

// Subscribe registers h for topic at QoS 1.
func (m *MQTT) Subscribe(topic string, h Handler) (Subscription, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return nil, ErrNotConnected
	}
	remote := MQTTTopic(topic)
	token := client.Subscribe(remote, 1, func(_ mqtt.Client, msg mqtt.Message) {
		h(msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt subscribe %s: %w", remote, err)
	}
	return subFunc(func() error {
		if !client.IsConnected() {
			return nil
		}
		t := client.Unsubscribe(remote)
		t.Wait()
		return t.Error()
	}), nil
}

// Publish sends payload at QoS 1 and waits for the broker ack.
func (m *MQTT) Publish(topic string, payload []byte) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}
	token := client.Publish(MQTTTopic(topic), 1, false, payload)
	token.Wait()
	return token.Error()
}

// Connected reports the live client state.
func (m *MQTT) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil && m.client.IsConnected()
}

// OnDisconnect registers the loss callback. paho only reports losses of an
// established connection.
func (m *MQTT) OnDisconnect(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lost = fn
}

// Close disconnects, allowing 250ms for in-flight work.
func (m *MQTT) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.client != nil {
		m.client.Disconnect(250)
		m.client = nil
	}
	return nil
}
