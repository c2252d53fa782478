// Package bus abstracts the publish/subscribe channel between the console and
// the robot. Topics use the backend's STOMP destination names; backends that
// speak a different dialect map them.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"petcare-console/internal/config"
)

// Topic names shared by the console and the robot.
const (
	TopicStatus  = "/sub/robot/status"
	TopicOffer   = "/sub/peer/offer"
	TopicControl = "/pub/robot/control"
	TopicAnswer  = "/pub/peer/answer"
)

// ErrNotConnected is returned by Publish and Subscribe before Connect
// succeeded or after Close.
var ErrNotConnected = errors.New("bus: not connected")

// Handler receives the raw payload of one message.
type Handler func(payload []byte)

// Subscription cancels a Subscribe registration.
type Subscription interface {
	Unsubscribe() error
}

// Bus is a message-bus connection. Close is idempotent.
type Bus interface {
	Connect(ctx context.Context) error
	Subscribe(topic string, h Handler) (Subscription, error)
	Publish(topic string, payload []byte) error
	Connected() bool
	// OnDisconnect registers fn to run once when a live connection is lost.
	// A voluntary Close does not call it.
	OnDisconnect(fn func(error))
	Close() error
}

// New builds the backend selected by cfg.Backend.
func New(cfg config.BusConfig, log *slog.Logger) (Bus, error) {
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Backend {
	case "stomp", "":
		return NewStomp(cfg, log), nil
	case "mqtt":
		return NewMQTT(cfg, log), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown bus backend: %s", cfg.Backend)
	}
}

type subFunc func() error

func (f subFunc) Unsubscribe() error { return f() }
