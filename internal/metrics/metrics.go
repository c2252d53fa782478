// Package metrics exposes the console's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatusMessagesTotal counts applied telemetry samples by sync strategy
	StatusMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petcare_status_messages_total",
			Help: "Telemetry samples applied to the robot status",
		},
		[]string{"strategy"},
	)

	// PollFailuresTotal counts failed status polls
	PollFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petcare_poll_failures_total",
			Help: "Status polls that failed and marked the robot offline",
		},
	)

	// CommandsSentTotal counts control messages by type (MOVE, STOP, MODE)
	CommandsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petcare_commands_sent_total",
			Help: "Control commands published to the robot",
		},
		[]string{"type"},
	)

	// MovesDroppedTotal counts move commands swallowed by the mode guard
	MovesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petcare_moves_dropped_total",
			Help: "Move commands dropped because the robot is in auto mode",
		},
	)

	// NotificationsTotal counts raised notifications by priority
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petcare_notifications_total",
			Help: "Notifications raised by the console",
		},
		[]string{"priority"},
	)

	// SignalingTotal counts offer/answer exchanges by result
	SignalingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petcare_signaling_exchanges_total",
			Help: "WebRTC offer/answer exchanges by result",
		},
		[]string{"result"},
	)

	// RobotOnline is 1 while the robot is considered online
	RobotOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petcare_robot_online",
			Help: "1 when the robot is online, 0 otherwise",
		},
	)

	// RobotBattery is the last known battery level
	RobotBattery = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petcare_robot_battery_percent",
			Help: "Last known robot battery level",
		},
	)
)

// RecordStatus records an applied telemetry sample
func RecordStatus(strategy string, online bool, battery float64) {
	StatusMessagesTotal.WithLabelValues(strategy).Inc()
	SetOnline(online)
	RobotBattery.Set(battery)
}

// SetOnline mirrors the online flag
func SetOnline(online bool) {
	if online {
		RobotOnline.Set(1)
		return
	}
	RobotOnline.Set(0)
}

// RecordCommand increments the command counter for a message type
func RecordCommand(kind string) {
	CommandsSentTotal.WithLabelValues(kind).Inc()
}

// RecordNotification increments the notification counter
func RecordNotification(priority string) {
	NotificationsTotal.WithLabelValues(priority).Inc()
}

// RecordSignaling increments the signaling counter ("answered", "failed", "ignored")
func RecordSignaling(result string) {
	SignalingTotal.WithLabelValues(result).Inc()
}
