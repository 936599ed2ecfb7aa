// Package telemetry publishes orchestrator events over MQTT, with an
// abstraction for testing.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/pmaher/treatbot/internal/session"
)

// Topic is the MQTT topic for robot events.
const Topic = "pets/treatbot/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "pets/treatbot/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a robot event to the broker.
	// Returns error if publishing fails (must not crash the process).
	Publish(event session.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Robot RobotPayload `json:"robot"`
}

// RobotPayload contains the robot event details.
type RobotPayload struct {
	Timestamp string `json:"timestamp"`
	Role      string `json:"role"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	State     string `json:"state"`
	Score     int    `json:"score"`
	Cycles    int    `json:"cycles"`
}

// FormatPayload creates the JSON payload for a robot event.
func FormatPayload(role session.Role, event session.Event) ([]byte, error) {
	payload := Payload{
		Robot: RobotPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Role:      string(role),
			Event:     string(event.Type),
			Reason:    event.Reason,
			State:     string(event.State),
			Score:     event.Score,
			Cycles:    event.Cycles,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
