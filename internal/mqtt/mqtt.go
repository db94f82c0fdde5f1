// Package mqtt publishes resolved feature states to MQTT, with abstraction
// for testing.
package mqtt

import (
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/featurestate/internal/logic"
)

// DefaultBaseTopic is the topic prefix used when none is configured.
const DefaultBaseTopic = "featurestate"

// StateTopic is the retained topic carrying a feature's committed state.
func StateTopic(base, feature string) string {
	return base + "/" + feature + "/state"
}

// SystemTopic is the topic for system lifecycle events.
func SystemTopic(base string) string {
	return base + "/system"
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a committed state change to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Options configures a broker connection.
type Options struct {
	Broker    string
	ClientID  string
	Username  string
	Password  string
	BaseTopic string
}

// NewClientOptions returns paho options with auto-reconnect enabled.
func NewClientOptions(o Options) *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	return opts
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT state message.
type Payload struct {
	Feature FeaturePayload `json:"feature"`
}

// FeaturePayload contains the state change details.
type FeaturePayload struct {
	Name      string  `json:"name"`
	Timestamp string  `json:"timestamp"`
	State     string  `json:"state"`
	Previous  string  `json:"previous,omitempty"`
	Sample    float64 `json:"sample"`
}

// FormatPayload creates the JSON payload for a state change.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Feature: FeaturePayload{
			Name:      event.Feature,
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
			State:     string(event.To),
			Previous:  string(event.From),
			Sample:    event.Sample,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
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
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
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
