package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Transitions   int           `json:"transitions"`
	Features      []FeatureJSON `json:"features"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// FeatureJSON is the JSON representation of one feature.
type FeatureJSON struct {
	Name         string   `json:"name"`
	State        string   `json:"state"`
	Pending      string   `json:"pending,omitempty"`
	PendingSince string   `json:"pending_since,omitempty"`
	Sample       *float64 `json:"sample,omitempty"`
	Transitions  int      `json:"transitions"`
	LastChange   string   `json:"last_change,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	BaseTopic   string `json:"base_topic"`
	HTTPAddr    string `json:"http_addr"`
	ConfigPath  string `json:"config_path"`
}

// StateOrUnknown renders an unresolved state as UNKNOWN.
func StateOrUnknown(s string) string {
	if s == "" {
		return "UNKNOWN"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func buildInner(snap Snapshot) StatusInner {
	features := make([]FeatureJSON, len(snap.Features))
	for i, f := range snap.Features {
		fj := FeatureJSON{
			Name:         f.Feature,
			State:        StateOrUnknown(string(f.State)),
			Pending:      string(f.Pending),
			PendingSince: formatTime(f.PendingSince),
			Transitions:  f.Transitions,
			LastChange:   formatTime(f.LastChange),
		}
		if f.Sampled {
			v := f.Sample
			fj.Sample = &v
		}
		features[i] = fj
	}

	return StatusInner{
		Ready:         snap.Ready,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Transitions:   snap.Transitions,
		Features:      features,
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			BaseTopic:   snap.Config.BaseTopic,
			HTTPAddr:    snap.Config.HTTPAddr,
			ConfigPath:  snap.Config.ConfigPath,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("format status: %w", err)
	}
	return data, nil
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) ([]byte, error) {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, err := json.Marshal(StatusJSON{Status: inner})
	if err != nil {
		return nil, fmt.Errorf("format %s status: %w", event, err)
	}
	return data, nil
}
