// Package status provides a thread-safe status tracker for the featurestate
// daemon. It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"slices"
	"sync"
	"time"

	"github.com/sweeney/featurestate/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	BaseTopic   string
	HTTPAddr    string
	ConfigPath  string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Features      []logic.FeatureSnapshot
	Ready         bool
	Transitions   int
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update sets the per-feature states, readiness and transition total.
// Called from the run loop on every tick.
func (t *Tracker) Update(features []logic.FeatureSnapshot, ready bool, transitions int) {
	features = slices.Clone(features)
	t.mu.Lock()
	t.snap.Features = features
	t.snap.Ready = ready
	t.snap.Transitions = transitions
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Features = slices.Clone(t.snap.Features)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
