// Package logic contains the pure state-resolution logic for feature tracking.
// This package has NO external dependencies (no MQTT, GPIO, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/featurestate/internal/threshold"
)

// Resolution is the runtime state of one tracked feature instance.
// It must not be shared between instances or mutated concurrently.
type Resolution struct {
	// Last committed state, or threshold.Uninitialized before the first sample
	Current threshold.State
	// Candidate state waiting out the dwell time
	Pending threshold.State
	// Time when Pending was first observed
	PendingSince time.Time
}

// Sample is one feature value read from a source.
type Sample struct {
	Feature string
	Value   float64
}

// Input is everything sampled on a single tick.
type Input struct {
	Samples []Sample
	Time    time.Time
}

// Event represents a committed state change to be published.
// From is threshold.Uninitialized for the first state of a feature.
type Event struct {
	Timestamp time.Time
	Feature   string
	From      threshold.State
	To        threshold.State
	Sample    float64
}

// Initial reports whether the event is the first state of its feature.
func (e Event) Initial() bool {
	return e.From == threshold.Uninitialized
}

// FeatureSnapshot is a point-in-time view of one tracked feature.
type FeatureSnapshot struct {
	Feature      string
	State        threshold.State
	Pending      threshold.State
	PendingSince time.Time
	Sample       float64
	Sampled      bool
	Transitions  int
	LastChange   time.Time
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp   time.Time
	Uptime      time.Duration
	Transitions int
}
