// Package threshold holds the hysteresis band model for a single feature.
// A Table is built once from configuration, validated, and is read-only
// afterwards so it can be shared by any number of resolvers.
package threshold

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// State is a free-form state label taken from configuration.
type State string

// Uninitialized is the label of a resolution that has not seen a sample yet.
// Tables reject it as a band label.
const Uninitialized State = ""

// Threshold is one hysteresis band. Samples at or below LowEdge resolve to
// LowState, samples at or above HighEdge move on to the next band.
type Threshold struct {
	Midpoint  float64
	Width     float64
	LowState  State
	HighState State
}

// LowEdge is the value a sample must reach to fall into LowState.
func (t Threshold) LowEdge() float64 {
	return t.Midpoint - t.Width*0.5
}

// HighEdge is the value a sample must reach to leave this band upwards.
func (t Threshold) HighEdge() float64 {
	return t.Midpoint + t.Width*0.5
}

// Table is the ordered set of bands for one feature.
type Table struct {
	feature        string
	thresholds     []Threshold
	minTimeInState time.Duration
}

// NewTable validates and copies the thresholds. Thresholds must already be
// sorted by midpoint; they are never re-sorted.
func NewTable(feature string, thresholds []Threshold, minTimeInState time.Duration) (*Table, error) {
	if len(thresholds) == 0 {
		return nil, &ConfigError{Feature: feature, Index: -1, Err: ErrEmptyTable}
	}
	if minTimeInState < 0 {
		return nil, &ConfigError{Feature: feature, Index: -1, Err: ErrNegativeDwell}
	}

	for i, t := range thresholds {
		if math.IsNaN(t.Midpoint) || math.IsInf(t.Midpoint, 0) ||
			math.IsNaN(t.Width) || math.IsInf(t.Width, 0) {
			return nil, &ConfigError{Feature: feature, Index: i, Err: ErrInvalidThreshold}
		}
		if t.Width < 0 {
			return nil, &ConfigError{Feature: feature, Index: i, Err: ErrNegativeWidth}
		}
		if t.LowState == Uninitialized || t.HighState == Uninitialized {
			return nil, &ConfigError{Feature: feature, Index: i, Err: ErrEmptyState}
		}
		if i > 0 && t.Midpoint < thresholds[i-1].Midpoint {
			return nil, &ConfigError{Feature: feature, Index: i, Err: ErrUnsortedThresholds}
		}
	}

	return &Table{
		feature:        feature,
		thresholds:     slices.Clone(thresholds),
		minTimeInState: minTimeInState,
	}, nil
}

// Feature returns the identifier of the signal this table applies to.
func (t *Table) Feature() string {
	return t.feature
}

// MinTimeInState returns how long a candidate state must persist before it
// is committed.
func (t *Table) MinTimeInState() time.Duration {
	return t.minTimeInState
}

// Len returns the number of bands.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.thresholds)
}

// At returns the i-th band in ascending midpoint order.
func (t *Table) At(i int) Threshold {
	return t.thresholds[i]
}

// Thresholds returns a copy of the bands in ascending midpoint order.
func (t *Table) Thresholds() []Threshold {
	return slices.Clone(t.thresholds)
}

// States lists the distinct labels from lowest to highest band.
func (t *Table) States() []State {
	var states []State
	add := func(s State) {
		if !slices.Contains(states, s) {
			states = append(states, s)
		}
	}
	for _, th := range t.thresholds {
		add(th.LowState)
		add(th.HighState)
	}
	return states
}

func (t *Table) String() string {
	return fmt.Sprintf("%s (%d thresholds, min %v)", t.feature, len(t.thresholds), t.minTimeInState)
}
