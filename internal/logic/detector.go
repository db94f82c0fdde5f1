package logic

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/featurestate/internal/threshold"
)

var (
	ErrDuplicateFeature = errors.New("duplicate feature")
	ErrNilTable         = errors.New("nil threshold table")
)

// track is one feature's table plus its resolution state.
type track struct {
	table       *threshold.Table
	res         Resolution
	sample      float64
	sampled     bool
	transitions int
	lastChange  time.Time
}

// Detector tracks a set of features and reports committed state changes.
// It is owned by a single goroutine.
type Detector struct {
	tracks        []*track
	byFeature     map[string]*track
	ready         bool
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewDetector creates a detector for the given tables. Each feature may
// appear at most once. The startTime is used for heartbeat uptime.
func NewDetector(tables []*threshold.Table, startTime time.Time) (*Detector, error) {
	d := &Detector{
		byFeature:     make(map[string]*track, len(tables)),
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	for i, tbl := range tables {
		if tbl == nil {
			return nil, fmt.Errorf("table %d: %w", i, ErrNilTable)
		}
		if _, ok := d.byFeature[tbl.Feature()]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFeature, tbl.Feature())
		}
		tr := &track{table: tbl}
		d.tracks = append(d.tracks, tr)
		d.byFeature[tbl.Feature()] = tr
	}
	return d, nil
}

// Process feeds every sample of the tick through its feature's resolver and
// returns the committed changes in sample order. Samples for unknown features
// and non-finite samples are skipped.
func (d *Detector) Process(input Input) []Event {
	var events []Event

	for _, s := range input.Samples {
		tr, ok := d.byFeature[s.Feature]
		if !ok {
			continue
		}

		from := tr.res.Current
		to, err := Resolve(tr.table, &tr.res, s.Value, input.Time)
		if errors.Is(err, ErrInvalidSample) {
			continue
		}
		if err != nil {
			// tables are validated on construction
			panic(fmt.Sprintf("resolve %s: %v", s.Feature, err))
		}
		tr.sample = s.Value
		tr.sampled = true

		if to == from {
			continue
		}
		if from != threshold.Uninitialized {
			tr.transitions++
		}
		tr.lastChange = input.Time
		events = append(events, Event{
			Timestamp: input.Time,
			Feature:   s.Feature,
			From:      from,
			To:        to,
			Sample:    s.Value,
		})
	}

	if !d.ready {
		d.ready = d.allResolved()
	}
	return events
}

func (d *Detector) allResolved() bool {
	for _, tr := range d.tracks {
		if tr.res.Current == threshold.Uninitialized {
			return false
		}
	}
	return true
}

// IsReady returns whether every feature has a committed state.
func (d *Detector) IsReady() bool {
	return d.ready
}

// CurrentState returns the committed state of a feature.
func (d *Detector) CurrentState(feature string) (threshold.State, bool) {
	tr, ok := d.byFeature[feature]
	if !ok {
		return threshold.Uninitialized, false
	}
	return tr.res.Current, true
}

// Features returns the tracked feature names in configuration order.
func (d *Detector) Features() []string {
	names := make([]string, len(d.tracks))
	for i, tr := range d.tracks {
		names[i] = tr.table.Feature()
	}
	return names
}

// Transitions returns the number of committed changes across all features,
// not counting each feature's initial state.
func (d *Detector) Transitions() int {
	total := 0
	for _, tr := range d.tracks {
		total += tr.transitions
	}
	return total
}

// Snapshot returns the state of every feature in configuration order.
func (d *Detector) Snapshot() []FeatureSnapshot {
	out := make([]FeatureSnapshot, len(d.tracks))
	for i, tr := range d.tracks {
		out[i] = FeatureSnapshot{
			Feature:      tr.table.Feature(),
			State:        tr.res.Current,
			Pending:      tr.res.Pending,
			PendingSince: tr.res.PendingSince,
			Sample:       tr.sample,
			Sampled:      tr.sampled,
			Transitions:  tr.transitions,
			LastChange:   tr.lastChange,
		}
	}
	return out
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet ready, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.ready {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp:   now,
		Uptime:      now.Sub(d.startTime),
		Transitions: d.Transitions(),
	}
}
