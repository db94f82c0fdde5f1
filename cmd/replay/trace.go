package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/featurestate/internal/logic"
)

var ErrUnorderedTrace = errors.New("trace times go backwards")

// maxTraceSeconds bounds offsets to what a time.Duration can hold.
const maxTraceSeconds = math.MaxInt64 / float64(time.Second)

// Step is one trace row: a sample taken at an offset from the trace start.
type Step struct {
	At     time.Duration
	Sample logic.Sample
}

// ParseTrace reads "seconds,feature,value" rows. Blank lines and lines
// starting with # are skipped, as is a leading header row.
func ParseTrace(r io.Reader) ([]Step, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var steps []Step
	var last time.Duration
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if row == 1 && strings.EqualFold(rec[0], "seconds") {
			continue
		}

		secs, err := strconv.ParseFloat(rec[0], 64)
		if err != nil || math.IsNaN(secs) || secs < 0 || secs >= maxTraceSeconds {
			return nil, fmt.Errorf("row %d: bad time %q", row, rec[0])
		}
		value, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad value %q", row, rec[2])
		}
		if rec[1] == "" {
			return nil, fmt.Errorf("row %d: empty feature", row)
		}

		at := time.Duration(math.Round(secs * float64(time.Second)))
		if at < last {
			return nil, fmt.Errorf("row %d: %w", row, ErrUnorderedTrace)
		}
		last = at
		steps = append(steps, Step{At: at, Sample: logic.Sample{Feature: rec[1], Value: value}})
	}
	return steps, nil
}

// Replay feeds the steps through d, grouping rows that share a time into
// one tick, and returns every committed change.
func Replay(d *logic.Detector, steps []Step, start time.Time) []logic.Event {
	var events []logic.Event
	for i := 0; i < len(steps); {
		j := i
		var samples []logic.Sample
		for j < len(steps) && steps[j].At == steps[i].At {
			samples = append(samples, steps[j].Sample)
			j++
		}
		events = append(events, d.Process(logic.Input{Samples: samples, Time: start.Add(steps[i].At)})...)
		i = j
	}
	return events
}
