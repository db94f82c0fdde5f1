package logic

import (
	"errors"
	"math"
	"time"

	"github.com/sweeney/featurestate/internal/threshold"
)

// Resolution errors. Tables built with threshold.NewTable never produce
// ErrNoApplicableThreshold.
var (
	ErrNoApplicableThreshold = errors.New("no applicable threshold")
	ErrInvalidSample         = errors.New("sample is not finite")
)

// Classify maps a sample to its raw hysteresis state.
//
// Bands are walked from the lowest midpoint up. A sample at or below a band's
// low edge resolves to that band's LowState; at or above the high edge it moves
// on to the next band; above every band it resolves to the last HighState.
// Strictly inside a band the previous raw state is kept if it is one of the
// band's two labels. Otherwise (first sample, or a jump from a state the band
// does not border) the nearer edge wins, ties going to LowState.
func Classify(table *threshold.Table, sample float64, previous threshold.State) (threshold.State, error) {
	n := table.Len()
	if n == 0 {
		return threshold.Uninitialized, ErrNoApplicableThreshold
	}
	if math.IsNaN(sample) || math.IsInf(sample, 0) {
		return threshold.Uninitialized, ErrInvalidSample
	}

	for i := 0; i < n; i++ {
		th := table.At(i)
		lo, hi := th.LowEdge(), th.HighEdge()
		if sample <= lo {
			return th.LowState, nil
		}
		if sample >= hi {
			continue
		}

		// dead zone
		if previous == th.LowState || previous == th.HighState {
			return previous, nil
		}
		if hi-sample < sample-lo {
			return th.HighState, nil
		}
		return th.LowState, nil
	}
	return table.At(n - 1).HighState, nil
}

// Resolve feeds one sample into r and returns the committed state.
//
// The first sample commits immediately. After that a new raw state has to
// persist for the table's MinTimeInState before it replaces r.Current; a
// raw result matching r.Current cancels any pending candidate. On error r is
// left untouched.
func Resolve(table *threshold.Table, r *Resolution, sample float64, now time.Time) (threshold.State, error) {
	raw, err := Classify(table, sample, r.raw())
	if err != nil {
		return r.Current, err
	}

	if r.Current == threshold.Uninitialized {
		r.Current = raw
		r.clearPending()
		return r.Current, nil
	}

	if raw == r.Current {
		r.clearPending()
		return r.Current, nil
	}

	if r.Pending != raw {
		r.Pending = raw
		r.PendingSince = now
	}

	if now.Sub(r.PendingSince) >= table.MinTimeInState() {
		r.Current = raw
		r.clearPending()
	}
	return r.Current, nil
}

// raw is the most recent raw classification: the pending candidate if there
// is one, otherwise the committed state.
func (r *Resolution) raw() threshold.State {
	if r.Pending != threshold.Uninitialized {
		return r.Pending
	}
	return r.Current
}

func (r *Resolution) clearPending() {
	r.Pending = threshold.Uninitialized
	r.PendingSince = time.Time{}
}
