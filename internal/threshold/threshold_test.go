package threshold

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openClosed() []Threshold {
	return []Threshold{{Midpoint: 0.5, Width: 0.2, LowState: "Open", HighState: "Closed"}}
}

func TestEdges(t *testing.T) {
	th := Threshold{Midpoint: 0.5, Width: 0.2}
	assert.InDelta(t, 0.4, th.LowEdge(), 1e-12)
	assert.InDelta(t, 0.6, th.HighEdge(), 1e-12)

	zero := Threshold{Midpoint: 3}
	assert.Equal(t, 3.0, zero.LowEdge())
	assert.Equal(t, 3.0, zero.HighEdge())
}

func TestEdgesBracketMidpoint(t *testing.T) {
	widths := []float64{0, 0.001, 0.2, 1, 17.5}
	midpoints := []float64{-100, -0.5, 0, 0.5, 42}
	for _, m := range midpoints {
		for _, w := range widths {
			th := Threshold{Midpoint: m, Width: w}
			assert.LessOrEqual(t, th.LowEdge(), th.Midpoint)
			assert.LessOrEqual(t, th.Midpoint, th.HighEdge())
		}
	}
}

func TestNewTable(t *testing.T) {
	tbl, err := NewTable("palm_up", openClosed(), 100*time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, "palm_up", tbl.Feature())
	assert.Equal(t, 100*time.Millisecond, tbl.MinTimeInState())
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, State("Open"), tbl.At(0).LowState)
	assert.Equal(t, openClosed(), tbl.Thresholds())
}

func TestNewTableCopiesInput(t *testing.T) {
	in := openClosed()
	tbl, err := NewTable("palm_up", in, 0)
	require.NoError(t, err)

	in[0].Midpoint = 99
	assert.Equal(t, 0.5, tbl.At(0).Midpoint)

	out := tbl.Thresholds()
	out[0].LowState = "Mutated"
	assert.Equal(t, State("Open"), tbl.At(0).LowState)
}

func TestNewTableErrors(t *testing.T) {
	tests := []struct {
		name       string
		thresholds []Threshold
		minTime    time.Duration
		want       error
		wantIndex  int
	}{
		{
			name:      "empty",
			want:      ErrEmptyTable,
			wantIndex: -1,
		},
		{
			name: "unsorted",
			thresholds: []Threshold{
				{Midpoint: 1.0, Width: 0.1, LowState: "A", HighState: "B"},
				{Midpoint: 0.5, Width: 0.1, LowState: "B", HighState: "C"},
			},
			want:      ErrUnsortedThresholds,
			wantIndex: 1,
		},
		{
			name: "negative width",
			thresholds: []Threshold{
				{Midpoint: 0.5, Width: -0.1, LowState: "A", HighState: "B"},
			},
			want:      ErrNegativeWidth,
			wantIndex: 0,
		},
		{
			name: "nan midpoint",
			thresholds: []Threshold{
				{Midpoint: math.NaN(), Width: 0.1, LowState: "A", HighState: "B"},
			},
			want:      ErrInvalidThreshold,
			wantIndex: 0,
		},
		{
			name: "infinite width",
			thresholds: []Threshold{
				{Midpoint: 0, Width: math.Inf(1), LowState: "A", HighState: "B"},
			},
			want:      ErrInvalidThreshold,
			wantIndex: 0,
		},
		{
			name: "empty label",
			thresholds: []Threshold{
				{Midpoint: 0.5, Width: 0.1, LowState: "A", HighState: "B"},
				{Midpoint: 0.7, Width: 0.1, LowState: "B", HighState: ""},
			},
			want:      ErrEmptyState,
			wantIndex: 1,
		},
		{
			name:       "negative dwell",
			thresholds: openClosed(),
			minTime:    -time.Second,
			want:       ErrNegativeDwell,
			wantIndex:  -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := NewTable("f", tt.thresholds, tt.minTime)
			assert.Nil(t, tbl)
			require.ErrorIs(t, err, tt.want)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "f", cfgErr.Feature)
			assert.Equal(t, tt.wantIndex, cfgErr.Index)
		})
	}
}

func TestNewTableEqualMidpointsAllowed(t *testing.T) {
	_, err := NewTable("f", []Threshold{
		{Midpoint: 0.5, Width: 0, LowState: "A", HighState: "B"},
		{Midpoint: 0.5, Width: 0.2, LowState: "B", HighState: "C"},
	}, 0)
	assert.NoError(t, err)
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Feature: "wrist", Index: 2, Err: ErrNegativeWidth}
	assert.Equal(t, `feature "wrist" threshold 2: negative threshold width`, err.Error())

	err = &ConfigError{Feature: "wrist", Index: -1, Err: ErrEmptyTable}
	assert.Equal(t, `feature "wrist": no thresholds configured`, err.Error())
}

func TestStates(t *testing.T) {
	tbl, err := NewTable("f", []Threshold{
		{Midpoint: 0.2, Width: 0.1, LowState: "Low", HighState: "Mid"},
		{Midpoint: 0.8, Width: 0.1, LowState: "Mid", HighState: "High"},
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, []State{"Low", "Mid", "High"}, tbl.States())
}

func TestNilTableLen(t *testing.T) {
	var tbl *Table
	assert.Equal(t, 0, tbl.Len())
}
