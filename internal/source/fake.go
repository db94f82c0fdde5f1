package source

import (
	"errors"

	"github.com/sweeney/featurestate/internal/logic"
)

// FakeSource is a test double that returns scripted samples.
type FakeSource struct {
	// Ticks contains the samples to return, one entry per Read call.
	Ticks [][]logic.Sample

	// index tracks current position in Ticks
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeSource creates a FakeSource with the given ticks.
func NewFakeSource(ticks ...[]logic.Sample) *FakeSource {
	return &FakeSource{Ticks: ticks}
}

// Read returns the next scripted tick.
// If ticks are exhausted, returns the last tick repeatedly.
func (f *FakeSource) Read() ([]logic.Sample, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}

	if len(f.Ticks) == 0 {
		return nil, errors.New("no samples configured")
	}

	tick := f.Ticks[f.index]
	if f.index < len(f.Ticks)-1 {
		f.index++
	}

	return tick, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the source to the first tick.
func (f *FakeSource) Reset() {
	f.index = 0
	f.Closed = false
}

// Repeat returns n copies of the same tick.
func Repeat(tick []logic.Sample, n int) [][]logic.Sample {
	out := make([][]logic.Sample, n)
	for i := range out {
		out[i] = tick
	}
	return out
}
