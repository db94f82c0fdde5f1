// Package source provides feature sample sources with hardware abstraction.
// The MQTT source subscribes to pose/sensor topics, the GPIO source samples
// digital lines on Linux, and the fake source allows testing without either.
package source

import "github.com/sweeney/featurestate/internal/logic"

// Source reads the latest value of each feature it serves.
type Source interface {
	// Read returns one sample per feature that currently has a value.
	Read() ([]logic.Sample, error)

	// Close releases the source's resources.
	Close() error
}

// Multi combines several sources into one. Samples are returned in source
// order; a failing source does not hide the samples of the others.
type Multi []Source

// Read returns the samples of every source and the first error seen.
func (m Multi) Read() ([]logic.Sample, error) {
	var samples []logic.Sample
	var firstErr error
	for _, s := range m {
		got, err := s.Read()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		samples = append(samples, got...)
	}
	return samples, firstErr
}

// Close closes every source and returns the first error.
func (m Multi) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
