package threshold

import (
	"errors"
	"fmt"
)

// Configuration errors returned by NewTable.
var (
	ErrEmptyTable         = errors.New("no thresholds configured")
	ErrUnsortedThresholds = errors.New("thresholds not sorted by midpoint")
	ErrNegativeWidth      = errors.New("negative threshold width")
	ErrInvalidThreshold   = errors.New("threshold midpoint or width is not finite")
	ErrEmptyState         = errors.New("empty state label")
	ErrNegativeDwell      = errors.New("negative min time in state")
)

// ConfigError reports which feature and band failed validation.
// Index is -1 when the problem is not tied to a single band.
type ConfigError struct {
	Feature string
	Index   int
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("feature %q: %v", e.Feature, e.Err)
	}
	return fmt.Sprintf("feature %q threshold %d: %v", e.Feature, e.Index, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
