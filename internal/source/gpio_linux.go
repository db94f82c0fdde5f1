//go:build linux

package source

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/featurestate/internal/logic"
)

// GPIOSource samples digital lines using the Linux GPIO character device.
type GPIOSource struct {
	chip     *gpiocdev.Chip
	lines    []*gpiocdev.Line
	features []string
}

// NewGPIOSource requests every configured line as an input.
func NewGPIOSource(chipName string, cfg []GPIOLine) (*GPIOSource, error) {
	if chipName == "" {
		chipName = DefaultChip
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	g := &GPIOSource{chip: chip}
	for _, l := range cfg {
		// Pull-down matches Pi boot defaults.
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
		if l.Invert {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(l.Offset, opts...)
		if err != nil {
			g.Close()
			return nil, fmt.Errorf("request line %d for %s: %w", l.Offset, l.Feature, err)
		}
		g.lines = append(g.lines, line)
		g.features = append(g.features, l.Feature)
	}
	return g, nil
}

// Read returns the logical value of every line as 0 or 1.
func (g *GPIOSource) Read() ([]logic.Sample, error) {
	samples := make([]logic.Sample, 0, len(g.lines))
	for i, line := range g.lines {
		v, err := line.Value()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", g.features[i], err)
		}
		samples = append(samples, logic.Sample{Feature: g.features[i], Value: float64(v)})
	}
	return samples, nil
}

// Close releases the lines and the chip.
// Lines are reconfigured to input with pull-down (Pi boot defaults) first.
func (g *GPIOSource) Close() error {
	var errs []error

	for i, line := range g.lines {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure %s: %w", g.features[i], err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", g.features[i], err))
		}
	}
	if g.chip != nil {
		if err := g.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
