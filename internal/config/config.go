// Package config loads feature threshold definitions from YAML and process
// settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/featurestate/internal/source"
	"github.com/sweeney/featurestate/internal/threshold"
)

var (
	ErrNoFeatures       = errors.New("no features configured")
	ErrDuplicateFeature = errors.New("duplicate feature")
	ErrNoSource         = errors.New("feature has no source")
	ErrTwoSources       = errors.New("feature has both mqtt_topic and gpio_line")
)

// File is the YAML document describing every tracked feature.
//
//	min_time_in_state: 100ms
//	features:
//	  - feature: grip
//	    mqtt_topic: pose/right/grip
//	    thresholds:
//	      - {midpoint: 0.5, width: 0.2, low: Open, high: Closed}
type File struct {
	// Applies to features that do not set their own.
	MinTimeInState time.Duration `yaml:"min_time_in_state"`
	GPIOChip       string        `yaml:"gpio_chip"`
	Features       []Feature     `yaml:"features"`
}

// Feature is one feature's thresholds and where its samples come from.
type Feature struct {
	Feature        string         `yaml:"feature"`
	MinTimeInState *time.Duration `yaml:"min_time_in_state"`
	Thresholds     []Threshold    `yaml:"thresholds"`

	MQTTTopic string `yaml:"mqtt_topic"`
	GPIOLine  *int   `yaml:"gpio_line"`
	Invert    bool   `yaml:"invert"`
}

// Threshold is the YAML form of threshold.Threshold.
type Threshold struct {
	Midpoint float64 `yaml:"midpoint"`
	Width    float64 `yaml:"width"`
	Low      string  `yaml:"low"`
	High     string  `yaml:"high"`
}

// Load reads and validates a config file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML config.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if _, err := f.Tables(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Tables builds one validated table per feature, in file order.
func (f *File) Tables() ([]*threshold.Table, error) {
	if len(f.Features) == 0 {
		return nil, ErrNoFeatures
	}

	seen := make(map[string]bool, len(f.Features))
	tables := make([]*threshold.Table, 0, len(f.Features))
	for _, feat := range f.Features {
		if seen[feat.Feature] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFeature, feat.Feature)
		}
		seen[feat.Feature] = true

		minTime := f.MinTimeInState
		if feat.MinTimeInState != nil {
			minTime = *feat.MinTimeInState
		}

		ths := make([]threshold.Threshold, len(feat.Thresholds))
		for i, t := range feat.Thresholds {
			ths[i] = threshold.Threshold{
				Midpoint:  t.Midpoint,
				Width:     t.Width,
				LowState:  threshold.State(t.Low),
				HighState: threshold.State(t.High),
			}
		}

		tbl, err := threshold.NewTable(feat.Feature, ths, minTime)
		if err != nil {
			return nil, err
		}
		tables = append(tables, tbl)
	}
	return tables, nil
}

// Sources splits the features into MQTT subscriptions and GPIO lines.
// Every feature needs exactly one of the two.
func (f *File) Sources() ([]source.Subscription, []source.GPIOLine, error) {
	var subs []source.Subscription
	var lines []source.GPIOLine
	for _, feat := range f.Features {
		switch {
		case feat.MQTTTopic != "" && feat.GPIOLine != nil:
			return nil, nil, fmt.Errorf("%w: %q", ErrTwoSources, feat.Feature)
		case feat.MQTTTopic != "":
			subs = append(subs, source.Subscription{Feature: feat.Feature, Topic: feat.MQTTTopic})
		case feat.GPIOLine != nil:
			lines = append(lines, source.GPIOLine{Feature: feat.Feature, Offset: *feat.GPIOLine, Invert: feat.Invert})
		default:
			return nil, nil, fmt.Errorf("%w: %q", ErrNoSource, feat.Feature)
		}
	}
	return subs, lines, nil
}
