package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/star/trajevent/internal/eclipse"
)

// Interval is one raw event inside an EventGroup.
type Interval struct {
	Start float64 `yaml:"start" json:"start"`
	End   float64 `yaml:"end" json:"end"`
}

// EventGroup holds the raw events of one occulting body and shadow kind,
// the shape produced by the geometry search.
type EventGroup struct {
	Body   string       `yaml:"body" json:"body"`
	Kind   eclipse.Kind `yaml:"kind" json:"kind"`
	Events []Interval   `yaml:"events" json:"events"`
}

// EventsFile is the input of the merge command and the merge API.
type EventsFile struct {
	Spacecraft string `yaml:"spacecraft" json:"spacecraft"`
	// SecondsPerUnit scales report durations. Zero keeps the default.
	SecondsPerUnit float64            `yaml:"seconds_per_unit,omitempty" json:"seconds_per_unit,omitempty"`
	Groups         []EventGroup       `yaml:"groups,omitempty" json:"groups,omitempty"`
	Events         []eclipse.RawEvent `yaml:"events,omitempty" json:"events,omitempty"`
}

// LoadEvents reads an events file. Files ending in .json are decoded as
// JSON, everything else as YAML.
func LoadEvents(path string) (*EventsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}
	var f *EventsFile
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err = ParseEventsJSON(data)
	} else {
		f, err = ParseEvents(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// ParseEvents decodes a YAML events document.
func ParseEvents(data []byte) (*EventsFile, error) {
	var f EventsFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// ParseEventsJSON decodes a JSON events document.
func ParseEventsJSON(data []byte) (*EventsFile, error) {
	var f EventsFile
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate rejects non-finite epochs and inverted intervals.
func (f *EventsFile) Validate() error {
	for i, g := range f.Groups {
		for j, ev := range g.Events {
			if err := checkInterval(ev.Start, ev.End); err != nil {
				return fmt.Errorf("groups[%d].events[%d]: %w", i, j, err)
			}
		}
	}
	for i, ev := range f.Events {
		if err := checkInterval(ev.Start, ev.End); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}
	if f.SecondsPerUnit < 0 || !finite(f.SecondsPerUnit) {
		return fmt.Errorf("seconds_per_unit must be a non-negative finite number")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkInterval(start, end float64) error {
	if !finite(start) || !finite(end) {
		return fmt.Errorf("non-finite epoch (start %g, end %g)", start, end)
	}
	if end < start {
		return fmt.Errorf("end %g before start %g", end, start)
	}
	return nil
}

// RawEvents flattens the groups, in order, followed by the loose events.
func (f *EventsFile) RawEvents() []eclipse.RawEvent {
	var out []eclipse.RawEvent
	for _, g := range f.Groups {
		for _, ev := range g.Events {
			out = append(out, eclipse.RawEvent{Start: ev.Start, End: ev.End, Kind: g.Kind, Body: g.Body})
		}
	}
	return append(out, f.Events...)
}

// Report builds the report writer for this file. defaultScale applies when
// the file does not set seconds_per_unit.
func (f *EventsFile) Report(defaultScale float64) eclipse.Report {
	scale := f.SecondsPerUnit
	if scale == 0 {
		scale = defaultScale
	}
	return eclipse.Report{Spacecraft: f.Spacecraft, SecondsPerUnit: scale}
}
