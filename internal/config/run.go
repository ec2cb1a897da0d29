package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/star/trajevent/internal/propagation"
	"github.com/star/trajevent/internal/tle"
	"github.com/star/trajevent/internal/transform"
)

// Duration is a time.Duration that decodes from strings like "30s" or
// "1h30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Station is a ground station in geodetic coordinates.
type Station struct {
	Name   string  `yaml:"name,omitempty"`
	LatDeg float64 `yaml:"lat"`
	LonDeg float64 `yaml:"lon"`
	AltKm  float64 `yaml:"alt_km,omitempty"`
}

// Validate checks the coordinate ranges.
func (s *Station) Validate() error {
	if s.LatDeg < -90 || s.LatDeg > 90 {
		return fmt.Errorf("station latitude %g out of [-90, 90]", s.LatDeg)
	}
	if s.LonDeg < -180 || s.LonDeg > 360 {
		return fmt.Errorf("station longitude %g out of [-180, 360]", s.LonDeg)
	}
	return nil
}

// Observer converts the station for the propagation layer.
func (s *Station) Observer() *transform.Observer {
	if s == nil {
		return nil
	}
	o := transform.NewObserver(s.LatDeg, s.LonDeg, s.AltKm)
	return &o
}

// TLESource is either an inline element set or a file holding one or more
// of them.
type TLESource struct {
	Name  string `yaml:"name,omitempty"`
	Line1 string `yaml:"line1,omitempty"`
	Line2 string `yaml:"line2,omitempty"`
	// File is resolved relative to the run file.
	File string `yaml:"file,omitempty"`
	// NORADID selects an entry from File. Zero takes the first entry.
	NORADID int `yaml:"norad_id,omitempty"`
}

// Run is a stop-search run file.
type Run struct {
	Spacecraft string                 `yaml:"spacecraft"`
	TLE        TLESource              `yaml:"tle"`
	Start      time.Time              `yaml:"start"`
	Step       Duration               `yaml:"step,omitempty"`
	Span       Duration               `yaml:"span,omitempty"`
	Stops      []propagation.StopSpec `yaml:"stops"`
	Station    *Station               `yaml:"station,omitempty"`

	baseDir string
}

// LoadRun reads and validates a run file.
func LoadRun(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	run, err := ParseRun(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	run.baseDir = filepath.Dir(path)
	return run, nil
}

// ParseRun decodes and validates a run document. Unknown fields are
// rejected.
func ParseRun(data []byte) (*Run, error) {
	var run Run
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&run); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := run.Validate(); err != nil {
		return nil, err
	}
	return &run, nil
}

// Validate checks the run for missing or inconsistent fields.
func (r *Run) Validate() error {
	if r.TLE.File == "" && (r.TLE.Line1 == "" || r.TLE.Line2 == "") {
		return fmt.Errorf("tle: either file or line1/line2 is required")
	}
	if r.Start.IsZero() {
		return fmt.Errorf("start is required")
	}
	if len(r.Stops) == 0 {
		return fmt.Errorf("at least one stop is required")
	}
	for i, s := range r.Stops {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("stops[%d]: %w", i, err)
		}
	}
	if r.Station != nil {
		if err := r.Station.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SearchConfig overlays the run's step and span on def.
func (r *Run) SearchConfig(def SearchConfig) SearchConfig {
	if r.Step != 0 {
		def.Step = time.Duration(r.Step)
	}
	if r.Span != 0 {
		def.Span = time.Duration(r.Span)
	}
	return def
}

// Entry resolves the run's element set.
func (r *Run) Entry() (tle.Entry, error) {
	if r.TLE.File == "" {
		entries, err := tle.Parse(bytes.NewReader([]byte(r.TLE.Name+"\n"+r.TLE.Line1+"\n"+r.TLE.Line2+"\n")), nil)
		if err != nil {
			return tle.Entry{}, err
		}
		if len(entries) == 0 {
			return tle.Entry{}, fmt.Errorf("tle: inline element set is malformed")
		}
		return r.named(entries[0]), nil
	}

	path := r.TLE.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return tle.Entry{}, fmt.Errorf("tle: %w", err)
	}
	entries, err := tle.Parse(bytes.NewReader(data), nil)
	if err != nil {
		return tle.Entry{}, err
	}
	if len(entries) == 0 {
		return tle.Entry{}, fmt.Errorf("tle: no element sets in %s", path)
	}
	if r.TLE.NORADID == 0 {
		return r.named(entries[0]), nil
	}
	e, ok := tle.NewDataset(path, time.Now(), entries).Find(r.TLE.NORADID)
	if !ok {
		return tle.Entry{}, fmt.Errorf("tle: NORAD %d not in %s", r.TLE.NORADID, path)
	}
	return r.named(e), nil
}

func (r *Run) named(e tle.Entry) tle.Entry {
	if r.Spacecraft != "" {
		e.Name = r.Spacecraft
	}
	return e
}
