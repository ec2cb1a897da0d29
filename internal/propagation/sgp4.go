package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/star/trajevent/internal/tle"
	"github.com/star/trajevent/internal/transform"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. Failures are detected by checking the output for NaN/Inf
// and unreasonable position magnitudes.

// SGP4Propagator wraps the go-satellite library for a single satellite.
type SGP4Propagator struct {
	sat     satellite.Satellite
	noradID int
	name    string
}

// NewSGP4Propagator creates an SGP4 propagator from a TLE entry.
//
// The lines are validated first because go-satellite calls log.Fatal on
// malformed input.
func NewSGP4Propagator(entry tle.Entry) (*SGP4Propagator, error) {
	if err := validateTLELines(entry.Line1, entry.Line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", entry.NORADID, err)
	}

	sat := satellite.TLEToSat(entry.Line1, entry.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", entry.NORADID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Propagator{sat: sat, noradID: entry.NORADID, name: entry.Name}, nil
}

// NORADID returns the catalog number.
func (p *SGP4Propagator) NORADID() int { return p.noradID }

// Name returns the satellite name.
func (p *SGP4Propagator) Name() string { return p.name }

func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// State returns the TEME state (km, km/s) at t, truncated to whole seconds.
func (p *SGP4Propagator) State(t time.Time) (transform.State, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(p.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	s := transform.State{
		R: transform.Vec3{X: pos.X, Y: pos.Y, Z: pos.Z},
		V: transform.Vec3{X: vel.X, Y: vel.Y, Z: vel.Z},
	}
	if !s.R.Finite() || !s.V.Finite() {
		return transform.State{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", p.noradID)
	}

	// Position magnitude should be between ~6200km and ~50000km.
	if mag := s.R.Norm(); mag < 6200.0 || mag > 50000.0 || math.IsNaN(mag) {
		return transform.State{}, fmt.Errorf("sgp4 propagation failed for NORAD %d: unreasonable position magnitude %.1f km", p.noradID, mag)
	}
	return s, nil
}
