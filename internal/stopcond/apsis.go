package stopcond

import (
	"fmt"

	"github.com/star/trajevent/internal/fault"
)

// DefaultMinEccentricity keeps osculations of near-circular orbits from
// masking the apsis.
const DefaultMinEccentricity = 1.0e-6

// ApsisGate decides whether an R·V crossing is a physical apsis.
//
// Moving forward in time, R·V goes from positive to negative at apoapsis
// (previous >= goal) and from negative to positive at periapsis
// (previous <= goal). Backward propagation flips both.
type ApsisGate struct {
	Kind            Apsis
	Direction       Direction
	Eccentricity    ValueFunc
	MinEccentricity float64
	RadiusMag       ValueFunc
	RangeLimit      float64
}

// Ready reports whether the previous sample permits testing for the apsis.
func (g ApsisGate) Ready(previous, goal float64) (bool, error) {
	if g.Kind == ApsisNone {
		return true, nil
	}
	if g.Eccentricity == nil {
		return false, fault.New(fault.MissingCollaborator, "stopcond.ApsisGate",
			"%s condition has no eccentricity provider", g.Kind)
	}

	ecc, err := g.Eccentricity()
	if err != nil {
		return false, fmt.Errorf("evaluating eccentricity: %w", err)
	}
	minEcc := g.MinEccentricity
	if minEcc <= 0 {
		minEcc = DefaultMinEccentricity
	}
	if ecc < minEcc {
		return false, nil
	}

	if g.Kind == Periapsis && g.RangeLimit > 0 && g.RadiusMag != nil {
		rmag, err := g.RadiusMag()
		if err != nil {
			return false, fmt.Errorf("evaluating radius magnitude: %w", err)
		}
		if rmag > g.RangeLimit {
			return false, nil
		}
	}

	backward := g.Direction == Backward
	switch g.Kind {
	case Apoapsis:
		return (backward && previous <= goal) || (!backward && previous >= goal), nil
	case Periapsis:
		return (backward && previous >= goal) || (!backward && previous <= goal), nil
	}
	return true, nil
}
