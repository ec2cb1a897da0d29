package stopcond

import (
	"fmt"
	"strings"

	"github.com/star/trajevent/internal/cyclic"
	"github.com/star/trajevent/internal/interp"
)

// ValueFunc pulls a real value from the parameter-evaluation layer.
type ValueFunc func() (float64, error)

// Const returns a ValueFunc that always yields v.
func Const(v float64) ValueFunc {
	return func() (float64, error) { return v, nil }
}

// Apsis selects apoapsis/periapsis gating.
type Apsis int

const (
	ApsisNone Apsis = iota
	Apoapsis
	Periapsis
)

func (a Apsis) String() string {
	switch a {
	case Apoapsis:
		return "apoapsis"
	case Periapsis:
		return "periapsis"
	}
	return "none"
}

// ParseApsis parses "apoapsis", "periapsis" or "" / "none".
func ParseApsis(s string) (Apsis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ApsisNone, nil
	case "apoapsis", "apoapse":
		return Apoapsis, nil
	case "periapsis", "periapse":
		return Periapsis, nil
	}
	return ApsisNone, fmt.Errorf("unknown apsis %q", s)
}

// Direction is the propagation direction.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// ParseDirection parses "forward" / "backward" (empty is forward).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "forward", "fwd":
		return Forward, nil
	case "backward", "backwards", "bwd":
		return Backward, nil
	}
	return Forward, fmt.Errorf("unknown direction %q", s)
}

// TimeUnit is the declared unit of a time stop parameter.
type TimeUnit int

const (
	NotTime TimeUnit = iota
	Seconds
	Minutes
	Hours
	Days
	// EpochDays is an absolute epoch counted in days (e.g. a modified
	// Julian date).
	EpochDays
	UnknownTime
)

// Multiplier converts one unit of u into seconds.
func (u TimeUnit) Multiplier() float64 {
	switch u {
	case Minutes:
		return 60
	case Hours:
		return 3600
	case Days, EpochDays:
		return 86400
	}
	return 1
}

// IsTime reports whether u marks a time condition.
func (u TimeUnit) IsTime() bool {
	return u != NotTime
}

func (u TimeUnit) String() string {
	switch u {
	case Seconds:
		return "seconds"
	case Minutes:
		return "minutes"
	case Hours:
		return "hours"
	case Days:
		return "days"
	case EpochDays:
		return "epoch_days"
	case UnknownTime:
		return "unknown_time"
	}
	return "not_time"
}

// TimeUnitForParam maps a stop-parameter type name to its time unit.
// Non-time parameters map to NotTime.
func TimeUnitForParam(typeName string) TimeUnit {
	switch typeName {
	case "ElapsedSecs":
		return Seconds
	case "ElapsedMins":
		return Minutes
	case "ElapsedHours":
		return Hours
	case "ElapsedDays":
		return Days
	}
	if strings.Contains(typeName, "ModJulian") {
		return EpochDays
	}
	return NotTime
}

// Config describes one stopping condition.
type Config struct {
	// Name identifies the stop parameter, e.g. "Sat.A1ModJulian". It is
	// used in diagnostics and by the ModJulian deactivation guard.
	Name string

	// Goal is the fixed goal value, used when GoalFunc is nil.
	Goal float64
	// DynamicGoal marks the goal as another parameter's live value, read
	// through GoalFunc. New rejects a dynamic goal without a GoalFunc.
	DynamicGoal bool
	// GoalFunc re-evaluates a dynamic goal on every call.
	GoalFunc ValueFunc

	// Value pulls the tracked scalar for EvaluateAt.
	Value ValueFunc

	Cycle     cyclic.Kind
	Apsis     Apsis
	TimeUnit  TimeUnit
	Direction Direction

	// Interpolator is required for non-time conditions. Its BufferSize
	// sets the ring capacity.
	Interpolator interp.Interpolator

	// Eccentricity is required for apsis conditions.
	Eccentricity ValueFunc
	// MinEccentricity defaults to DefaultMinEccentricity.
	MinEccentricity float64
	// RadiusMag and RangeLimit optionally restrict periapsis detection to
	// radii at or below RangeLimit. A zero RangeLimit disables the check.
	RadiusMag  ValueFunc
	RangeLimit float64
}
