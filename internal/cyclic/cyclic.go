// Package cyclic maps angle-like values into their canonical windows.
package cyclic

import (
	"fmt"
	"math"
	"strings"

	"github.com/star/trajevent/internal/fault"
)

// Kind describes the cycle of a parameter.
type Kind int

const (
	NotCyclic Kind = iota
	Zero90
	Zero180
	Zero360
	PlusMinus90
	PlusMinus180
	// Other is cyclic with no fixed window; Range reports it as not applicable.
	Other
)

var kindNames = map[Kind]string{
	NotCyclic:    "not_cyclic",
	Zero90:       "zero_90",
	Zero180:      "zero_180",
	Zero360:      "zero_360",
	PlusMinus90:  "plus_minus_90",
	PlusMinus180: "plus_minus_180",
	Other:        "other",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the names produced by String as well as the short
// forms "0-360", "+-180" and friends. The empty string is NotCyclic.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "not_cyclic":
		return NotCyclic, nil
	case "zero_90", "0-90":
		return Zero90, nil
	case "zero_180", "0-180":
		return Zero180, nil
	case "zero_360", "0-360":
		return Zero360, nil
	case "plus_minus_90", "+-90":
		return PlusMinus90, nil
	case "plus_minus_180", "+-180":
		return PlusMinus180, nil
	case "other":
		return Other, nil
	}
	return NotCyclic, fmt.Errorf("unknown cycle kind %q", s)
}

// Range returns the canonical [min, max] window for kind. ok is false for
// NotCyclic and Other.
func Range(kind Kind) (min, max float64, ok bool) {
	switch kind {
	case Zero90:
		return 0, 90, true
	case Zero180:
		return 0, 180, true
	case Zero360:
		return 0, 360, true
	case PlusMinus90:
		return -90, 90, true
	case PlusMinus180:
		return -180, 180, true
	}
	return 0, 0, false
}

// PutInRange adds or subtracts whole multiples of (max-min) until value
// lies in [min, max]. NaN and infinities are returned unchanged.
func PutInRange(value, min, max float64) (float64, error) {
	if !(min < max) {
		return value, fault.New(fault.InvalidRange, "cyclic.PutInRange",
			"bad range limits [%g, %g]", min, max)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value, nil
	}

	span := max - min
	v := value
	// Jump most of the way first so far-off values don't loop for long.
	if v < min {
		v += math.Floor((min-v)/span) * span
	} else if v > max {
		v -= math.Floor((v-max)/span) * span
	}
	for v < min {
		v += span
	}
	for v > max {
		v -= span
	}
	return v, nil
}

// Window is a remap window centered on a value.
type Window struct {
	Min, Max float64
}

// Around returns the window [center - half, center + half] where half is
// half the full range of kind.
func Around(kind Kind, center float64) (Window, bool) {
	min, max, ok := Range(kind)
	if !ok {
		return Window{}, false
	}
	half := (max - min) / 2
	return Window{Min: center - half, Max: center + half}, true
}

// FullRange returns max-min for kind, or 0 when the kind has no window.
func FullRange(kind Kind) float64 {
	min, max, ok := Range(kind)
	if !ok {
		return 0
	}
	return max - min
}
