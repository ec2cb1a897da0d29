package propagation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/star/trajevent/internal/cyclic"
	"github.com/star/trajevent/internal/fault"
	"github.com/star/trajevent/internal/stopcond"
	"github.com/star/trajevent/internal/transform"
)

// Sample is the trajectory at one propagation step.
type Sample struct {
	Time    time.Time
	Elapsed float64 // seconds since the search start
	State   transform.State

	observer *transform.Observer
	ecef     *transform.Vec3
}

func (s *Sample) earthFixed() transform.Vec3 {
	if s.ecef == nil {
		r := transform.TEMEToECEF(s.State.R, transform.GMST(s.Time))
		s.ecef = &r
	}
	return *s.ecef
}

// Param is a scalar stop parameter computed from a Sample.
type Param struct {
	Name  string
	Unit  stopcond.TimeUnit
	Cycle cyclic.Kind
	Apsis stopcond.Apsis
	// NeedsObserver marks parameters measured from a ground station.
	NeedsObserver bool
	Eval          func(s *Sample) (float64, error)
}

func scalar(f func(s *Sample) float64) func(s *Sample) (float64, error) {
	return func(s *Sample) (float64, error) { return f(s), nil }
}

var params = map[string]Param{
	"ElapsedSecs": {
		Unit: stopcond.Seconds,
		Eval: scalar(func(s *Sample) float64 { return s.Elapsed }),
	},
	"ElapsedMins": {
		Unit: stopcond.Minutes,
		Eval: scalar(func(s *Sample) float64 { return s.Elapsed / 60 }),
	},
	"ElapsedHours": {
		Unit: stopcond.Hours,
		Eval: scalar(func(s *Sample) float64 { return s.Elapsed / 3600 }),
	},
	"ElapsedDays": {
		Unit: stopcond.Days,
		Eval: scalar(func(s *Sample) float64 { return s.Elapsed / 86400 }),
	},
	// The propagator runs on UTC, so the A1 offset (~34 s) is not applied.
	"A1ModJulian": {
		Unit: stopcond.EpochDays,
		Eval: scalar(func(s *Sample) float64 { return transform.ModJulian(s.Time) }),
	},
	"RMAG": {
		Eval: scalar(func(s *Sample) float64 { return s.State.R.Norm() }),
	},
	"RdotV": {
		Eval: scalar(func(s *Sample) float64 { return transform.RdotV(s.State) }),
	},
	"Apoapsis": {
		Apsis: stopcond.Apoapsis,
		Eval:  scalar(func(s *Sample) float64 { return transform.RdotV(s.State) }),
	},
	"Periapsis": {
		Apsis: stopcond.Periapsis,
		Eval:  scalar(func(s *Sample) float64 { return transform.RdotV(s.State) }),
	},
	"ECC": {
		Eval: scalar(func(s *Sample) float64 { return transform.Eccentricity(s.State, transform.MuEarth) }),
	},
	"TA": {
		Cycle: cyclic.Zero360,
		Eval:  scalar(func(s *Sample) float64 { return transform.TrueAnomaly(s.State, transform.MuEarth) }),
	},
	"Latitude": {
		Cycle: cyclic.PlusMinus90,
		Eval:  scalar(func(s *Sample) float64 { return transform.ECEFToGeodetic(s.earthFixed()).LatDeg }),
	},
	"Longitude": {
		Cycle: cyclic.PlusMinus180,
		Eval:  scalar(func(s *Sample) float64 { return transform.ECEFToGeodetic(s.earthFixed()).LonDeg }),
	},
	"Altitude": {
		Eval: scalar(func(s *Sample) float64 { return transform.ECEFToGeodetic(s.earthFixed()).AltKm }),
	},
	"Elevation": {
		NeedsObserver: true,
		Eval: func(s *Sample) (float64, error) {
			if s.observer == nil {
				return 0, fault.New(fault.MissingCollaborator, "propagation.Elevation", "no ground station configured")
			}
			return s.observer.Elevation(s.earthFixed()), nil
		},
	},
}

func init() {
	for name, p := range params {
		p.Name = name
		params[name] = p
	}
}

// LookupParam returns the parameter registered under name. A leading
// "<object>." qualifier such as "Sat." is ignored.
func LookupParam(name string) (Param, error) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	p, ok := params[name]
	if !ok {
		return Param{}, fmt.Errorf("unknown stop parameter %q", name)
	}
	return p, nil
}

// ParamNames lists the registered parameters in sorted order.
func ParamNames() []string {
	names := make([]string, 0, len(params))
	for n := range params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
