// Package passes turns Elevation stop crossings into ground-station
// visibility windows.
package passes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/star/trajevent/internal/fault"
	"github.com/star/trajevent/internal/propagation"
	"github.com/star/trajevent/internal/transform"
)

// Pass is one interval during which the satellite stays above the
// elevation mask.
type Pass struct {
	Rise             time.Time `json:"rise"`
	MaxElevationTime time.Time `json:"max_elevation_time"`
	Set              time.Time `json:"set"`
	DurationSeconds  float64   `json:"duration_seconds"`
	MaxElevation     float64   `json:"max_elevation"`
	// Partial marks a pass clipped by the start or end of the search.
	Partial bool `json:"partial,omitempty"`
}

// Request holds the parameters of a pass prediction.
type Request struct {
	Start        time.Time
	Span         time.Duration
	Step         time.Duration
	MinElevation float64 // degrees
	MaxPasses    int
}

const (
	defaultStep      = 30 * time.Second
	defaultMaxPasses = 10
	minPassDur       = 10 * time.Second

	// peakStep is the sampling interval used to locate maximum elevation.
	peakStep = 5 * time.Second

	// classifyOffset is the offset used to classify a crossing as rise or set.
	classifyOffset = time.Second
)

// Predictor finds passes over one ground station.
type Predictor struct {
	Observer *transform.Observer
	Logger   *slog.Logger
}

func (p *Predictor) elevation(prop *propagation.SGP4Propagator, t time.Time) (float64, error) {
	s, err := prop.State(t)
	if err != nil {
		return 0, err
	}
	return p.Observer.Elevation(transform.TEMEToECEF(s.R, transform.GMST(t))), nil
}

// Predict returns up to MaxPasses passes in time order.
func (p *Predictor) Predict(ctx context.Context, prop *propagation.SGP4Propagator, req Request) ([]Pass, error) {
	if p.Observer == nil {
		return nil, fault.New(fault.MissingCollaborator, "passes.Predict", "no ground station configured")
	}
	if req.Step <= 0 {
		req.Step = defaultStep
	}
	if req.MaxPasses < 1 {
		req.MaxPasses = defaultMaxPasses
	}
	end := req.Start.Add(req.Span)

	d := &propagation.Driver{
		Prop:     prop,
		Step:     req.Step,
		Span:     req.Span,
		Observer: p.Observer,
		Logger:   p.Logger,
	}
	// One extra crossing covers a satellite already up at Start.
	crossings, err := d.Search(ctx, req.Start, []propagation.StopSpec{{
		Param:  "Elevation",
		Goal:   req.MinElevation,
		Repeat: 2*req.MaxPasses + 1,
	}})
	if err != nil {
		return nil, fmt.Errorf("elevation search: %w", err)
	}

	startEl, err := p.elevation(prop, req.Start)
	if err != nil {
		return nil, err
	}

	var (
		passes  []Pass
		rise    time.Time
		up      = startEl >= req.MinElevation
		partial = up
	)
	if up {
		rise = req.Start
	}
	for _, c := range crossings {
		el, err := p.elevation(prop, c.Time.Add(classifyOffset))
		if err != nil {
			return nil, err
		}
		rising := el >= req.MinElevation
		switch {
		case rising && !up:
			rise, up, partial = c.Time, true, false
		case !rising && up:
			pass, ok, err := p.build(ctx, prop, rise, c.Time, partial)
			if err != nil {
				return nil, err
			}
			if ok {
				passes = append(passes, pass)
			}
			up = false
		}
		if len(passes) == req.MaxPasses {
			return passes, nil
		}
	}
	if up {
		pass, ok, err := p.build(ctx, prop, rise, end, true)
		if err != nil {
			return nil, err
		}
		if ok {
			passes = append(passes, pass)
		}
	}
	return passes, nil
}

func (p *Predictor) build(ctx context.Context, prop *propagation.SGP4Propagator, rise, set time.Time, partial bool) (Pass, bool, error) {
	if set.Sub(rise) < minPassDur && !partial {
		return Pass{}, false, nil
	}
	pass := Pass{
		Rise:            rise,
		Set:             set,
		DurationSeconds: set.Sub(rise).Seconds(),
		MaxElevation:    -90,
		Partial:         partial,
	}
	for t := rise; !t.After(set); t = t.Add(peakStep) {
		if err := ctx.Err(); err != nil {
			return Pass{}, false, err
		}
		el, err := p.elevation(prop, t)
		if err != nil {
			return Pass{}, false, err
		}
		if el > pass.MaxElevation {
			pass.MaxElevation = el
			pass.MaxElevationTime = t
		}
	}
	return pass, true, nil
}
