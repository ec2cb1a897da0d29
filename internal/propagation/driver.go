package propagation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/star/trajevent/internal/fault"
	"github.com/star/trajevent/internal/interp"
	"github.com/star/trajevent/internal/metrics"
	"github.com/star/trajevent/internal/stopcond"
	"github.com/star/trajevent/internal/transform"
)

// StopSpec declares one stopping condition for a search.
type StopSpec struct {
	// Param names the stop parameter, e.g. "Apoapsis" or "Sat.TA".
	Param string  `yaml:"param" json:"param"`
	Goal  float64 `yaml:"goal" json:"goal"`
	// GoalParam, when set, names a parameter whose current value replaces
	// Goal at every step.
	GoalParam string `yaml:"goal_param,omitempty" json:"goal_param,omitempty"`
	// Interpolator is "lagrange" (default) or "spline".
	Interpolator string `yaml:"interpolator,omitempty" json:"interpolator,omitempty"`
	BufferSize   int    `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`
	// Repeat is the number of crossings to collect before the condition
	// retires. Zero means one. Time conditions fire once.
	Repeat int `yaml:"repeat,omitempty" json:"repeat,omitempty"`
	// MinEccentricity overrides the apsis gate threshold.
	MinEccentricity float64 `yaml:"min_eccentricity,omitempty" json:"min_eccentricity,omitempty"`
	// RangeLimit ignores periapses above this radius (km). Zero disables it.
	RangeLimit float64 `yaml:"range_limit,omitempty" json:"range_limit,omitempty"`
}

// Validate checks the parameter name and the interpolation window size.
func (s StopSpec) Validate() error {
	if _, err := LookupParam(s.Param); err != nil {
		return err
	}
	if s.GoalParam != "" {
		if _, err := LookupParam(s.GoalParam); err != nil {
			return fmt.Errorf("goal_param: %w", err)
		}
	}
	if err := interp.CheckBufferSize(s.BufferSize); err != nil {
		return fmt.Errorf("buffer_size: %w", err)
	}
	return nil
}

// Crossing is a detected stop.
type Crossing struct {
	Param      string    `json:"param"`
	Goal       float64   `json:"goal"`
	Occurrence int       `json:"occurrence"`
	Time       time.Time `json:"time"`
	Elapsed    float64   `json:"elapsed_secs"`
}

// Driver steps an SGP4 trajectory and evaluates stopping conditions once
// per step.
type Driver struct {
	Prop *SGP4Propagator
	// Step is the sampling interval. A negative step propagates backward.
	Step time.Duration
	// Span bounds the search length.
	Span     time.Duration
	Observer *transform.Observer
	Logger   *slog.Logger
	// OnCrossing, when set, sees each crossing as soon as it is resolved.
	OnCrossing func(Crossing)
}

// condition is one tracker plus its buffer-filling state.
type condition struct {
	spec    StopSpec
	param   Param
	tr      *stopcond.Tracker
	bufSize int

	pending bool
	extra   int
	fired   int
	repeat  int
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (d *Driver) newCondition(spec StopSpec, cur *Sample) (*condition, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("stop %s: %w", spec.Param, err)
	}
	p, err := LookupParam(spec.Param)
	if err != nil {
		return nil, err
	}
	if p.NeedsObserver && d.Observer == nil {
		return nil, fault.New(fault.MissingCollaborator, "propagation.Driver",
			"%s needs a ground station", p.Name)
	}

	dir := stopcond.Forward
	if d.Step < 0 {
		dir = stopcond.Backward
	}

	cfg := stopcond.Config{
		Name:            fmt.Sprintf("%s.%s", d.Prop.Name(), p.Name),
		Goal:            spec.Goal,
		Value:           func() (float64, error) { return p.Eval(cur) },
		Cycle:           p.Cycle,
		Apsis:           p.Apsis,
		TimeUnit:        p.Unit,
		Direction:       dir,
		MinEccentricity: spec.MinEccentricity,
		RangeLimit:      spec.RangeLimit,
	}
	if spec.GoalParam != "" {
		gp, err := LookupParam(spec.GoalParam)
		if err != nil {
			return nil, err
		}
		if gp.NeedsObserver && d.Observer == nil {
			return nil, fault.New(fault.MissingCollaborator, "propagation.Driver",
				"%s needs a ground station", gp.Name)
		}
		cfg.DynamicGoal = true
		cfg.GoalFunc = func() (float64, error) { return gp.Eval(cur) }
	}
	if p.Apsis != stopcond.ApsisNone {
		cfg.Eccentricity = func() (float64, error) {
			return transform.Eccentricity(cur.State, transform.MuEarth), nil
		}
		cfg.RadiusMag = func() (float64, error) { return cur.State.R.Norm(), nil }
	}

	bufSize := 0
	if !p.Unit.IsTime() {
		in, err := interp.New(spec.Interpolator, spec.BufferSize)
		if err != nil {
			return nil, fmt.Errorf("stop %s: %w", spec.Param, err)
		}
		cfg.Interpolator = in
		bufSize = in.BufferSize()
	}

	tr, err := stopcond.New(cfg, stopcond.WithLogger(d.logger().With("component", "stopcond")))
	if err != nil {
		return nil, err
	}

	repeat := spec.Repeat
	if repeat < 1 || p.Unit.IsTime() {
		repeat = 1
	}
	return &condition{spec: spec, param: p, tr: tr, bufSize: bufSize, repeat: repeat}, nil
}

// Search propagates from start until every condition has fired Repeat
// times or the span is exhausted. Crossings are returned in detection
// order.
func (d *Driver) Search(ctx context.Context, start time.Time, specs []StopSpec) ([]Crossing, error) {
	if d.Prop == nil {
		return nil, fault.New(fault.MissingCollaborator, "propagation.Driver", "no propagator")
	}
	if d.Step == 0 {
		return nil, fmt.Errorf("step must be non-zero")
	}

	began := time.Now()
	defer func() { metrics.RecordStopSearch(time.Since(began)) }()

	cur := &Sample{observer: d.Observer}
	conds := make([]*condition, 0, len(specs))
	for _, spec := range specs {
		c, err := d.newCondition(spec, cur)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}

	step := d.Step
	if step < 0 {
		step = -step
	}
	steps := int(d.Span / step)
	logger := d.logger()

	var out []Crossing
	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		t := start.Add(time.Duration(i) * d.Step)
		state, err := d.Prop.State(t)
		if err != nil {
			return out, fmt.Errorf("step %d at %s: %w", i, t.Format(time.RFC3339), err)
		}
		*cur = Sample{Time: t, Elapsed: t.Sub(start).Seconds(), State: state, observer: d.Observer}

		live := 0
		for _, c := range conds {
			if c.fired >= c.repeat {
				continue
			}
			live++
			cr, err := c.step(cur, start, logger)
			if err != nil {
				return out, fmt.Errorf("stop %s: %w", c.spec.Param, err)
			}
			if cr != nil {
				out = append(out, *cr)
				if d.OnCrossing != nil {
					d.OnCrossing(*cr)
				}
			}
		}
		if live == 0 {
			break
		}
	}

	logger.Debug("stop search complete",
		"norad_id", d.Prop.NORADID(),
		"crossings", len(out),
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return out, nil
}

func (c *condition) step(s *Sample, start time.Time, logger *slog.Logger) (*Crossing, error) {
	if c.pending {
		v, err := c.param.Eval(s)
		if err != nil {
			return nil, err
		}
		c.tr.Observe(s.Elapsed, v)
		ok, err := c.tr.AddToBuffer(false)
		if err != nil {
			return nil, c.abandon(logger, err)
		}
		if ok {
			return c.finish(start, logger)
		}
		c.extra++
		if c.extra > c.bufSize {
			return nil, c.abandon(logger, fault.New(fault.InterpolationFailure, "propagation.Driver",
				"goal %g not bracketed after %d extra samples", c.spec.Goal, c.extra))
		}
		return nil, nil
	}

	hit, err := c.tr.EvaluateAt(s.Elapsed)
	if err != nil || !hit {
		return nil, err
	}

	ok, err := c.tr.AddToBuffer(true)
	if err != nil {
		return nil, c.abandon(logger, err)
	}
	if ok {
		return c.finish(start, logger)
	}
	c.pending = true
	c.extra = 0
	return nil, nil
}

// abandon drops a crossing the interpolator could not resolve and slides
// the window past it. Other errors are returned.
func (c *condition) abandon(logger *slog.Logger, err error) error {
	if !fault.Is(err, fault.InterpolationFailure) {
		return err
	}
	logger.Warn("dropping unresolved crossing", "condition", c.tr.Name(), "error", err)
	c.pending = false
	c.extra = 0
	return c.tr.UpdateBuffer()
}

func (c *condition) finish(start time.Time, logger *slog.Logger) (*Crossing, error) {
	stop, err := c.tr.StopEpoch()
	if err != nil {
		// AddToBuffer already reported success, so this is not recoverable.
		return nil, err
	}
	elapsed := stop
	if c.tr.IsTimeCondition() {
		elapsed = c.tr.PreviousEpoch() + stop
	}

	c.fired++
	c.pending = false
	c.extra = 0
	cr := &Crossing{
		Param:      c.param.Name,
		Goal:       c.spec.Goal,
		Occurrence: c.fired,
		Time:       start.Add(time.Duration(elapsed * float64(time.Second))),
		Elapsed:    elapsed,
	}
	logger.Info("stop condition met",
		"condition", c.tr.Name(),
		"occurrence", cr.Occurrence,
		"time", cr.Time.UTC().Format(time.RFC3339Nano),
	)
	return cr, c.tr.UpdateBuffer()
}
