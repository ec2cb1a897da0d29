package stopcond

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/star/trajevent/internal/cyclic"
	"github.com/star/trajevent/internal/fault"
	"github.com/star/trajevent/internal/metrics"
	"github.com/star/trajevent/internal/ringbuf"
)

// Tracker detects when a sampled scalar crosses its goal.
//
// A Tracker is not safe for concurrent use. Independent trackers share no
// state and may run on separate goroutines.
type Tracker struct {
	cfg    Config
	gate   ApsisGate
	logger *slog.Logger

	buf *ringbuf.Buffer

	previous ringbuf.Sample
	last     ringbuf.Sample
	hasLast  bool
	seen     int

	active        bool
	stopEpoch     float64
	hasStopEpoch  bool
	warnedNoCross bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the diagnostic logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// New builds a Tracker for cfg.
func New(cfg Config, opts ...Option) (*Tracker, error) {
	const op = "stopcond.New"

	if !cfg.TimeUnit.IsTime() && cfg.Interpolator == nil {
		return nil, fault.New(fault.MissingCollaborator, op,
			"%s: non-time condition has no interpolator", cfg.Name)
	}
	if cfg.DynamicGoal && cfg.GoalFunc == nil {
		return nil, fault.New(fault.MissingCollaborator, op,
			"%s: dynamic goal has no goal provider", cfg.Name)
	}
	if cfg.Apsis != ApsisNone && cfg.Eccentricity == nil {
		return nil, fault.New(fault.MissingCollaborator, op,
			"%s: %s condition has no eccentricity provider", cfg.Name, cfg.Apsis)
	}
	if cfg.Cycle == cyclic.Other {
		// Other has no fixed window; treat it as a plain scalar.
		cfg.Cycle = cyclic.NotCyclic
	}

	size := 2
	if cfg.Interpolator != nil {
		size = cfg.Interpolator.BufferSize()
	}

	t := &Tracker{
		cfg: cfg,
		gate: ApsisGate{
			Kind:            cfg.Apsis,
			Direction:       cfg.Direction,
			Eccentricity:    cfg.Eccentricity,
			MinEccentricity: cfg.MinEccentricity,
			RadiusMag:       cfg.RadiusMag,
			RangeLimit:      cfg.RangeLimit,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		buf:    ringbuf.New(size),
		active: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Name returns the stop parameter name.
func (t *Tracker) Name() string { return t.cfg.Name }

// IsTimeCondition reports whether the tracked scalar is itself time.
func (t *Tracker) IsTimeCondition() bool { return t.cfg.TimeUnit.IsTime() }

// Active reports whether the tracker may report crossings.
func (t *Tracker) Active() bool { return t.active }

// PreviousEpoch returns the epoch of the current bracket baseline.
func (t *Tracker) PreviousEpoch() float64 { return t.previous.Epoch }

// PreviousValue returns the value of the current bracket baseline.
func (t *Tracker) PreviousValue() float64 { return t.previous.Value }

// ValidPoints returns the number of samples held in the ring buffer.
func (t *Tracker) ValidPoints() int { return t.buf.Len() }

// Goal evaluates the current goal value.
func (t *Tracker) Goal() (float64, error) {
	if t.cfg.GoalFunc == nil {
		return t.cfg.Goal, nil
	}
	g, err := t.cfg.GoalFunc()
	if err != nil {
		return 0, fmt.Errorf("%s: evaluating goal: %w", t.cfg.Name, err)
	}
	return g, nil
}

// Reset forgets all samples. Call it when propagation restarts or
// reverses direction.
func (t *Tracker) Reset() {
	t.buf.Reset()
	t.previous = ringbuf.Sample{}
	t.last = ringbuf.Sample{}
	t.hasLast = false
	t.seen = 0
	t.hasStopEpoch = false
	t.warnedNoCross = false
}

// SkipEvaluation deactivates (skip=true) or reactivates the tracker.
// Absolute-epoch conditions cannot be deactivated.
func (t *Tracker) SkipEvaluation(skip bool) {
	if skip && strings.Contains(t.cfg.Name, "ModJulian") {
		t.logger.Debug("ignoring deactivation of absolute epoch condition",
			"condition", t.cfg.Name)
		return
	}
	t.active = !skip
}

// EvaluateAt pulls the current value from the configured provider and
// evaluates it at epoch.
func (t *Tracker) EvaluateAt(epoch float64) (bool, error) {
	if t.cfg.Value == nil {
		return false, fault.New(fault.MissingCollaborator, "stopcond.EvaluateAt",
			"%s: no value provider", t.cfg.Name)
	}
	v, err := t.cfg.Value()
	if err != nil {
		return false, fmt.Errorf("%s: evaluating value: %w", t.cfg.Name, err)
	}
	return t.Evaluate(epoch, v)
}

// Observe records a sample without testing it. The sample becomes the one
// committed by UpdateBuffer and buffered by AddToBuffer.
func (t *Tracker) Observe(epoch, value float64) {
	t.last = ringbuf.Sample{Epoch: epoch, Value: value}
	t.hasLast = true
}

// Evaluate tests whether the goal lies between the previous sample and
// (epoch, value). The previous sample advances only on an active,
// non-crossing step; after a crossing the caller commits the window with
// UpdateBuffer or AddToBuffer.
func (t *Tracker) Evaluate(epoch, value float64) (bool, error) {
	t.Observe(epoch, value)

	goal, err := t.Goal()
	if err != nil {
		return false, err
	}

	if t.seen == 0 {
		if t.active {
			t.previous = t.last
			t.seen++
		}
		return false, nil
	}

	current := t.last
	prevValue := t.previous.Value

	if lo, hi, ok := cyclic.Range(t.cfg.Cycle); ok {
		half := (hi - lo) / 2
		if goal, err = cyclic.PutInRange(goal, lo, hi); err != nil {
			return false, err
		}
		if current.Value, err = cyclic.PutInRange(current.Value, goal-half, goal+half); err != nil {
			return false, err
		}
		if prevValue, err = cyclic.PutInRange(prevValue, goal-half, goal+half); err != nil {
			return false, err
		}
		if math.Abs(goal-current.Value) >= half/2 {
			t.rebase()
			return false, nil
		}
	}

	if t.cfg.Apsis != ApsisNone {
		ready, err := t.gate.Ready(prevValue, goal)
		if err != nil {
			return false, err
		}
		if !ready {
			t.rebase()
			return false, nil
		}
	}

	var crossed bool
	if t.IsTimeCondition() {
		crossed = t.timeBracket(prevValue, current.Value, goal)
	} else {
		lo, hi := math.Min(prevValue, current.Value), math.Max(prevValue, current.Value)
		crossed = lo != hi && goal >= lo && goal <= hi
	}
	t.seen++

	if !t.active {
		return false, nil
	}
	if !crossed {
		t.previous = t.last
		return false, nil
	}

	metrics.RecordCrossing(t.kindLabel())
	t.logger.Debug("goal crossed",
		"condition", t.cfg.Name,
		"goal", goal,
		"prev_epoch", t.previous.Epoch,
		"prev_value", prevValue,
		"epoch", current.Epoch,
		"value", current.Value,
	)
	return true, nil
}

// rebase makes the last sample the new baseline when the tracker is
// active.
func (t *Tracker) rebase() {
	if t.active {
		t.previous = t.last
	}
}

func (t *Tracker) timeBracket(prev, curr, goal float64) bool {
	prevDiff := prev - goal
	currDiff := curr - goal
	dir := -1.0
	if currDiff-prevDiff > 0 {
		dir = 1.0
	}

	if t.seen == 1 && !t.warnedNoCross && (2*goal-curr-prev)*dir < 0 {
		t.warnedNoCross = true
		t.logger.Warn("time based stopping condition will never be satisfied",
			"condition", t.cfg.Name,
			"goal", goal,
			"previous", prev,
			"current", curr,
		)
	}
	return currDiff*dir >= 0 && prevDiff*dir <= 0
}

func (t *Tracker) kindLabel() string {
	switch {
	case t.IsTimeCondition():
		return "time"
	case t.cfg.Apsis != ApsisNone:
		return "apsis"
	case t.cfg.Cycle != cyclic.NotCyclic:
		return "cyclic"
	}
	return "value"
}

// UpdateBuffer commits the last observed sample as the bracket baseline,
// remapped into the goal window for cyclic conditions.
func (t *Tracker) UpdateBuffer() error {
	if !t.hasLast {
		return nil
	}
	s := t.last
	if w, ok := t.window(); ok {
		v, err := cyclic.PutInRange(s.Value, w.Min, w.Max)
		if err != nil {
			return err
		}
		s.Value = v
	}
	t.previous = s
	if t.seen == 0 {
		t.seen = 1
	}
	return nil
}

// window returns the remap window around the canonical goal.
func (t *Tracker) window() (cyclic.Window, bool) {
	lo, hi, ok := cyclic.Range(t.cfg.Cycle)
	if !ok {
		return cyclic.Window{}, false
	}
	goal, err := t.Goal()
	if err != nil {
		return cyclic.Window{}, false
	}
	if goal, err = cyclic.PutInRange(goal, lo, hi); err != nil {
		return cyclic.Window{}, false
	}
	return cyclic.Around(t.cfg.Cycle, goal)
}

// AddToBuffer pushes the last observed sample into the ring and reports
// whether the full ring now brackets the goal. On isInitial the ring is
// cleared and seeded with the previous sample first. When the goal is
// bracketed the stop epoch is interpolated and cached.
//
// Time conditions need no buffer and always report true.
func (t *Tracker) AddToBuffer(isInitial bool) (bool, error) {
	const op = "stopcond.AddToBuffer"

	if t.IsTimeCondition() {
		return true, nil
	}
	if !t.hasLast {
		return false, nil
	}

	goal, err := t.Goal()
	if err != nil {
		return false, err
	}
	current := t.last
	prev := t.previous

	if lo, hi, ok := cyclic.Range(t.cfg.Cycle); ok {
		half := (hi - lo) / 2
		if goal, err = cyclic.PutInRange(goal, lo, hi); err != nil {
			return false, err
		}
		if current.Value, err = cyclic.PutInRange(current.Value, goal-half, goal+half); err != nil {
			return false, err
		}
		if prev.Value, err = cyclic.PutInRange(prev.Value, goal-half, goal+half); err != nil {
			return false, err
		}
		if math.Abs(goal-current.Value) >= half/2 {
			return false, nil
		}
	}

	if isInitial {
		t.buf.Reset()
		t.buf.Push(prev)
		t.hasStopEpoch = false
	}
	t.buf.Push(current)

	if !t.buf.Full() {
		return false, nil
	}
	lo, hi, _ := t.buf.ValueBounds()
	if goal < lo || goal > hi {
		return false, nil
	}

	epoch, err := t.interpolate(op, goal)
	if err != nil {
		return false, err
	}
	t.stopEpoch = epoch
	t.hasStopEpoch = true
	return true, nil
}

// StopEpoch returns the crossing epoch. Time conditions return the
// closed-form offset in seconds from the previous sample; other conditions
// interpolate the ring buffer.
func (t *Tracker) StopEpoch() (float64, error) {
	const op = "stopcond.StopEpoch"

	goal, err := t.Goal()
	if err != nil {
		return 0, err
	}
	if t.IsTimeCondition() {
		return (goal - t.previous.Value) * t.cfg.TimeUnit.Multiplier(), nil
	}

	if !t.buf.Full() {
		metrics.RecordInterpolationFailure()
		return 0, fault.New(fault.InterpolationFailure, op,
			"%s: buffer holds %d of %d points", t.cfg.Name, t.buf.Len(), t.buf.Cap())
	}
	if lo, hi, ok := cyclic.Range(t.cfg.Cycle); ok {
		if goal, err = cyclic.PutInRange(goal, lo, hi); err != nil {
			return 0, err
		}
	}
	lo, hi, _ := t.buf.ValueBounds()
	if goal < lo || goal > hi {
		metrics.RecordInterpolationFailure()
		return 0, fault.New(fault.InterpolationFailure, op,
			"%s: goal %g not bracketed by [%g, %g]", t.cfg.Name, goal, lo, hi)
	}

	epoch, err := t.interpolate(op, goal)
	if err != nil {
		return 0, err
	}
	t.stopEpoch = epoch
	t.hasStopEpoch = true
	return epoch, nil
}

// CachedStopEpoch returns the epoch cached by the last successful
// interpolation.
func (t *Tracker) CachedStopEpoch() (float64, bool) {
	return t.stopEpoch, t.hasStopEpoch
}

func (t *Tracker) interpolate(op string, goal float64) (float64, error) {
	in := t.cfg.Interpolator
	in.Clear()
	for _, s := range t.buf.Samples() {
		in.AddPoint(s.Value, s.Epoch)
	}
	epoch, err := in.Interpolate(goal)
	if err != nil {
		metrics.RecordInterpolationFailure()
		t.logger.Warn("unable to interpolate a stop epoch",
			"condition", t.cfg.Name, "goal", goal, "error", err)
		if fault.Is(err, fault.InterpolationFailure) {
			return 0, err
		}
		return 0, fault.Wrap(fault.InterpolationFailure, op, err,
			"%s: interpolating goal %g", t.cfg.Name, goal)
	}
	return epoch, nil
}

// StopDifference returns goal minus the last observed value, remapped for
// cyclic conditions.
func (t *Tracker) StopDifference() (float64, error) {
	goal, err := t.Goal()
	if err != nil {
		return 0, err
	}
	value := t.last.Value
	if lo, hi, ok := cyclic.Range(t.cfg.Cycle); ok {
		if goal, err = cyclic.PutInRange(goal, lo, hi); err != nil {
			return 0, err
		}
		if value, err = cyclic.PutInRange(value, goal-(hi-lo)/2, goal+(hi-lo)/2); err != nil {
			return 0, err
		}
	}
	return goal - value, nil
}
