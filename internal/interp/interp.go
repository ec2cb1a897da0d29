// Package interp provides the interpolators that turn a window of
// (value, epoch) control points into the epoch at which a goal value occurs.
//
// Points are added with the tracked value as the abscissa and the epoch as
// the ordinate, so Interpolate(goal) answers "when was the goal reached".
package interp

import (
	"fmt"
	"slices"
	"strings"

	"github.com/star/trajevent/internal/fault"
)

// DefaultBufferSize matches the five-point window used for stopping
// conditions by the reference propagator.
const DefaultBufferSize = 5

// Bounds on the control-point window. Larger windows never fill before
// the crossing leaves them.
const (
	MinBufferSize = 2
	MaxBufferSize = 32
)

// CheckBufferSize rejects a requested window size outside
// [MinBufferSize, MaxBufferSize]. Zero means the default and is accepted.
func CheckBufferSize(size int) error {
	if size == 0 || (size >= MinBufferSize && size <= MaxBufferSize) {
		return nil
	}
	return fault.New(fault.InvalidRange, "interp.CheckBufferSize",
		"buffer size %d outside [%d, %d]", size, MinBufferSize, MaxBufferSize)
}

// Interpolator is the collaborator used by stop-condition trackers.
type Interpolator interface {
	// Clear drops all control points.
	Clear()
	// AddPoint appends a control point.
	AddPoint(x, y float64)
	// Interpolate returns y at x. It fails with fault.InterpolationFailure
	// when the points are degenerate or do not span x.
	Interpolate(x float64) (float64, error)
	// BufferSize is the number of points the interpolator needs.
	BufferSize() int
}

// New returns the interpolator registered under name ("lagrange" or
// "spline"). size <= 0 selects DefaultBufferSize; other sizes are clamped
// to [MinBufferSize, MaxBufferSize].
func New(name string, size int) (Interpolator, error) {
	switch {
	case size <= 0:
		size = DefaultBufferSize
	case size < MinBufferSize:
		size = MinBufferSize
	case size > MaxBufferSize:
		size = MaxBufferSize
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lagrange":
		return NewLagrange(size), nil
	case "spline", "cubicspline", "cubic_spline":
		return NewSpline(size)
	}
	return nil, fmt.Errorf("unknown interpolator %q", name)
}

type point struct {
	x, y float64
}

// points is the shared control-point store.
type points struct {
	pts []point
}

func (p *points) Clear() {
	p.pts = p.pts[:0]
}

func (p *points) AddPoint(x, y float64) {
	p.pts = append(p.pts, point{x: x, y: y})
}

// sorted returns the points ordered by x, failing on fewer than min points,
// duplicate abscissae, or x outside the span.
func (p *points) sorted(op string, x float64, min int) ([]point, error) {
	if len(p.pts) < min {
		return nil, fault.New(fault.InterpolationFailure, op,
			"need %d points, have %d", min, len(p.pts))
	}
	pts := slices.Clone(p.pts)
	slices.SortFunc(pts, func(a, b point) int {
		switch {
		case a.x < b.x:
			return -1
		case a.x > b.x:
			return 1
		}
		return 0
	})
	for i := 1; i < len(pts); i++ {
		if pts[i].x == pts[i-1].x {
			return nil, fault.New(fault.InterpolationFailure, op,
				"duplicate control value %g", pts[i].x)
		}
	}
	if x < pts[0].x || x > pts[len(pts)-1].x {
		return nil, fault.New(fault.InterpolationFailure, op,
			"%g outside control span [%g, %g]", x, pts[0].x, pts[len(pts)-1].x)
	}
	return pts, nil
}
