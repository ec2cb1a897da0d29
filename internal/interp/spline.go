package interp

import (
	"gonum.org/v1/gonum/interp"

	"github.com/star/trajevent/internal/fault"
)

// Spline fits a natural cubic spline through the control points.
type Spline struct {
	points
	size int
}

// NewSpline creates a cubic-spline interpolator over size points. A spline
// needs at least three points.
func NewSpline(size int) (*Spline, error) {
	if size < 3 {
		return nil, fault.New(fault.InvalidRange, "interp.NewSpline",
			"spline needs at least 3 points, got %d", size)
	}
	return &Spline{size: size}, nil
}

// BufferSize returns the number of points the interpolator expects.
func (s *Spline) BufferSize() int {
	return s.size
}

// Interpolate evaluates the spline at x.
func (s *Spline) Interpolate(x float64) (float64, error) {
	pts, err := s.sorted("interp.Spline", x, 3)
	if err != nil {
		return 0, err
	}

	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i] = p.x
		ys[i] = p.y
	}

	var nc interp.NaturalCubic
	if err := nc.Fit(xs, ys); err != nil {
		return 0, fault.Wrap(fault.InterpolationFailure, "interp.Spline", err, "fit failed")
	}
	return nc.Predict(x), nil
}
