package interp

// Lagrange fits the single polynomial through all control points.
type Lagrange struct {
	points
	size int
}

// NewLagrange creates a Lagrange interpolator over size points.
func NewLagrange(size int) *Lagrange {
	if size < 2 {
		size = 2
	}
	return &Lagrange{size: size}
}

// BufferSize returns the number of points the interpolator expects.
func (l *Lagrange) BufferSize() int {
	return l.size
}

// Interpolate evaluates the Lagrange polynomial at x.
func (l *Lagrange) Interpolate(x float64) (float64, error) {
	pts, err := l.sorted("interp.Lagrange", x, 2)
	if err != nil {
		return 0, err
	}

	var y float64
	for i, pi := range pts {
		term := pi.y
		for j, pj := range pts {
			if i == j {
				continue
			}
			term *= (x - pj.x) / (pi.x - pj.x)
		}
		y += term
	}
	return y, nil
}
