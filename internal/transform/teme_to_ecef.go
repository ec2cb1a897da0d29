// Package transform provides the frame conversions and orbital quantities
// behind the scalar stop parameters: Earth-fixed position, geodetic
// longitude and altitude, ground-station elevation, R·V, eccentricity and
// true anomaly.
//
// TEME to ECEF uses a GMST-only rotation (TEME → PEF ≈ ECEF). Polar motion
// and the equation of the equinoxes are ignored, which is well inside the
// accuracy of SGP4 itself.
package transform

import "math"

// Vec3 is a Cartesian vector.
type Vec3 struct {
	X, Y, Z float64
}

// Dot returns the scalar product.
func (a Vec3) Dot(b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Cross returns the vector product.
func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// Scale multiplies a by k.
func (a Vec3) Scale(k float64) Vec3 {
	return Vec3{a.X * k, a.Y * k, a.Z * k}
}

// Add returns a + b.
func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

// Sub returns a - b.
func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

// Norm returns the Euclidean length.
func (a Vec3) Norm() float64 {
	return math.Sqrt(a.Dot(a))
}

// Finite reports whether every component is neither NaN nor infinite.
func (a Vec3) Finite() bool {
	for _, v := range [3]float64{a.X, a.Y, a.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// State is a TEME position (km) and velocity (km/s).
type State struct {
	R Vec3
	V Vec3
}

// TEMEToECEF rotates a TEME position into ECEF by the GMST angle (radians).
// Units are preserved.
func TEMEToECEF(r Vec3, gmst float64) Vec3 {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	return Vec3{
		X: r.X*cosG + r.Y*sinG,
		Y: -r.X*sinG + r.Y*cosG,
		Z: r.Z,
	}
}

// TEMEToECEFVelocity rotates a TEME velocity into ECEF and removes the
// Earth-rotation term: v_ECEF = R3(θ)·v_TEME − ω × r_ECEF.
func TEMEToECEFVelocity(s State, gmst float64) Vec3 {
	rot := TEMEToECEF(s.V, gmst)
	r := TEMEToECEF(s.R, gmst)
	return Vec3{
		X: rot.X + OmegaEarth*r.Y,
		Y: rot.Y - OmegaEarth*r.X,
		Z: rot.Z,
	}
}
