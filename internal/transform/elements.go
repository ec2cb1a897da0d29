package transform

import "math"

// MuEarth is Earth's gravitational parameter in km^3/s^2 (WGS-84).
const MuEarth = 398600.4418

// RdotV returns R·V (km^2/s). It is zero at the apsides, positive while
// the radius grows.
func RdotV(s State) float64 {
	return s.R.Dot(s.V)
}

// eccVector returns the eccentricity vector
// e = ((v² − μ/r)·r − (r·v)·v) / μ.
func eccVector(s State, mu float64) Vec3 {
	r := s.R.Norm()
	v2 := s.V.Dot(s.V)
	return s.R.Scale(v2 - mu/r).Sub(s.V.Scale(s.R.Dot(s.V))).Scale(1 / mu)
}

// Eccentricity returns the osculating eccentricity.
func Eccentricity(s State, mu float64) float64 {
	return eccVector(s, mu).Norm()
}

// TrueAnomaly returns the osculating true anomaly in degrees, [0, 360).
// Circular orbits measure from the ascending node direction instead.
func TrueAnomaly(s State, mu float64) float64 {
	e := eccVector(s, mu)
	r := s.R.Norm()
	ecc := e.Norm()

	var ta float64
	if ecc > 1e-11 {
		c := e.Dot(s.R) / (ecc * r)
		ta = math.Acos(math.Max(-1, math.Min(1, c)))
	} else {
		h := s.R.Cross(s.V)
		node := Vec3{X: -h.Y, Y: h.X}
		if nn := node.Norm(); nn > 1e-11 {
			c := node.Dot(s.R) / (nn * r)
			ta = math.Acos(math.Max(-1, math.Min(1, c)))
			if s.R.Z < 0 {
				ta = 2*math.Pi - ta
			}
			return ta * rad2deg
		}
		ta = math.Atan2(s.R.Y, s.R.X)
		if ta < 0 {
			ta += 2 * math.Pi
		}
		return ta * rad2deg
	}
	if RdotV(s) < 0 {
		ta = 2*math.Pi - ta
	}
	return ta * rad2deg
}
