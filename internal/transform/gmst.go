package transform

import (
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// mjdOffset is the Julian date of modified Julian day zero.
const mjdOffset = 2430000.0

// JulianDate converts t (UTC) to a Julian date. Sub-second precision is kept.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	jd := satellite.JDay(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	return jd + float64(t.Nanosecond())/1e9/86400.0
}

// ModJulian converts t to a modified Julian date counted from
// 1941-01-05T12:00Z.
func ModJulian(t time.Time) float64 {
	return JulianDate(t) - mjdOffset
}

// GMST returns Greenwich Mean Sidereal Time in radians for t (UTC), using
// the IAU-82 model of go-satellite. The library works in whole seconds, so
// the fractional second is applied as Earth rotation.
func GMST(t time.Time) float64 {
	t = t.UTC()
	g := satellite.GSTimeFromDate(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
	g += OmegaEarth * float64(t.Nanosecond()) / 1e9
	return math.Mod(g, 2*math.Pi)
}
