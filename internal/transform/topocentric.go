package transform

import "math"

// WGS-84 ellipsoid, km.
const (
	wgs84A  = 6378.137
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

const rad2deg = 180.0 / math.Pi

// Geodetic is a WGS-84 position: degrees and km above the ellipsoid.
type Geodetic struct {
	LatDeg, LonDeg, AltKm float64
}

// ECEFToGeodetic converts an ECEF position (km) using Bowring's iteration,
// which converges in a few passes for Earth orbits.
func ECEFToGeodetic(r Vec3) Geodetic {
	lon := math.Atan2(r.Y, r.X)
	p := math.Hypot(r.X, r.Y)
	lat := math.Atan2(r.Z, p*(1-wgs84E2))

	var n float64
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n = wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(r.Z+wgs84E2*n*sinLat, p)
	}

	sinLat, cosLat := math.Sincos(lat)
	n = wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(r.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{LatDeg: lat * rad2deg, LonDeg: lon * rad2deg, AltKm: alt}
}

// Observer is a ground station with its ECEF position precomputed.
type Observer struct {
	LatRad, LonRad float64
	ECEF           Vec3
}

// NewObserver places a station at geodetic latitude/longitude (degrees) and
// altitude (km).
func NewObserver(latDeg, lonDeg, altKm float64) Observer {
	lat := latDeg / rad2deg
	lon := lonDeg / rad2deg
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	return Observer{
		LatRad: lat,
		LonRad: lon,
		ECEF: Vec3{
			X: (n + altKm) * cosLat * cosLon,
			Y: (n + altKm) * cosLat * sinLon,
			Z: (n*(1-wgs84E2) + altKm) * sinLat,
		},
	}
}

// Elevation returns the elevation (degrees above the horizon) of an ECEF
// position as seen from o, via the SEZ rotation.
func (o Observer) Elevation(sat Vec3) float64 {
	d := sat.Sub(o.ECEF)
	sinLat, cosLat := math.Sincos(o.LatRad)
	sinLon, cosLon := math.Sincos(o.LonRad)

	zenith := cosLat*cosLon*d.X + cosLat*sinLon*d.Y + sinLat*d.Z
	return math.Asin(zenith/d.Norm()) * rad2deg
}
