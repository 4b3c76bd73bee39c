// Package geo holds the small amount of spherical geometry needed to turn
// lat/lon recordings into the planar metres used by frames.
package geo

import "math"

// EarthRadiusM is the mean earth radius in metres.
const EarthRadiusM = 6371000.0

// HaversineM returns the great-circle distance in metres.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	la1 := lat1 * math.Pi / 180
	la2 := lat2 * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusM * c
}

// Projector maps lat/lon to local east/north metres around an origin using
// an equirectangular approximation. Good enough for scenes a few km across.
type Projector struct {
	lat0, lon0 float64
	cosLat0    float64
}

func NewProjector(originLat, originLon float64) Projector {
	return Projector{lat0: originLat, lon0: originLon, cosLat0: math.Cos(originLat * math.Pi / 180)}
}

// Project returns (x east, y north) in metres.
func (p Projector) Project(lat, lon float64) (x, y float64) {
	x = (lon - p.lon0) * math.Pi / 180 * EarthRadiusM * p.cosLat0
	y = (lat - p.lat0) * math.Pi / 180 * EarthRadiusM
	return x, y
}

// BearingToHeading converts a compass bearing in degrees (0 = north,
// clockwise) to a planar heading in radians (0 = +x, counter-clockwise).
func BearingToHeading(bearingDeg float64) float64 {
	h := (90 - bearingDeg) * math.Pi / 180
	return math.Atan2(math.Sin(h), math.Cos(h))
}
