package geo

import (
	"errors"
	"math"

	"github.com/auvmap/analyzer/pkg/core"
	"github.com/wroge/wgs84"
)

// Positions are WGS84 degrees (EPSG:4326). Geometry handed to storage and
// renderers keeps X=longitude, Y=latitude unless projected to EPSG:3857.

// EarthRadius is the mean earth radius in meters used for great-circle distances.
const EarthRadius = 6371000.0

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ValidPosition reports whether lat/lon are finite and within WGS84 range.
func ValidPosition(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadius * c
}

// Distance returns the great-circle distance between two positions in meters.
func Distance(a, b core.Position) float64 {
	return Haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// Bearing returns the initial course from a to b in degrees [0, 360).
func Bearing(a, b core.Position) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// HeadingDelta returns the signed turn from one heading to another, wrapped
// to (-180, 180].
func HeadingDelta(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d <= -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return d
}

// HeadingDifference returns the absolute angular difference in [0, 180].
func HeadingDifference(a, b float64) float64 {
	return math.Abs(HeadingDelta(a, b))
}

// Interpolate returns the point at fraction f along the segment a→b.
func Interpolate(a, b core.Position, f float64) core.Position {
	return core.Position{
		Latitude:  a.Latitude + (b.Latitude-a.Latitude)*f,
		Longitude: a.Longitude + (b.Longitude-a.Longitude)*f,
	}
}

// ProjectOntoSegment returns the fraction in [0, 1] of the point on a→b
// closest to p, using a local equirectangular plane centred on p.
func ProjectOntoSegment(p, a, b core.Position) float64 {
	k := math.Cos(p.Latitude * math.Pi / 180)
	ax, ay := (a.Longitude-p.Longitude)*k, a.Latitude-p.Latitude
	bx, by := (b.Longitude-p.Longitude)*k, b.Latitude-p.Latitude
	dx, dy := bx-ax, by-ay
	den := dx*dx + dy*dy
	if den == 0 {
		return 0
	}
	f := -(ax*dx + ay*dy) / den
	return math.Max(0, math.Min(1, f))
}

// WebMercator projects a position to EPSG:3857 meters.
func WebMercator(p core.Position) (x, y float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(p.Longitude, p.Latitude, 0)
	return x, y
}
