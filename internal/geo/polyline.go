package geo

import (
	"fmt"

	"github.com/auvmap/analyzer/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// LineString builds a lon/lat geom.LineString from positions. Fewer than
// two distinct positions, as for a vehicle holding station, yields an
// empty LineString.
func LineString(positions []core.Position) (geom.LineString, error) {
	if distinctPositions(positions) < 2 {
		return geom.LineString{}, nil
	}
	flatCoords := make([]float64, 0, len(positions)*2)
	for _, p := range positions {
		flatCoords = append(flatCoords, p.Longitude, p.Latitude)
	}
	ls, err := geom.NewLineString(geom.NewSequence(flatCoords, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("linestring of %d positions: %w", len(positions), err)
	}
	return ls, nil
}

// distinctPositions counts distinct positions, stopping at two.
func distinctPositions(positions []core.Position) int {
	if len(positions) == 0 {
		return 0
	}
	for _, p := range positions[1:] {
		if p != positions[0] {
			return 2
		}
	}
	return 1
}

// Point builds a lon/lat geom.Point.
func Point(p core.Position) (geom.Point, error) {
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.Longitude, Y: p.Latitude},
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.Point{}, fmt.Errorf("point %v: %w", p, err)
	}
	return pt, nil
}

// Positions returns the vertices of a lon/lat LineString.
func Positions(ls geom.LineString) []core.Position {
	seq := ls.Coordinates()
	out := make([]core.Position, seq.Length())
	for i := range out {
		xy := seq.GetXY(i)
		out[i] = core.Position{Latitude: xy.Y, Longitude: xy.X}
	}
	return out
}

// Bounds returns the lat/lon envelope of positions.
func Bounds(positions []core.Position) (core.BoundingBox, error) {
	var env geom.Envelope
	for _, p := range positions {
		var err error
		env, err = env.ExtendToIncludeXY(geom.XY{X: p.Longitude, Y: p.Latitude})
		if err != nil {
			return core.BoundingBox{}, fmt.Errorf("bounds: %w: %v", ErrInvalidCoordinates, err)
		}
	}
	minXY, maxXY, ok := env.MinMaxXYs()
	if !ok {
		return core.BoundingBox{}, fmt.Errorf("bounds of %d positions: %w", len(positions), ErrInvalidCoordinates)
	}
	return core.BoundingBox{
		MinLatitude:  minXY.Y,
		MinLongitude: minXY.X,
		MaxLatitude:  maxXY.Y,
		MaxLongitude: maxXY.X,
	}, nil
}

// PathLength sums great-circle distances along positions.
func PathLength(positions []core.Position) float64 {
	var total float64
	for i := 1; i < len(positions); i++ {
		total += Distance(positions[i-1], positions[i])
	}
	return total
}
