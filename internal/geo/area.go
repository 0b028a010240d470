package geo

import (
	"math"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// AreaKm2 returns the area of a lon/lat polygonal geometry in square
// kilometres, measured in the EPSG:6933 equal-area projection. Ring
// orientation does not matter: holes are subtracted by magnitude.
// Non-polygonal geometries have zero area.
func AreaKm2(g geom.T) float64 {
	if g == nil || g.Empty() {
		return 0
	}
	projected, err := Transform(g, equalAreaForward)
	if err != nil {
		return 0
	}
	return planarArea(projected) / 1e6
}

func planarArea(g geom.T) float64 {
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonArea(t)
	case *geom.MultiPolygon:
		var sum float64
		for i := 0; i < t.NumPolygons(); i++ {
			sum += polygonArea(t.Polygon(i))
		}
		return sum
	case *geom.GeometryCollection:
		var sum float64
		for _, child := range t.Geoms() {
			sum += planarArea(child)
		}
		return sum
	}
	return 0
}

func polygonArea(p *geom.Polygon) float64 {
	var area float64
	for i := 0; i < p.NumLinearRings(); i++ {
		ring := p.LinearRing(i)
		a := math.Abs(xy.SignedArea(ring.Layout(), ring.FlatCoords()))
		if i == 0 {
			area += a
		} else {
			area -= a
		}
	}
	if area < 0 {
		return 0
	}
	return area
}
