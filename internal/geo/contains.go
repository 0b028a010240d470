package geo

import (
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"github.com/twpayne/go-geom/xy/location"
)

// ContainsStrict reports whether p lies in the interior of the polygonal
// geometry g. Points on an outer or hole boundary are not contained.
func ContainsStrict(g geom.T, p geom.Coord) bool {
	if g == nil || len(p) < 2 || g.Empty() {
		return false
	}
	switch t := g.(type) {
	case *geom.Polygon:
		return polygonContains(t, p)
	case *geom.MultiPolygon:
		if !t.Bounds().OverlapsPoint(geom.XY, p[:2]) {
			return false
		}
		for i := 0; i < t.NumPolygons(); i++ {
			if polygonContains(t.Polygon(i), p) {
				return true
			}
		}
	case *geom.GeometryCollection:
		for _, child := range t.Geoms() {
			if ContainsStrict(child, p) {
				return true
			}
		}
	}
	return false
}

func polygonContains(poly *geom.Polygon, p geom.Coord) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	pt := geom.Coord{p[0], p[1]}
	if !poly.Bounds().OverlapsPoint(geom.XY, pt) {
		return false
	}
	layout := poly.Layout()
	shell := poly.LinearRing(0)
	if xy.LocatePointInRing(layout, pt, shell.FlatCoords()) != location.Interior {
		return false
	}
	for i := 1; i < poly.NumLinearRings(); i++ {
		hole := poly.LinearRing(i)
		if xy.LocatePointInRing(layout, pt, hole.FlatCoords()) != location.Exterior {
			return false
		}
	}
	return true
}
