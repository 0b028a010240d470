package geo

import (
	geom "github.com/twpayne/go-geom"
)

// RepresentativePoint returns the x/y coordinate used to place a facility.
// Points return themselves. Any other geometry returns its first vertex:
// the first coordinate of the first ring of the first polygon for polygons,
// which is not a centroid and may lie on the facility's outline.
// It returns nil when g has no coordinates.
func RepresentativePoint(g geom.T) geom.Coord {
	if g == nil || g.Empty() {
		return nil
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		for _, child := range gc.Geoms() {
			if c := RepresentativePoint(child); c != nil {
				return c
			}
		}
		return nil
	}
	flat := g.FlatCoords()
	if g.Stride() < 2 || len(flat) < 2 {
		return nil
	}
	return geom.Coord{flat[0], flat[1]}
}
