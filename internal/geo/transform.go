package geo

import (
	"fmt"

	geom "github.com/twpayne/go-geom"
)

// Transform returns a copy of g with fn applied to the x/y ordinates of
// every coordinate. Extra ordinates (z, m) are copied unchanged. A nil fn
// returns g itself.
func Transform(g geom.T, fn CoordFunc) (geom.T, error) {
	if g == nil || fn == nil {
		return g, nil
	}
	if gc, ok := g.(*geom.GeometryCollection); ok {
		out := geom.NewGeometryCollection()
		for _, child := range gc.Geoms() {
			t, err := Transform(child, fn)
			if err != nil {
				return nil, err
			}
			if err := out.Push(t); err != nil {
				return nil, err
			}
		}
		return out.SetSRID(gc.SRID()), nil
	}

	layout := g.Layout()
	stride := layout.Stride()
	src := g.FlatCoords()
	flat := make([]float64, len(src))
	copy(flat, src)
	if stride >= 2 {
		for i := 0; i+1 < len(flat); i += stride {
			flat[i], flat[i+1] = fn(flat[i], flat[i+1])
		}
	}

	switch t := g.(type) {
	case *geom.Point:
		if t.Empty() {
			return geom.NewPointEmpty(layout), nil
		}
		return geom.NewPointFlat(layout, flat), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(layout, flat), nil
	case *geom.LinearRing:
		return geom.NewLinearRingFlat(layout, flat), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(layout, flat, copyInts(t.Ends())), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(layout, flat,
			geom.NewMultiPointFlatOptionWithEnds(copyInts(t.Ends()))), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(layout, flat, copyInts(t.Ends())), nil
	case *geom.MultiPolygon:
		endss := make([][]int, len(t.Endss()))
		for i, ends := range t.Endss() {
			endss[i] = copyInts(ends)
		}
		return geom.NewMultiPolygonFlat(layout, flat, endss), nil
	}
	return nil, fmt.Errorf("transform: unsupported geometry %T", g)
}

func copyInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}
