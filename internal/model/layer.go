package model

import (
	geom "github.com/twpayne/go-geom"
)

// Feature is one source row: an attribute map plus an optional geometry.
type Feature struct {
	Properties map[string]any
	Geometry   geom.T
}

// Layer is a source dataset as read from storage.
type Layer struct {
	Name   string // one of the Layer* constants
	Source string // path or postgres:<layer>
	Format string // "geojson", "geoparquet", "geopackage" or "postgres"
	// CRS is the normalized source CRS, e.g. "EPSG:4326".
	CRS      string
	Columns  []string
	Features []Feature
}

// Column returns true if the layer has the named attribute column.
func (l *Layer) Column(name string) bool {
	for _, c := range l.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// GeometryCount returns the number of features carrying a geometry.
func (l *Layer) GeometryCount() int {
	n := 0
	for _, f := range l.Features {
		if f.Geometry != nil {
			n++
		}
	}
	return n
}
