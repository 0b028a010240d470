package model

import (
	geom "github.com/twpayne/go-geom"
)

// District is one row of the joined canton table. Rows are never mutated
// after the pipeline returns them.
type District struct {
	Name     string
	Province string
	Code     string
	// ProvinceCode is the numeric province code, empty when the boundary
	// source lacks it.
	ProvinceCode string
	Geometry     geom.T

	Population    int64
	FacilityCount int64

	AreaKm2 float64
	Density float64
	// PopulationPerFacility is nil when the canton has no facility. A nil
	// ratio means undefined, not zero.
	PopulationPerFacility *float64
}

// HasRatio reports whether the population-per-facility ratio is defined.
func (d *District) HasRatio() bool {
	return d.PopulationPerFacility != nil
}

// Ratio returns the population-per-facility ratio and whether it is defined.
func (d *District) Ratio() (float64, bool) {
	if d.PopulationPerFacility == nil {
		return 0, false
	}
	return *d.PopulationPerFacility, true
}

// Facility is one retained health facility.
type Facility struct {
	// Index is the contiguous position after filtering (0..n-1).
	Index    int
	Name     string
	Category string
	City     string
	Geometry geom.T
	// Point is the representative point (lon, lat) used for the containment
	// join and for markers. Nil when the geometry has no usable vertex.
	Point geom.Coord
}

// HasPoint reports whether the facility has a usable representative point.
func (f *Facility) HasPoint() bool {
	return len(f.Point) >= 2
}
