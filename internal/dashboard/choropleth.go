package dashboard

import (
	"fmt"
	"sort"

	"github.com/twpayne/go-geom/encoding/geojson"
	"gonum.org/v1/gonum/stat"

	"github.com/gyeh/cantonhealth/internal/model"
)

// Classes is the number of colour classes on the choropleth.
const Classes = 6

// Map defaults, centred on Costa Rica.
var (
	DefaultCenter = [2]float64{9.7489, -83.7534}
	DefaultZoom   = 7
)

// Variable is a district column that can be mapped.
type Variable struct {
	Column string `json:"column"`
	Label  string `json:"label"`
}

// Variables lists the mappable columns; the first is the default.
var Variables = []Variable{
	{Column: model.ColRatio, Label: "Habitantes por hospital"},
	{Column: model.ColPopulation, Label: "Población total (2015)"},
	{Column: model.ColDensity, Label: "Densidad poblacional"},
}

// Palette is a named sequential colour ramp with one colour per class.
type Palette struct {
	Name   string   `json:"name"`
	Label  string   `json:"label"`
	Colors []string `json:"colors"`
}

// Palettes lists the ColorBrewer and viridis ramps; the first is the default.
var Palettes = []Palette{
	{Name: "YlOrRd", Label: "Amarillo a rojo (calor)", Colors: []string{"#ffffb2", "#fed976", "#feb24c", "#fd8d3c", "#f03b20", "#bd0026"}},
	{Name: "YlGnBu", Label: "Verde a azul (suave)", Colors: []string{"#ffffcc", "#c7e9b4", "#7fcdbb", "#41b6c4", "#2c7fb8", "#253494"}},
	{Name: "OrRd", Label: "Naranja a rojo", Colors: []string{"#fef0d9", "#fdd49e", "#fdbb84", "#fc8d59", "#e34a33", "#b30000"}},
	{Name: "PuBu", Label: "Púrpura a azul", Colors: []string{"#f1eef6", "#d0d1e6", "#a6bddb", "#74a9cf", "#2b8cbe", "#045a8d"}},
	{Name: "Viridis", Label: "Multicolor (Viridis)", Colors: []string{"#440154", "#414487", "#2a788e", "#22a884", "#7ad151", "#fde725"}},
}

// VariableByColumn looks up a mappable variable. Empty selects the default.
func VariableByColumn(col string) (Variable, error) {
	if col == "" {
		return Variables[0], nil
	}
	for _, v := range Variables {
		if v.Column == col {
			return v, nil
		}
	}
	return Variable{}, fmt.Errorf("unknown map variable %q", col)
}

// PaletteByName looks up a palette. Empty selects the default.
func PaletteByName(name string) (Palette, error) {
	if name == "" {
		return Palettes[0], nil
	}
	for _, p := range Palettes {
		if p.Name == name {
			return p, nil
		}
	}
	return Palette{}, fmt.Errorf("unknown palette %q", name)
}

// Value returns a district's value for a map column. ok is false when the
// value is undefined.
func Value(d model.District, col string) (float64, bool) {
	switch col {
	case model.ColRatio:
		return d.Ratio()
	case model.ColPopulation:
		return float64(d.Population), true
	case model.ColDensity:
		return d.Density, true
	case model.ColArea:
		return d.AreaKm2, true
	case model.ColFacilityCount:
		return float64(d.FacilityCount), true
	}
	return 0, false
}

// Breaks returns the Classes-1 inner quantile breaks of values.
func Breaks(values []float64) []float64 {
	if len(values) == 0 {
		return []float64{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	breaks := make([]float64, Classes-1)
	for i := range breaks {
		breaks[i] = stat.Quantile(float64(i+1)/Classes, stat.Empirical, sorted, nil)
	}
	return breaks
}

// Class returns the class index of v: the number of breaks strictly below it.
func Class(v float64, breaks []float64) int {
	c := 0
	for _, b := range breaks {
		if v > b {
			c++
		}
	}
	return c
}

// MapView is everything the front end needs to draw the map.
type MapView struct {
	Variable  Variable                   `json:"variable"`
	Palette   Palette                    `json:"palette"`
	Breaks    []float64                  `json:"breaks"`
	Threshold float64                    `json:"threshold"`
	Center    [2]float64                 `json:"center"`
	Zoom      int                        `json:"zoom"`
	Districts *geojson.FeatureCollection `json:"districts"`
	Saturated *geojson.FeatureCollection `json:"saturated"`
	Markers   []Marker                   `json:"markers"`
}

// BuildMap colours districts by variable into quantile classes, outlines
// saturated districts, and places facility markers. Districts whose value
// or geometry is missing are left off the choropleth.
func BuildMap(districts []model.District, facilities []model.Facility, variable Variable, palette Palette, threshold float64) *MapView {
	var mapped []model.District
	var values []float64
	for _, d := range districts {
		v, ok := Value(d, variable.Column)
		if !ok || d.Geometry == nil {
			continue
		}
		mapped = append(mapped, d)
		values = append(values, v)
	}
	breaks := Breaks(values)

	view := &MapView{
		Variable:  variable,
		Palette:   palette,
		Breaks:    breaks,
		Threshold: threshold,
		Center:    DefaultCenter,
		Zoom:      DefaultZoom,
		Districts: &geojson.FeatureCollection{Features: []*geojson.Feature{}},
		Saturated: &geojson.FeatureCollection{Features: []*geojson.Feature{}},
		Markers:   Markers(facilities),
	}

	for i, d := range mapped {
		class := Class(values[i], breaks)
		view.Districts.Features = append(view.Districts.Features, &geojson.Feature{
			Geometry: d.Geometry,
			Properties: map[string]any{
				model.ColCanton:   d.Name,
				model.ColProvince: d.Province,
				variable.Column:   values[i],
				"class":           class,
				"fill":            palette.Colors[class],
			},
		})
	}

	for _, d := range districts {
		r, ok := d.Ratio()
		if !ok || r < threshold || d.Geometry == nil {
			continue
		}
		view.Saturated.Features = append(view.Saturated.Features, &geojson.Feature{
			Geometry: d.Geometry,
			Properties: map[string]any{
				model.ColCanton: d.Name,
				model.ColRatio:  r,
				"stroke":        "red",
				"dash":          "5, 5",
			},
		})
	}
	return view
}
