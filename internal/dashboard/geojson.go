package dashboard

import (
	"encoding/json"
	"io"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/gyeh/cantonhealth/internal/model"
)

// DistrictFeatures encodes districts with all table attributes. An
// undefined ratio is a JSON null.
func DistrictFeatures(districts []model.District) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(districts))}
	for _, d := range districts {
		var ratio any
		if r, ok := d.Ratio(); ok {
			ratio = r
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: d.Geometry,
			Properties: map[string]any{
				model.ColProvince:      d.Province,
				model.ColCanton:        d.Name,
				model.ColCode:          d.Code,
				model.ColProvinceCode:  d.ProvinceCode,
				model.ColPopulation:    d.Population,
				model.ColFacilityCount: d.FacilityCount,
				model.ColArea:          d.AreaKm2,
				model.ColDensity:       d.Density,
				model.ColRatio:         ratio,
			},
		})
	}
	return fc
}

// FacilityFeatures encodes facilities with name, category and locality.
func FacilityFeatures(facilities []model.Facility) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(facilities))}
	for _, f := range facilities {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: f.Geometry,
			Properties: map[string]any{
				model.ColFacilityName: f.Name,
				model.ColCategory:     f.Category,
				model.ColFacilityCity: f.City,
			},
		})
	}
	return fc
}

// WriteGeoJSON writes a feature collection as indented JSON.
func WriteGeoJSON(w io.Writer, fc *geojson.FeatureCollection) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}
