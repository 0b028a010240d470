package source

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/gyeh/cantonhealth/internal/geo"
	"github.com/gyeh/cantonhealth/internal/model"
)

// featureCollection mirrors geojson.FeatureCollection but keeps the legacy
// top-level "crs" member that QGIS and GDAL still write.
type featureCollection struct {
	Type     string             `json:"type"`
	CRS      *geojson.CRS       `json:"crs,omitempty"`
	Features []*geojson.Feature `json:"features"`
}

// ReadGeoJSON reads a GeoJSON FeatureCollection from path.
func ReadGeoJSON(path string) (*model.Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read geojson: %w", err)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse geojson %s: %w", path, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("parse geojson %s: expected FeatureCollection, got %q", path, fc.Type)
	}

	crs, err := geo.ParseCRS(crsName(fc.CRS))
	if err != nil {
		return nil, fmt.Errorf("geojson %s: %w", path, err)
	}

	features := make([]model.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		features = append(features, model.Feature{Properties: props, Geometry: f.Geometry})
	}

	return &model.Layer{
		CRS:      crs,
		Columns:  CollectColumns(features),
		Features: features,
	}, nil
}

// crsName extracts the CRS identifier from a legacy GeoJSON crs member.
// Both the "name" form and the older "EPSG" code form are accepted.
func crsName(c *geojson.CRS) string {
	if c == nil || c.Properties == nil {
		return ""
	}
	if name, ok := c.Properties["name"].(string); ok {
		return name
	}
	switch code := c.Properties["code"].(type) {
	case float64:
		return fmt.Sprintf("EPSG:%d", int(code))
	case string:
		return "EPSG:" + code
	}
	return ""
}
