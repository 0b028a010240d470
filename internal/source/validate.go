package source

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gyeh/cantonhealth/internal/model"
)

// ErrNoGeometry is returned when a layer carries no geometry at all.
var ErrNoGeometry = errors.New("no geometry column")

// ValidateGeometry checks that a non-empty layer has at least one geometry.
// An empty layer is valid; the facility layer may legitimately be empty.
func ValidateGeometry(l *model.Layer) error {
	if len(l.Features) == 0 {
		return nil
	}
	if l.GeometryCount() == 0 {
		return fmt.Errorf("%s: %w", l.Source, ErrNoGeometry)
	}
	return nil
}

// CollectColumns returns the sorted union of property keys across features.
func CollectColumns(features []model.Feature) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, f := range features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
