package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/cantonhealth/internal/geo"
	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/normalize"
)

// FilterResult holds the retained facilities and filter counts.
type FilterResult struct {
	Facilities []model.Facility
	Read       int
	NoCategory int
	Excluded   int
	Duration   time.Duration
}

// FilterFacilities drops facilities with no category or an excluded
// category. Retained facilities are indexed 0..n-1 in source order.
func FilterFacilities(log zerolog.Logger, l *model.Layer) *FilterResult {
	start := time.Now()
	res := &FilterResult{Read: len(l.Features)}
	res.Facilities = make([]model.Facility, 0, len(l.Features))

	for _, f := range l.Features {
		category, ok := normalize.String(f.Properties[model.ColCategory])
		if !ok {
			res.NoCategory++
			continue
		}
		if normalize.IsExcludedCategory(category) {
			res.Excluded++
			continue
		}
		city, _ := normalize.String(f.Properties[model.ColFacilityCity])
		res.Facilities = append(res.Facilities, model.Facility{
			Index:    len(res.Facilities),
			Name:     facilityName(f.Properties),
			Category: category,
			City:     normalize.CanonicalName(city),
			Geometry: f.Geometry,
			Point:    geo.RepresentativePoint(f.Geometry),
		})
	}

	res.Duration = time.Since(start)
	log.Info().
		Int("read", res.Read).
		Int("kept", len(res.Facilities)).
		Int("no_category", res.NoCategory).
		Int("excluded", res.Excluded).
		Str("duration", res.Duration.String()).
		Msg("facility filter complete")
	return res
}

func facilityName(props map[string]any) string {
	for _, col := range []string{model.ColFacilityName, model.ColFacilityAlt} {
		if s, ok := normalize.String(props[col]); ok && s != "" {
			return s
		}
	}
	return model.FacilityNameNone
}
