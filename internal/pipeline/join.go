package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/cantonhealth/internal/geo"
	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/normalize"
)

// JoinResult holds per-district facility counts from the containment join.
type JoinResult struct {
	// Counts is keyed by district name. Districts sharing a name share a count.
	Counts map[string]int64
	// Joined counts facilities inside at least one district.
	Joined    int
	Unmatched int
	NoPoint   int
	Duration  time.Duration
}

// Districts builds one district per boundary feature, in source order,
// carrying name, province, codes and geometry. The canton code falls back to
// CODIGO_CANTON when CODIGO is absent. Metrics are filled by Derive.
func Districts(boundaries *model.Layer) []model.District {
	out := make([]model.District, 0, len(boundaries.Features))
	for _, f := range boundaries.Features {
		name, _ := normalize.String(f.Properties[model.ColCanton])
		province, _ := normalize.String(f.Properties[model.ColProvince])
		code, ok := normalize.String(f.Properties[model.ColCode])
		if !ok || code == "" {
			code, _ = normalize.String(f.Properties[model.ColCantonCode])
		}
		provinceCode, _ := normalize.String(f.Properties[model.ColProvinceCode])
		out = append(out, model.District{
			Name:         name,
			Province:     province,
			Code:         code,
			ProvinceCode: provinceCode,
			Geometry:     f.Geometry,
		})
	}
	return out
}

// Join counts, for each district name, the facilities whose representative
// point lies strictly inside the district polygon. A facility inside
// several overlapping polygons is counted once per polygon.
func Join(log zerolog.Logger, districts []model.District, facilities []model.Facility) *JoinResult {
	start := time.Now()
	res := &JoinResult{Counts: make(map[string]int64)}

	for i := range facilities {
		f := &facilities[i]
		if !f.HasPoint() {
			res.NoPoint++
			log.Debug().Int("facility", f.Index).Str("name", f.Name).Msg("facility has no usable point")
			continue
		}
		matched := false
		for j := range districts {
			if geo.ContainsStrict(districts[j].Geometry, f.Point) {
				res.Counts[districts[j].Name]++
				matched = true
			}
		}
		if matched {
			res.Joined++
		} else {
			res.Unmatched++
		}
	}

	res.Duration = time.Since(start)
	log.Info().
		Int("facilities", len(facilities)).
		Int("joined", res.Joined).
		Int("unmatched", res.Unmatched).
		Int("no_point", res.NoPoint).
		Int("districts_with_facility", len(res.Counts)).
		Str("duration", res.Duration.String()).
		Msg("spatial join complete")
	return res
}
