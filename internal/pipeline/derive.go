package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/cantonhealth/internal/geo"
	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/normalize"
)

// DeriveResult holds the finished district table.
type DeriveResult struct {
	Districts    []model.District
	NoFacility   int
	NoPopulation int
	Duration     time.Duration
}

// PopulationIndex maps canonical district name to population. The first
// row for a name wins.
func PopulationIndex(log zerolog.Logger, l *model.Layer) (map[string]int64, int) {
	idx := make(map[string]int64, len(l.Features))
	dups := 0
	for _, f := range l.Features {
		name, ok := normalize.String(f.Properties[model.ColCanton])
		if !ok {
			continue
		}
		if _, seen := idx[name]; seen {
			dups++
			log.Debug().Str("canton", name).Msg("duplicate population row ignored")
			continue
		}
		idx[name] = normalize.Count(f.Properties[model.ColPopulation])
	}
	return idx, dups
}

// Derive fills facility counts and population into districts and computes
// the derived metrics. The input slice is not modified.
func Derive(log zerolog.Logger, districts []model.District, population map[string]int64, counts map[string]int64) *DeriveResult {
	start := time.Now()
	res := &DeriveResult{Districts: make([]model.District, len(districts))}

	for i, d := range districts {
		d.FacilityCount = counts[d.Name]
		pop, ok := population[d.Name]
		if !ok {
			res.NoPopulation++
		}
		d.Population = pop
		d = DeriveMetrics(d)
		if d.FacilityCount == 0 {
			res.NoFacility++
		}
		res.Districts[i] = d
	}

	res.Duration = time.Since(start)
	log.Info().
		Int("districts", len(res.Districts)).
		Int("no_facility", res.NoFacility).
		Int("no_population", res.NoPopulation).
		Str("duration", res.Duration.String()).
		Msg("metrics derived")
	return res
}

// DeriveMetrics computes area, density and population per facility from a
// district's geometry, population and facility count. It is pure and
// idempotent.
func DeriveMetrics(d model.District) model.District {
	if d.FacilityCount < 0 {
		d.FacilityCount = 0
	}
	if d.Population < 0 {
		d.Population = 0
	}
	d.AreaKm2 = geo.AreaKm2(d.Geometry)
	d.Density = 0
	if d.AreaKm2 > 0 {
		d.Density = float64(d.Population) / d.AreaKm2
	}
	d.PopulationPerFacility = nil
	if d.FacilityCount > 0 {
		ratio := float64(d.Population) / float64(d.FacilityCount)
		d.PopulationPerFacility = &ratio
	}
	return d
}
