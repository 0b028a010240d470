package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/source"
)

// Result is the output of one pipeline run. It is immutable once returned
// and safe to share between goroutines.
type Result struct {
	Districts  []model.District
	Facilities []model.Facility
	// Layers reports how each source was read, in load order.
	Layers  []*LayerReport
	Summary model.RunSummary
}

// Run executes the full pipeline: load → filter → join → derive.
// store may be nil when no source is a postgres: reference.
func Run(ctx context.Context, log zerolog.Logger, src Sources, store source.LayerStore) (*Result, error) {
	totalStart := time.Now()

	// Phase 1: Load
	log.Info().
		Str("population", src.Population).
		Str("facilities", src.Facilities).
		Str("boundaries", src.Boundaries).
		Msg("starting load")
	loaded, err := Load(ctx, log, src, store)
	if err != nil {
		return nil, &PipelineError{Phase: PhaseLoad, Err: err}
	}

	// Phase 2: Filter
	filtered := FilterFacilities(log, loaded.Facilities)

	// Phase 3: Join
	districts := Districts(loaded.Boundaries)
	joined := Join(log, districts, filtered.Facilities)

	// Phase 4: Derive
	population, dups := PopulationIndex(log, loaded.Population)
	if dups > 0 {
		log.Warn().Int("duplicates", dups).Msg("population source has duplicate canton names; first row kept")
	}
	derived := Derive(log, districts, population, joined.Counts)

	summary := model.RunSummary{
		PopulationSource:     src.Population,
		FacilitySource:       src.Facilities,
		BoundarySource:       src.Boundaries,
		Districts:            len(derived.Districts),
		PopulationRows:       len(loaded.Population.Features),
		FacilitiesRead:       filtered.Read,
		FacilitiesKept:       len(filtered.Facilities),
		FacilitiesJoined:     joined.Joined,
		FacilitiesUnmatched:  joined.Unmatched + joined.NoPoint,
		DistrictsNoFacility:  derived.NoFacility,
		PopulationDuplicates: dups,
		DurationLoad:         loaded.Duration,
		DurationFilter:       filtered.Duration,
		DurationJoin:         joined.Duration,
		DurationDerive:       derived.Duration,
	}
	for _, d := range derived.Districts {
		summary.TotalHospitals += d.FacilityCount
		summary.TotalPopulation += d.Population
	}
	summary.DurationTotal = time.Since(totalStart)

	log.Info().
		Int("districts", summary.Districts).
		Int("facilities_kept", summary.FacilitiesKept).
		Int("facilities_joined", summary.FacilitiesJoined).
		Int64("total_hospitals", summary.TotalHospitals).
		Int64("total_population", summary.TotalPopulation).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("pipeline complete")

	return &Result{
		Districts:  derived.Districts,
		Facilities: filtered.Facilities,
		Layers:     loaded.Reports,
		Summary:    summary,
	}, nil
}
