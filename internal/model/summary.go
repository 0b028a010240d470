package model

import "time"

// RunSummary captures metrics from a single pipeline run.
type RunSummary struct {
	PopulationSource string
	FacilitySource   string
	BoundarySource   string

	Districts           int
	PopulationRows      int
	FacilitiesRead      int
	FacilitiesKept      int
	FacilitiesJoined    int
	FacilitiesUnmatched int
	DistrictsNoFacility int
	// PopulationDuplicates counts population rows dropped because an
	// earlier row had the same canonical canton name.
	PopulationDuplicates int

	TotalHospitals  int64
	TotalPopulation int64

	DurationLoad   time.Duration
	DurationFilter time.Duration
	DurationJoin   time.Duration
	DurationDerive time.Duration
	DurationTotal  time.Duration
}
