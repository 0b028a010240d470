package model

import (
	"github.com/google/uuid"
)

// StagedFeature is the DB-ready representation of one source feature.
// Properties are JSON-encoded; Geometry is WKB in EPSG:4326.
type StagedFeature struct {
	BatchID   uuid.UUID
	Layer     string
	RowNumber int64

	Properties []byte
	Geometry   []byte
}

// StagedFeatureColumns returns the ordered column names for COPY into
// layers.features.
func StagedFeatureColumns() []string {
	return []string{
		"batch_id",
		"layer",
		"row_number",
		"properties",
		"geometry",
	}
}

// CopyValues returns the row's values in StagedFeatureColumns order.
func (s *StagedFeature) CopyValues() []any {
	var geometry any
	if len(s.Geometry) > 0 {
		geometry = s.Geometry
	}
	return []any{
		s.BatchID,
		s.Layer,
		s.RowNumber,
		string(s.Properties),
		geometry,
	}
}
