package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/gyeh/cantonhealth/internal/geo"
	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/normalize"
	"github.com/gyeh/cantonhealth/internal/source"
)

// Sources names the three input layers. Each is a file path or a
// postgres:<layer> reference.
type Sources struct {
	Population string
	Facilities string
	Boundaries string
}

// Ref returns the source reference for a layer name.
func (s Sources) Ref(layer string) string {
	switch layer {
	case model.LayerPopulation:
		return s.Population
	case model.LayerFacilities:
		return s.Facilities
	case model.LayerBoundaries:
		return s.Boundaries
	}
	return ""
}

// nameColumns are canonicalized so join keys compare exactly.
var nameColumns = []string{model.ColCanton, model.ColProvince, model.ColFacilityCity}

// LayerReport describes what loading did to one source.
type LayerReport struct {
	Layer      string
	Source     string
	Format     string
	SourceCRS  string
	Features   int
	Geometries int
	Columns    []string
	// Renames maps source column to canonical column for aliases that matched.
	Renames map[string]string
	// Missing lists canonical columns the layer lacks after aliasing.
	Missing []string
	// SHA256 is empty for postgres sources.
	SHA256 string
}

// LoadResult holds the three normalized layers, all in EPSG:4326.
type LoadResult struct {
	Population *model.Layer
	Facilities *model.Layer
	Boundaries *model.Layer
	Reports    []*LayerReport
	Duration   time.Duration
}

// Load reads, aliases and reprojects all three layers.
func Load(ctx context.Context, log zerolog.Logger, src Sources, store source.LayerStore) (*LoadResult, error) {
	start := time.Now()
	res := &LoadResult{}

	for _, spec := range model.AllLayers {
		l, report, err := LoadLayer(ctx, log, src.Ref(spec.Name), spec.Name, store)
		if err != nil {
			return nil, err
		}
		res.Reports = append(res.Reports, report)
		switch spec.Name {
		case model.LayerPopulation:
			res.Population = l
		case model.LayerFacilities:
			res.Facilities = l
		case model.LayerBoundaries:
			res.Boundaries = l
		}
	}

	res.Duration = time.Since(start)
	log.Info().
		Int("population_rows", len(res.Population.Features)).
		Int("facilities", len(res.Facilities.Features)).
		Int("boundaries", len(res.Boundaries.Features)).
		Str("duration", res.Duration.String()).
		Msg("load complete")
	return res, nil
}

// LoadLayer reads one source and normalizes it: column aliases, canonical
// name values, and reprojection to EPSG:4326. Any failure is a
// *DataLoadError.
func LoadLayer(ctx context.Context, log zerolog.Logger, ref, layer string, store source.LayerStore) (*model.Layer, *LayerReport, error) {
	fail := func(err error) (*model.Layer, *LayerReport, error) {
		return nil, nil, &DataLoadError{Layer: layer, Path: ref, Err: err}
	}
	if ref == "" {
		return fail(fmt.Errorf("no source configured"))
	}

	l, err := source.Read(ctx, ref, layer, store)
	if err != nil {
		return fail(err)
	}

	report := &LayerReport{
		Layer:      layer,
		Source:     ref,
		Format:     l.Format,
		SourceCRS:  l.CRS,
		Features:   len(l.Features),
		Geometries: l.GeometryCount(),
	}
	if source.IsFile(ref) {
		sha, err := normalize.FileHash(ref)
		if err != nil {
			return fail(err)
		}
		report.SHA256 = sha
	}

	renames := normalize.AliasesFor(layer).Renames(l.Columns)
	for i := range l.Features {
		props := normalize.Apply(l.Features[i].Properties, renames)
		for _, col := range nameColumns {
			if s, ok := props[col].(string); ok {
				props[col] = normalize.CanonicalName(s)
			}
		}
		l.Features[i].Properties = props
	}
	l.Columns = normalize.RenameColumns(l.Columns, renames)
	report.Renames = renames
	report.Columns = l.Columns

	if err := reproject(l); err != nil {
		return fail(err)
	}

	if spec, ok := model.LayerByName(layer); ok {
		for _, col := range spec.Required {
			if !l.Column(col) {
				report.Missing = append(report.Missing, col)
			}
		}
	}
	if len(report.Missing) > 0 {
		log.Warn().
			Str("layer", layer).
			Str("source", ref).
			Strs("missing", report.Missing).
			Msg("canonical columns absent after aliasing")
	}

	log.Debug().
		Str("layer", layer).
		Str("format", l.Format).
		Str("crs", report.SourceCRS).
		Int("features", report.Features).
		Int("renamed", len(renames)).
		Msg("layer loaded")
	return l, report, nil
}

func reproject(l *model.Layer) error {
	fn, err := geo.ToWGS84(l.CRS)
	if err != nil {
		return err
	}
	if fn != nil {
		for i, f := range l.Features {
			if f.Geometry == nil {
				continue
			}
			g, err := geo.Transform(f.Geometry, fn)
			if err != nil {
				return fmt.Errorf("reproject feature %d: %w", i, err)
			}
			l.Features[i].Geometry = g
		}
	}
	l.CRS = geo.WGS84
	return nil
}
