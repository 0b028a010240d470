// Package source reads the three input layers from GeoJSON, GeoParquet,
// GeoPackage or a Postgres staging table into model.Layer values.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gyeh/cantonhealth/internal/model"
)

// Source formats.
const (
	FormatGeoJSON    = "geojson"
	FormatGeoParquet = "geoparquet"
	FormatGeoPackage = "geopackage"
	FormatPostgres   = "postgres"
)

// PostgresPrefix marks a source reference as a staged layer name.
const PostgresPrefix = "postgres:"

// ErrNoStore is returned when a postgres: reference is read without a
// LayerStore.
var ErrNoStore = errors.New("postgres source requires a database connection (--dsn or DATABASE_URL)")

// LayerStore reads layers previously staged into a database.
type LayerStore interface {
	ReadLayer(ctx context.Context, name string) (*model.Layer, error)
}

// DetectFormat returns the format for a source reference based on its
// prefix or file extension.
func DetectFormat(ref string) (string, error) {
	if strings.HasPrefix(ref, PostgresPrefix) {
		if strings.TrimPrefix(ref, PostgresPrefix) == "" {
			return "", fmt.Errorf("source %q: missing layer name after %s", ref, PostgresPrefix)
		}
		return FormatPostgres, nil
	}
	switch strings.ToLower(filepath.Ext(ref)) {
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	case ".parquet", ".geoparquet":
		return FormatGeoParquet, nil
	case ".gpkg":
		return FormatGeoPackage, nil
	}
	return "", fmt.Errorf("source %q: unsupported format (want .geojson, .json, .parquet, .gpkg or %s<layer>)", ref, PostgresPrefix)
}

// IsFile reports whether ref names a file rather than a staged layer.
func IsFile(ref string) bool {
	return !strings.HasPrefix(ref, PostgresPrefix)
}

// Read loads the source ref as the named layer. store may be nil when ref
// is a file. The returned layer is in its source CRS and has passed
// ValidateGeometry.
func Read(ctx context.Context, ref, layer string, store LayerStore) (*model.Layer, error) {
	format, err := DetectFormat(ref)
	if err != nil {
		return nil, err
	}

	var l *model.Layer
	switch format {
	case FormatGeoJSON:
		l, err = ReadGeoJSON(ref)
	case FormatGeoParquet:
		l, err = ReadGeoParquet(ref)
	case FormatGeoPackage:
		l, err = ReadGeoPackage(ctx, ref)
	case FormatPostgres:
		if store == nil {
			return nil, ErrNoStore
		}
		l, err = store.ReadLayer(ctx, strings.TrimPrefix(ref, PostgresPrefix))
	}
	if err != nil {
		return nil, err
	}

	l.Name = layer
	l.Source = ref
	l.Format = format
	if err := ValidateGeometry(l); err != nil {
		return nil, err
	}
	return l, nil
}
