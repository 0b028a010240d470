package source

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/gyeh/cantonhealth/internal/geo"
	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/normalize"
)

const (
	readBatchSize         = 1024
	geoMetadataKey        = "geo"
	defaultGeometryColumn = "geometry"
)

// geoMetadata is the GeoParquet "geo" file metadata document.
type geoMetadata struct {
	Version       string               `json:"version"`
	PrimaryColumn string               `json:"primary_column"`
	Columns       map[string]geoColumn `json:"columns"`
}

type geoColumn struct {
	Encoding      string          `json:"encoding"`
	GeometryTypes []string        `json:"geometry_types"`
	CRS           json.RawMessage `json:"crs,omitempty"`
}

// projjsonID is the subset of a PROJJSON document needed to identify an
// EPSG code.
type projjsonID struct {
	ID struct {
		Authority string          `json:"authority"`
		Code      json.RawMessage `json:"code"`
	} `json:"id"`
}

// ReadGeoParquet reads a GeoParquet file with a WKB geometry column.
// Files without "geo" metadata are accepted when they carry a WKB column
// named "geometry" or "geom", which is assumed to be in EPSG:4326.
func ReadGeoParquet(path string) (*model.Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	names := columnNames(pf.Schema())
	geomCol, crs, err := geometryColumn(pf, names)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	geomIdx := -1
	var columns []string
	for i, n := range names {
		if n == geomCol {
			geomIdx = i
			continue
		}
		columns = append(columns, n)
	}
	if geomIdx < 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoGeometry)
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	var features []model.Feature
	buf := make([]parquet.Row, readBatchSize)
	var rowNum int64
	for {
		n, readErr := reader.ReadRows(buf)
		for i := 0; i < n; i++ {
			rowNum++
			feat, err := rowFeature(buf[i], names, geomIdx)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", path, rowNum, err)
			}
			features = append(features, feat)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read parquet at row %d: %w", rowNum, readErr)
		}
	}

	return &model.Layer{
		CRS:      crs,
		Columns:  columns,
		Features: features,
	}, nil
}

func columnNames(schema *parquet.Schema) []string {
	paths := schema.Columns()
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = strings.Join(p, ".")
	}
	return names
}

// geometryColumn resolves the primary geometry column and its CRS from the
// "geo" metadata, falling back to well-known column names.
func geometryColumn(pf *parquet.File, names []string) (string, string, error) {
	raw, ok := pf.Lookup(geoMetadataKey)
	if !ok {
		for _, n := range names {
			if n == defaultGeometryColumn || n == "geom" {
				return n, geo.WGS84, nil
			}
		}
		return "", "", ErrNoGeometry
	}

	var md geoMetadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return "", "", fmt.Errorf("parse geo metadata: %w", err)
	}
	col := md.PrimaryColumn
	if col == "" {
		col = defaultGeometryColumn
	}
	meta := md.Columns[col]
	if meta.Encoding != "" && !strings.EqualFold(meta.Encoding, "WKB") {
		return "", "", fmt.Errorf("geometry column %q: unsupported encoding %q", col, meta.Encoding)
	}
	crs, err := parseGeoParquetCRS(meta.CRS)
	if err != nil {
		return "", "", fmt.Errorf("geometry column %q: %w", col, err)
	}
	return col, crs, nil
}

// parseGeoParquetCRS accepts an absent or null crs (OGC:CRS84), a plain
// string identifier, or a PROJJSON object carrying an id.
func parseGeoParquetCRS(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return geo.CRS84, nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return geo.ParseCRS(s)
	}
	var pj projjsonID
	if err := json.Unmarshal(trimmed, &pj); err != nil {
		return "", fmt.Errorf("parse crs: %w", err)
	}
	if pj.ID.Authority == "" {
		return "", fmt.Errorf("projjson crs has no id")
	}
	code := strings.Trim(string(pj.ID.Code), `"`)
	return geo.ParseCRS(pj.ID.Authority + ":" + code)
}

func rowFeature(row parquet.Row, names []string, geomIdx int) (model.Feature, error) {
	props := make(map[string]any, len(names))
	var g geom.T
	for _, v := range row {
		col := v.Column()
		if col < 0 || col >= len(names) {
			continue
		}
		if col == geomIdx {
			if v.IsNull() || len(v.ByteArray()) == 0 {
				continue
			}
			decoded, err := wkb.Unmarshal(v.ByteArray())
			if err != nil {
				return model.Feature{}, fmt.Errorf("decode wkb: %w", err)
			}
			g = decoded
			continue
		}
		props[names[col]] = parquetValue(v)
	}
	return model.Feature{Properties: props, Geometry: g}, nil
}

func parquetValue(v parquet.Value) any {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	}
	return v.String()
}

// WriteGeoParquet writes a layer as GeoParquet with a WKB "geometry" column
// and "geo" metadata recording the layer's CRS. Numeric properties become
// DOUBLE columns; everything else is written as strings.
func WriteGeoParquet(w io.Writer, l *model.Layer) error {
	columns := make([]string, 0, len(l.Columns))
	for _, c := range l.Columns {
		if c != defaultGeometryColumn {
			columns = append(columns, c)
		}
	}

	numeric := make(map[string]bool, len(columns))
	group := parquet.Group{}
	for _, c := range columns {
		numeric[c] = numericColumn(l.Features, c)
		if numeric[c] {
			group[c] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			group[c] = parquet.Optional(parquet.String())
		}
	}
	group[defaultGeometryColumn] = parquet.Optional(parquet.Leaf(parquet.ByteArrayType))
	schema := parquet.NewSchema("layer", group)

	meta, err := json.Marshal(geoMetadataFor(l.CRS))
	if err != nil {
		return fmt.Errorf("encode geo metadata: %w", err)
	}

	names := columnNames(schema)
	rows := make([]parquet.Row, 0, len(l.Features))
	for i, f := range l.Features {
		row := make(parquet.Row, len(names))
		for idx, name := range names {
			if name == defaultGeometryColumn {
				if f.Geometry == nil {
					row[idx] = parquet.NullValue().Level(0, 0, idx)
					continue
				}
				b, err := wkb.Marshal(f.Geometry, binary.LittleEndian)
				if err != nil {
					return fmt.Errorf("feature %d: encode wkb: %w", i, err)
				}
				row[idx] = parquet.ByteArrayValue(b).Level(0, 1, idx)
				continue
			}
			v := f.Properties[name]
			if v == nil {
				row[idx] = parquet.NullValue().Level(0, 0, idx)
				continue
			}
			row[idx] = propertyValue(v, numeric[name]).Level(0, 1, idx)
		}
		rows = append(rows, row)
	}

	writer := parquet.NewWriter(w, schema, parquet.KeyValueMetadata(geoMetadataKey, string(meta)))
	if _, err := writer.WriteRows(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func geoMetadataFor(crs string) geoMetadata {
	col := geoColumn{Encoding: "WKB", GeometryTypes: []string{}}
	if code, ok := strings.CutPrefix(crs, "EPSG:"); ok && crs != geo.WGS84 {
		if n, err := strconv.Atoi(code); err == nil {
			col.CRS = json.RawMessage(fmt.Sprintf(`{"id":{"authority":"EPSG","code":%d}}`, n))
		}
	}
	return geoMetadata{
		Version:       "1.0.0",
		PrimaryColumn: defaultGeometryColumn,
		Columns:       map[string]geoColumn{defaultGeometryColumn: col},
	}
}

func numericColumn(features []model.Feature, col string) bool {
	seen := false
	for _, f := range features {
		switch f.Properties[col].(type) {
		case nil:
		case float64, float32, int, int32, int64, json.Number:
			seen = true
		default:
			return false
		}
	}
	return seen
}

func propertyValue(v any, numeric bool) parquet.Value {
	if numeric {
		f, _ := normalize.Float(v)
		return parquet.DoubleValue(f)
	}
	s, _ := normalize.String(v)
	return parquet.ByteArrayValue([]byte(s))
}
