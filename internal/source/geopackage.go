package source

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	_ "modernc.org/sqlite"

	"github.com/gyeh/cantonhealth/internal/geo"
	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/normalize"
)

const (
	gpkgApplicationID = 0x47504B47 // "GPKG"
	gpkgUserVersion   = 10300
	gpkgGeometryCol   = "geom"
)

// ErrNoFeatureTable is returned for a GeoPackage without a features table.
var ErrNoFeatureTable = errors.New("geopackage has no features table")

// ReadGeoPackage reads the first features table (by name) of a GeoPackage.
func ReadGeoPackage(ctx context.Context, path string) (*model.Layer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open geopackage: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open geopackage: %w", err)
	}
	defer db.Close()

	var table, geomCol string
	var srsID int64
	err = db.QueryRowContext(ctx, `
		SELECT c.table_name, g.column_name, g.srs_id
		FROM gpkg_contents c
		JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
		WHERE c.data_type = 'features'
		ORDER BY c.table_name
		LIMIT 1`).Scan(&table, &geomCol, &srsID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoFeatureTable)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read gpkg_contents: %w", path, err)
	}

	crs, err := gpkgCRS(ctx, db, srsID)
	if err != nil {
		return nil, fmt.Errorf("%s: table %s: %w", path, table, err)
	}
	pk, err := primaryKey(ctx, db, table)
	if err != nil {
		return nil, fmt.Errorf("%s: table %s: %w", path, table, err)
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, fmt.Errorf("%s: select %s: %w", path, table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var columns []string
	for _, n := range names {
		if n != geomCol && n != pk {
			columns = append(columns, n)
		}
	}

	var features []model.Feature
	values := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, len(features)+1, err)
		}
		feat := model.Feature{Properties: make(map[string]any, len(columns))}
		for i, n := range names {
			switch n {
			case pk:
			case geomCol:
				b, _ := values[i].([]byte)
				if len(b) == 0 {
					continue
				}
				g, err := decodeGPKGGeometry(b)
				if err != nil {
					return nil, fmt.Errorf("%s: row %d: %w", path, len(features)+1, err)
				}
				feat.Geometry = g
			default:
				feat.Properties[n] = sqliteValue(values[i])
			}
		}
		features = append(features, feat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", path, table, err)
	}

	return &model.Layer{
		CRS:      crs,
		Columns:  columns,
		Features: features,
	}, nil
}

// gpkgCRS maps a GeoPackage srs_id to a normalized CRS. srs_id 0 is the
// undefined geographic system, read as WGS84.
func gpkgCRS(ctx context.Context, db *sql.DB, srsID int64) (string, error) {
	switch srsID {
	case 0:
		return geo.WGS84, nil
	case -1:
		return "", fmt.Errorf("undefined cartesian crs (srs_id -1)")
	}
	var org string
	var code int64
	err := db.QueryRowContext(ctx,
		`SELECT organization, organization_coordsys_id FROM gpkg_spatial_ref_sys WHERE srs_id = ?`,
		srsID).Scan(&org, &code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("srs_id %d not in gpkg_spatial_ref_sys", srsID)
	}
	if err != nil {
		return "", fmt.Errorf("read gpkg_spatial_ref_sys: %w", err)
	}
	return geo.ParseCRS(org + ":" + strconv.FormatInt(code, 10))
}

func primaryKey(ctx context.Context, db *sql.DB, table string) (string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?) WHERE pk > 0`, table)
	if err != nil {
		return "", fmt.Errorf("read table info: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return "", err
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	// Composite keys are attribute data, not a row id.
	if len(names) != 1 {
		return "", nil
	}
	return names[0], nil
}

func sqliteValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int:
		return int64(t)
	}
	return v
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// decodeGPKGGeometry strips the GeoPackage binary header (magic, version,
// flags, srs_id, optional envelope) and decodes the WKB body. Geometries
// flagged empty decode to nil.
func decodeGPKGGeometry(b []byte) (geom.T, error) {
	if len(b) < 8 || b[0] != 'G' || b[1] != 'P' {
		return nil, fmt.Errorf("decode gpkg geometry: bad magic")
	}
	flags := b[3]
	if flags&0x20 != 0 {
		return nil, fmt.Errorf("decode gpkg geometry: extended geometries are not supported")
	}
	if flags&0x10 != 0 {
		return nil, nil
	}
	var envelope int
	switch (flags >> 1) & 0x07 {
	case 0:
	case 1:
		envelope = 32
	case 2, 3:
		envelope = 48
	case 4:
		envelope = 64
	default:
		return nil, fmt.Errorf("decode gpkg geometry: invalid envelope flag %#x", flags)
	}
	offset := 8 + envelope
	if len(b) <= offset {
		return nil, fmt.Errorf("decode gpkg geometry: truncated")
	}
	g, err := wkb.Unmarshal(b[offset:])
	if err != nil {
		return nil, fmt.Errorf("decode wkb: %w", err)
	}
	return g, nil
}

func encodeGPKGGeometry(g geom.T, srsID int32) ([]byte, error) {
	body, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8, 8+len(body))
	out[0], out[1] = 'G', 'P'
	out[3] = 0x01 // little endian, no envelope
	binary.LittleEndian.PutUint32(out[4:], uint32(srsID))
	return append(out, body...), nil
}

// WriteGeoPackage writes a layer into a new GeoPackage at path as a single
// features table. Numeric properties become REAL columns; everything else is
// stored as TEXT. path must not exist.
func WriteGeoPackage(ctx context.Context, path, table string, l *model.Layer) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("write geopackage: %s already exists", path)
	}
	srsID, org, err := gpkgSRS(l.CRS)
	if err != nil {
		return fmt.Errorf("write geopackage: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("create geopackage: %w", err)
	}
	defer db.Close()

	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA application_id = %d", gpkgApplicationID),
		fmt.Sprintf("PRAGMA user_version = %d", gpkgUserVersion),
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("create geopackage: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	columns := make([]string, 0, len(l.Columns))
	numeric := make(map[string]bool, len(l.Columns))
	defs := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT", quoteIdent(gpkgGeometryCol) + " BLOB"}
	for _, c := range l.Columns {
		if c == gpkgGeometryCol || c == "fid" {
			continue
		}
		columns = append(columns, c)
		numeric[c] = numericColumn(l.Features, c)
		typ := "TEXT"
		if numeric[c] {
			typ = "REAL"
		}
		defs = append(defs, quoteIdent(c)+" "+typ)
	}

	stmts := []string{
		`CREATE TABLE gpkg_spatial_ref_sys (
			srs_name TEXT NOT NULL,
			srs_id INTEGER PRIMARY KEY,
			organization TEXT NOT NULL,
			organization_coordsys_id INTEGER NOT NULL,
			definition TEXT NOT NULL,
			description TEXT)`,
		`CREATE TABLE gpkg_contents (
			table_name TEXT NOT NULL PRIMARY KEY,
			data_type TEXT NOT NULL,
			identifier TEXT UNIQUE,
			description TEXT DEFAULT '',
			last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
			min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
			srs_id INTEGER REFERENCES gpkg_spatial_ref_sys(srs_id))`,
		`CREATE TABLE gpkg_geometry_columns (
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			geometry_type_name TEXT NOT NULL,
			srs_id INTEGER NOT NULL,
			z TINYINT NOT NULL,
			m TINYINT NOT NULL,
			CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name))`,
		`INSERT INTO gpkg_spatial_ref_sys VALUES
			('Undefined cartesian SRS', -1, 'NONE', -1, 'undefined', NULL),
			('Undefined geographic SRS', 0, 'NONE', 0, 'undefined', NULL)`,
		fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(table), strings.Join(defs, ", ")),
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("create geopackage schema: %w", err)
		}
	}
	if srsID > 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gpkg_spatial_ref_sys VALUES (?, ?, ?, ?, 'undefined', NULL)`,
			l.CRS, srsID, org, srsID); err != nil {
			return fmt.Errorf("register srs: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'features', ?, ?)`,
		table, table, srsID); err != nil {
		return fmt.Errorf("register contents: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_geometry_columns VALUES (?, ?, 'GEOMETRY', ?, 0, 0)`,
		table, gpkgGeometryCol, srsID); err != nil {
		return fmt.Errorf("register geometry column: %w", err)
	}

	quoted := []string{quoteIdent(gpkgGeometryCol)}
	marks := []string{"?"}
	for _, c := range columns {
		quoted = append(quoted, quoteIdent(c))
		marks = append(marks, "?")
	}
	insert, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer insert.Close()

	args := make([]any, len(quoted))
	for i, f := range l.Features {
		args[0] = nil
		if f.Geometry != nil {
			b, err := encodeGPKGGeometry(f.Geometry, int32(srsID))
			if err != nil {
				return fmt.Errorf("feature %d: encode geometry: %w", i, err)
			}
			args[0] = b
		}
		for j, c := range columns {
			args[j+1] = sqlValue(f.Properties[c], numeric[c])
		}
		if _, err := insert.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("feature %d: insert: %w", i, err)
		}
	}
	return tx.Commit()
}

func gpkgSRS(crs string) (int64, string, error) {
	switch crs {
	case geo.WGS84, geo.CRS84, "":
		return 4326, "EPSG", nil
	}
	code, ok := strings.CutPrefix(crs, "EPSG:")
	if !ok {
		return 0, "", fmt.Errorf("crs %s has no EPSG code", crs)
	}
	n, err := strconv.ParseInt(code, 10, 32)
	if err != nil {
		return 0, "", fmt.Errorf("crs %s: %w", crs, err)
	}
	return n, "EPSG", nil
}

func sqlValue(v any, numeric bool) any {
	if v == nil {
		return nil
	}
	if numeric {
		f, _ := normalize.Float(v)
		return f
	}
	s, _ := normalize.String(v)
	return s
}
