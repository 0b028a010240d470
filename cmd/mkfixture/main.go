// mkfixture converts a GeoJSON layer into a GeoParquet or GeoPackage
// fixture (chosen by the --out extension), optionally keeping only the first
// N features.
// Usage: go run ./cmd/mkfixture --in testdata/cantones.geojson --out testdata/cantones.gpkg --rows 50
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/source"
)

func main() {
	in := flag.String("in", "", "input GeoJSON")
	out := flag.String("out", "", "output .parquet or .gpkg")
	maxRows := flag.Int("rows", 0, "max features to output (0 keeps all)")
	checkOnly := flag.Bool("check", false, "read --in and print stats, don't write")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "--in is required")
		os.Exit(1)
	}

	if *checkOnly {
		l, err := source.Read(context.Background(), *in, "", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("CRS:      %s\n", l.CRS)
		fmt.Printf("Features: %d (%d with geometry)\n", len(l.Features), l.GeometryCount())
		fmt.Println("Columns:")
		for _, c := range l.Columns {
			fmt.Printf("  %s\n", c)
		}
		return
	}

	if *out == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	l, err := source.ReadGeoJSON(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}
	if *maxRows > 0 && len(l.Features) > *maxRows {
		l.Features = l.Features[:*maxRows]
		l.Columns = source.CollectColumns(l.Features)
	}

	format, err := source.DetectFormat(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	switch format {
	case source.FormatGeoParquet:
		err = writeParquet(*out, l)
	case source.FormatGeoPackage:
		_ = os.Remove(*out)
		table := strings.TrimSuffix(filepath.Base(*out), filepath.Ext(*out))
		err = source.WriteGeoPackage(context.Background(), *out, table, l)
	default:
		err = fmt.Errorf("unsupported output format %s", format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d features (%d with geometry, crs %s) to %s\n",
		len(l.Features), l.GeometryCount(), l.CRS, *out)
	fmt.Printf("Columns: %d\n", len(l.Columns))
}

func writeParquet(path string, l *model.Layer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := source.WriteGeoParquet(f, l); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
