package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/cantonhealth/internal/dashboard"
	"github.com/gyeh/cantonhealth/internal/exitcode"
	"github.com/gyeh/cantonhealth/internal/pipeline"
)

const reportTitle = "Cantones de Costa Rica: población y hospitales"

var exportOpts struct {
	format   string
	out      string
	province string
	canton   string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the filtered canton table as CSV, GeoJSON or PDF",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportOpts.format, "format", "csv", "Output format: csv, geojson or pdf")
	f.StringVar(&exportOpts.out, "out", "", "Output file (default: the dashboard file name; - for stdout)")
	f.StringVar(&exportOpts.province, "province", "", "Only cantons of this province")
	f.StringVar(&exportOpts.canton, "canton", "", "Only this canton")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	log := setup()
	ctx := context.Background()
	validateSources(log)

	switch exportOpts.format {
	case "csv", "geojson", "pdf":
	default:
		log.Error().Str("format", exportOpts.format).Msg("unknown export format (want csv, geojson or pdf)")
		os.Exit(exitcode.UsageError)
	}

	var write func(io.Writer, []dashboard.Row) error
	defaultOut := ""
	sel := dashboard.NewSelection(exportOpts.province, exportOpts.canton)

	store, closeStore := openStore(ctx, log)
	defer closeStore()

	res, err := pipeline.Run(ctx, log, cfg.Sources(), store)
	if err != nil {
		exitForPipeline(log, err)
	}
	districts := dashboard.FilterDistricts(res.Districts, sel)

	switch exportOpts.format {
	case "csv":
		defaultOut = dashboard.CSVFileName
		write = dashboard.WriteCSV
	case "pdf":
		defaultOut = dashboard.PDFFileName
		write = func(w io.Writer, rows []dashboard.Row) error {
			return dashboard.WritePDF(w, reportTitle, rows, dashboard.Summarize(districts))
		}
	case "geojson":
		defaultOut = "cantones.geojson"
		write = func(w io.Writer, _ []dashboard.Row) error {
			return dashboard.WriteGeoJSON(w, dashboard.DistrictFeatures(districts))
		}
	}

	out := exportOpts.out
	if out == "" {
		out = defaultOut
	}
	rows := dashboard.Table(districts)
	if out == "-" {
		err = write(os.Stdout, rows)
	} else {
		err = dashboard.WriteFile(out, func(w io.Writer) error { return write(w, rows) })
	}
	if err != nil {
		log.Error().Err(err).Str("format", exportOpts.format).Str("out", out).Msg("export failed")
		os.Exit(exitcode.ExportError)
	}

	log.Info().
		Str("format", exportOpts.format).
		Str("out", out).
		Int("cantons", len(districts)).
		Msg("export complete")
	if out != "-" {
		fmt.Printf("Wrote %d cantons to %s\n", len(districts), out)
	}
	return nil
}
