package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/cantonhealth/internal/db"
	"github.com/gyeh/cantonhealth/internal/exitcode"
	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/pipeline"
	"github.com/gyeh/cantonhealth/internal/source"
)

var stageOpts struct {
	layer string
	name  string
	file  string
}

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Copy a source layer into Postgres for later postgres:<name> runs",
	RunE:  runStage,
}

func init() {
	f := stageCmd.Flags()
	f.StringVar(&stageOpts.layer, "layer", "", "Layer kind: "+strings.Join(model.LayerNames(), ", ")+" (required)")
	f.StringVar(&stageOpts.name, "name", "", "Staged layer name (default: the layer kind)")
	f.StringVar(&stageOpts.file, "file", "", "Path to GeoJSON or GeoParquet file (required)")
	_ = stageCmd.MarkFlagRequired("layer")
	_ = stageCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(stageCmd)
}

func runStage(cmd *cobra.Command, args []string) error {
	log := setup()
	ctx := context.Background()

	if err := cfg.ValidateDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	if _, ok := model.LayerByName(stageOpts.layer); !ok {
		log.Error().Str("layer", stageOpts.layer).Strs("want", model.LayerNames()).Msg("unknown layer")
		os.Exit(exitcode.UsageError)
	}
	if !source.IsFile(stageOpts.file) {
		log.Error().Str("file", stageOpts.file).Msg("stage reads files only")
		os.Exit(exitcode.UsageError)
	}
	name := stageOpts.name
	if name == "" {
		name = stageOpts.layer
	}

	l, report, err := pipeline.LoadLayer(ctx, log, stageOpts.file, stageOpts.layer, nil)
	if err != nil {
		exitForPipeline(log, err)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	res, err := db.StageLayer(ctx, pool, log, name, l, db.Origin{
		Path:   report.Source,
		SHA256: report.SHA256,
		CRS:    report.SourceCRS,
	})
	if err != nil {
		log.Error().Err(err).Msg("staging failed")
		os.Exit(exitcode.StageError)
	}

	fmt.Printf("Staged %d features as %s%s (batch %s, %.1fs)\n",
		res.FeaturesStaged, source.PostgresPrefix, name, res.BatchID, res.Duration.Seconds())
	return nil
}
