package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gyeh/cantonhealth/internal/exitcode"
	"github.com/gyeh/cantonhealth/internal/pipeline"
	"github.com/gyeh/cantonhealth/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard HTTP API",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&cfg.ListenAddr, "addr", "", "Listen address (default :8080, or :$PORT)")
	f.Float64Var(&cfg.SaturationThreshold, "threshold", 0, "Default saturation threshold in inhabitants per hospital")
	f.DurationVar(&cfg.CacheTTL, "cache-ttl", 0, "Recompute the pipeline after this long (0 keeps results until reload)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := setup()
	validateSources(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, log)
	defer closeStore()

	memo := pipeline.NewMemo(log, cfg.CacheTTL, store)
	// Warm the cache so source errors surface at startup.
	if _, err := memo.Get(ctx, cfg.Sources()); err != nil {
		exitForPipeline(log, err)
	}

	if err := server.New(cfg, memo, log).Run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(exitcode.UsageError)
	}
	log.Info().Msg("server stopped")
	return nil
}
