package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gyeh/cantonhealth/internal/db"
	"github.com/gyeh/cantonhealth/internal/exitcode"
)

var deleteBatch string

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List staged layer batches, or delete one",
	RunE:  runBatches,
}

func init() {
	batchesCmd.Flags().StringVar(&deleteBatch, "delete", "", "Delete the batch with this ID")
	rootCmd.AddCommand(batchesCmd)
}

func runBatches(cmd *cobra.Command, args []string) error {
	log := setup()
	ctx := context.Background()

	if err := cfg.ValidateDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	defer pool.Close()

	if deleteBatch != "" {
		id, err := uuid.Parse(deleteBatch)
		if err != nil {
			log.Error().Err(err).Msg("invalid batch id")
			os.Exit(exitcode.UsageError)
		}
		n, err := db.DeleteBatch(ctx, pool, id)
		if err != nil {
			log.Error().Err(err).Msg("delete failed")
			os.Exit(exitcode.StageError)
		}
		fmt.Printf("Deleted %d batch(es)\n", n)
		return nil
	}

	batches, err := db.NewStore(pool, log).ListBatches(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list failed")
		os.Exit(exitcode.StageError)
	}
	for _, b := range batches {
		state := "ready"
		if b.FinishedAt == nil {
			state = "partial"
		}
		fmt.Printf("%s  %-12s %-7s %6d features  %s  %s\n",
			b.BatchID, b.Layer, state, b.FeatureCount, b.CreatedAt.Format("2006-01-02 15:04:05"), b.SourcePath)
	}
	return nil
}
