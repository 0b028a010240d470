package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/cantonhealth/internal/exitcode"
	"github.com/gyeh/cantonhealth/internal/model"
	"github.com/gyeh/cantonhealth/internal/normalize"
	"github.com/gyeh/cantonhealth/internal/pipeline"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run: load each source and report format, CRS, columns and aliases",
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := setup()
	ctx := context.Background()
	validateSources(log)

	store, closeStore := openStore(ctx, log)
	defer closeStore()

	src := cfg.Sources()
	failed := false
	fmt.Println("=== cantonmap plan ===")
	for _, layer := range model.LayerNames() {
		_, report, err := pipeline.LoadLayer(ctx, log, src.Ref(layer), layer, store)
		fmt.Println()
		if err != nil {
			failed = true
			fmt.Printf("[%s] %s\n", layer, src.Ref(layer))
			fmt.Printf("  ERROR: %v\n", err)
			continue
		}
		fmt.Printf("[%s] %s\n", layer, report.Source)
		fmt.Printf("  Format:     %s\n", report.Format)
		fmt.Printf("  CRS:        %s\n", report.SourceCRS)
		if report.SHA256 != "" {
			fmt.Printf("  SHA-256:    %s\n", report.SHA256)
		}
		fmt.Printf("  Features:   %d (%d with geometry)\n", report.Features, report.Geometries)
		fmt.Printf("  Columns:    %s\n", strings.Join(report.Columns, ", "))
		if len(report.Renames) > 0 {
			fmt.Println("  Aliases:")
			for _, from := range normalize.SortedKeys(report.Renames) {
				fmt.Printf("    %-24q → %s\n", from, report.Renames[from])
			}
		}
		if len(report.Missing) > 0 {
			fmt.Printf("  Missing:    %s\n", strings.Join(report.Missing, ", "))
		}
	}

	if failed {
		os.Exit(exitcode.LoadError)
	}
	fmt.Println()
	fmt.Println("All sources readable: OK")
	return nil
}
