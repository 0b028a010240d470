package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gyeh/cantonhealth/internal/dashboard"
	"github.com/gyeh/cantonhealth/internal/pipeline"
)

var buildTable bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the pipeline and print a summary",
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildTable, "table", false, "Also print the canton table")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	log := setup()
	ctx := context.Background()
	validateSources(log)

	store, closeStore := openStore(ctx, log)
	defer closeStore()

	res, err := pipeline.Run(ctx, log, cfg.Sources(), store)
	if err != nil {
		exitForPipeline(log, err)
	}

	s := res.Summary
	fmt.Println("=== cantonmap build ===")
	fmt.Printf("Cantons:             %d (%d without a hospital)\n", s.Districts, s.DistrictsNoFacility)
	fmt.Printf("Facilities read:     %d\n", s.FacilitiesRead)
	fmt.Printf("Facilities kept:     %d\n", s.FacilitiesKept)
	fmt.Printf("Facilities joined:   %d (%d outside every canton)\n", s.FacilitiesJoined, s.FacilitiesUnmatched)
	fmt.Printf("Total hospitals:     %d\n", s.TotalHospitals)
	fmt.Printf("Total population:    %d\n", s.TotalPopulation)
	fmt.Printf("Saturated (>= %.0f): %d\n", cfg.SaturationThreshold, len(dashboard.Saturated(res.Districts, cfg.SaturationThreshold)))
	if s.PopulationDuplicates > 0 {
		fmt.Printf("Duplicate names:     %d population rows ignored\n", s.PopulationDuplicates)
	}
	fmt.Printf("Duration:            %.2fs\n", s.DurationTotal.Seconds())
	fmt.Println("Sources:")
	for _, r := range res.Layers {
		fmt.Printf("  %-11s %-10s %-10s %5d features  %s\n", r.Layer, r.Format, r.SourceCRS, r.Features, r.Source)
	}

	if buildTable {
		fmt.Println()
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, strings.Join(dashboard.TableHeaders, "\t")+"\t")
		for _, row := range dashboard.Table(res.Districts) {
			fmt.Fprintln(tw, strings.Join(row.Display(), "\t")+"\t")
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
