// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/obs-wrangler/internal/catalog"
	"github.com/pdiddy/obs-wrangler/internal/pipeline"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Reconstruct absolute temperatures and write the Zarr stores",
	Long: `Process reads the observation archive from the input directory, adds
the monthly climatology back onto the anomalies, rebuilds the time axis,
converts longitudes to 0-360, sorts the grid and writes

  <output-dir>/historical_obs.zarr
  <output-dir>/historical_obs_GLOBALMEAN.zarr   (with --global-mean)

The first --skip-months records (default 1200) are dropped so the series
starts where the model output starts. The output directory defaults to
<processed_dir>/observation_data.`,
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	inputDir, _ := cmd.Flags().GetString("input-dir")
	outputDir, _ := cmd.Flags().GetString("output-dir")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithProgress(os.Stdout),
	}
	if cfg.Catalog.Enabled {
		store, err := catalog.Open(cfg.Catalog)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, pipeline.WithRecorder(store))
	}

	sum, err := pipeline.New(cfg, opts...).Run(ctx, inputDir, outputDir)
	if err != nil {
		return err
	}

	fmt.Printf("\nrun %s: %d months x %d lat x %d lon, %s to %s",
		sum.RunID, sum.NTime, sum.NLat, sum.NLon,
		sum.TimeStart.Format("2006-01-02"), sum.TimeEnd.Format("2006-01-02"))
	if sum.MissingCells > 0 {
		fmt.Printf(", %d missing cells", sum.MissingCells)
	}
	fmt.Println()
	return nil
}

func init() {
	processCmd.Flags().String("input-dir", "data/raw", "directory containing the observation archive")
	processCmd.Flags().String("output-dir", "", "directory for the Zarr stores (default: <processed_dir>/observation_data)")
	processCmd.Flags().Bool("global-mean", true, "also write the global-mean series")
	processCmd.Flags().Int("skip-months", 1200, "leading monthly records to drop (0 keeps all)")
	processCmd.Flags().Bool("overwrite", false, "replace existing stores")

	_ = viper.BindPFlag("output.global_mean", processCmd.Flags().Lookup("global-mean"))
	_ = viper.BindPFlag("reconstruction.skip_months", processCmd.Flags().Lookup("skip-months"))
	_ = viper.BindPFlag("output.overwrite", processCmd.Flags().Lookup("overwrite"))

	rootCmd.AddCommand(processCmd)
}
