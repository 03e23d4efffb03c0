// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/obs-wrangler/internal/fetch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the observation archive into the input directory",
	Long: `Fetch downloads the gridded temperature archive (fetch.url, by default
Berkeley Earth Complete_TAVG_LatLong1.nc) into the input directory. An
existing archive is kept unless --force is given. Rate-limit and server
errors are retried with exponential backoff.`,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	inputDir, _ := cmd.Flags().GetString("input-dir")
	force, _ := cmd.Flags().GetBool("force")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dest := filepath.Join(inputDir, cfg.Source.FileName)
	_, err := fetch.New(cfg.Fetch, nil, logger).Fetch(ctx, dest, force, os.Stdout)
	return err
}

func init() {
	fetchCmd.Flags().String("input-dir", "data/raw", "directory to save the archive in")
	fetchCmd.Flags().Bool("force", false, "download even if the archive exists")
	fetchCmd.Flags().String("url", "", "override the archive URL")

	_ = viper.BindPFlag("fetch.url", fetchCmd.Flags().Lookup("url"))

	rootCmd.AddCommand(fetchCmd)
}
