// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the obs-wrangler CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/obs-wrangler/internal/config"
	"github.com/pdiddy/obs-wrangler/internal/observability"
	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the validated configuration, loaded before any subcommand runs.
	cfg types.PipelineConfig

	logger = zap.NewNop()
)

// rootCmd is the base command for the obs-wrangler CLI.
var rootCmd = &cobra.Command{
	Use:   "obs-wrangler",
	Short: "Reconstruct gridded temperature observations for model comparison",
	Long: `obs-wrangler turns a gridded temperature-anomaly archive into absolute
monthly temperatures aligned with climate-model output: longitudes in the
0-360 convention, a month-centred time axis, canonical coordinate order, and
an optional unweighted global-mean series. Results are written as Zarr v2
stores.

Use fetch to download the source archive, process to run the pipeline,
inspect to look at a written store, and runs to browse past runs.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		l, err := observability.NewLogger(c.Log)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./obs-wrangler.yaml or ~/.config/obs-wrangler/obs-wrangler.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the environment is read")
}

func initConfig() {
	envFile, _ := rootCmd.PersistentFlags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("obs-wrangler")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "obs-wrangler"))
		}
	}

	config.Configure(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
