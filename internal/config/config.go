// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config builds the validated PipelineConfig from defaults, a
// YAML config file, a .env file and OBS_WRANGLER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pdiddy/obs-wrangler/pkg/types"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use
// underscores: OBS_WRANGLER_OUTPUT_GLOBAL_MEAN sets output.global_mean.
const EnvPrefix = "OBS_WRANGLER"

// DefaultURL is the Berkeley Earth 1-degree land+ocean average temperature
// archive.
const DefaultURL = "https://berkeley-earth-temperature.s3.us-west-1.amazonaws.com/Global/Gridded/Complete_TAVG_LatLong1.nc"

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"source.file_name":       "Complete_TAVG_LatLong1.nc",
		"source.latitude_var":    "latitude",
		"source.longitude_var":   "longitude",
		"source.time_var":        "time",
		"source.anomaly_var":     "temperature",
		"source.climatology_var": "climatology",

		"reconstruction.skip_months":  1200,
		"reconstruction.day_of_month": 15,

		"output.processed_dir":     "data/processed",
		"output.variable":          "mean",
		"output.dataset_store":     "historical_obs.zarr",
		"output.mean_store":        "historical_obs_GLOBALMEAN.zarr",
		"output.global_mean":       true,
		"output.overwrite":         false,
		"output.spatial_chunk":     10,
		"output.mean_chunk":        10,
		"output.compression_level": 3,

		"catalog.enabled": true,
		"catalog.path":    "data/catalog/runs.db",

		"metrics.textfile_path": "",

		"fetch.url":         DefaultURL,
		"fetch.timeout":     10 * time.Minute,
		"fetch.user_agent":  "obs-wrangler",
		"fetch.max_retries": 5,

		"log.level":  "info",
		"log.format": "json",
	}
}

// Configure registers defaults and environment binding on v.
func Configure(v *viper.Viper) {
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load unmarshals v into a PipelineConfig and validates it. v should have
// been prepared with Configure.
func Load(v *viper.Viper) (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return types.PipelineConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return types.PipelineConfig{}, err
	}
	return cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg types.PipelineConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process
// environment without overriding variables that are already set. A
// missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
