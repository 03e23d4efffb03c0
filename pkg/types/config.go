// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// SourceConfig describes the raw observation archive: its file name inside
// the input directory and the names of the variables it exposes.
type SourceConfig struct {
	// FileName is the archive file name (default "Complete_TAVG_LatLong1.nc").
	FileName string `json:"file_name" yaml:"file_name" mapstructure:"file_name" validate:"required"`

	LatitudeVar    string `json:"latitude_var" yaml:"latitude_var" mapstructure:"latitude_var" validate:"required"`
	LongitudeVar   string `json:"longitude_var" yaml:"longitude_var" mapstructure:"longitude_var" validate:"required"`
	TimeVar        string `json:"time_var" yaml:"time_var" mapstructure:"time_var" validate:"required"`
	AnomalyVar     string `json:"anomaly_var" yaml:"anomaly_var" mapstructure:"anomaly_var" validate:"required"`
	ClimatologyVar string `json:"climatology_var" yaml:"climatology_var" mapstructure:"climatology_var" validate:"required"`
}

// ReconstructionConfig holds the time-alignment settings for the
// reconstruction stage.
type ReconstructionConfig struct {
	// SkipMonths is the number of leading monthly records dropped so that
	// the observation record starts where the reference model output
	// starts (default 1200, i.e. 100 years).
	SkipMonths int `json:"skip_months" yaml:"skip_months" mapstructure:"skip_months" validate:"gte=0"`

	// DayOfMonth is the day used for every derived timestamp (default 15).
	DayOfMonth int `json:"day_of_month" yaml:"day_of_month" mapstructure:"day_of_month" validate:"gte=1,lte=28"`
}

// OutputConfig holds settings for the persistence stage.
type OutputConfig struct {
	// ProcessedDir is the base directory for processed data. When no
	// explicit output directory is given, stores are written to
	// ProcessedDir/observation_data.
	ProcessedDir string `json:"processed_dir" yaml:"processed_dir" mapstructure:"processed_dir" validate:"required"`

	// Variable is the name of the temperature data variable (default "mean").
	Variable string `json:"variable" yaml:"variable" mapstructure:"variable" validate:"required"`

	// DatasetStore is the gridded store name (default "historical_obs.zarr").
	DatasetStore string `json:"dataset_store" yaml:"dataset_store" mapstructure:"dataset_store" validate:"required"`

	// MeanStore is the global-mean store name
	// (default "historical_obs_GLOBALMEAN.zarr").
	MeanStore string `json:"mean_store" yaml:"mean_store" mapstructure:"mean_store" validate:"required"`

	// GlobalMean enables the global-mean reduction and its store.
	GlobalMean bool `json:"global_mean" yaml:"global_mean" mapstructure:"global_mean"`

	// Overwrite replaces existing stores instead of failing.
	Overwrite bool `json:"overwrite" yaml:"overwrite" mapstructure:"overwrite"`

	// SpatialChunk is the lat/lon chunk edge for the gridded store (default 10).
	SpatialChunk int `json:"spatial_chunk" yaml:"spatial_chunk" mapstructure:"spatial_chunk" validate:"gte=1"`

	// MeanChunk is the time chunk length for the mean store (default 10).
	MeanChunk int `json:"mean_chunk" yaml:"mean_chunk" mapstructure:"mean_chunk" validate:"gte=1"`

	// CompressionLevel is the zstd level for chunk data (1-22, default 3).
	CompressionLevel int `json:"compression_level" yaml:"compression_level" mapstructure:"compression_level" validate:"gte=1,lte=22"`
}

// CatalogConfig holds settings for the run catalog.
type CatalogConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file (default "data/catalog/runs.db").
	Path string `json:"path" yaml:"path" mapstructure:"path" validate:"required_if=Enabled true"`
}

// MetricsConfig holds settings for run metrics.
type MetricsConfig struct {
	// TextfilePath, when set, receives a Prometheus text-format snapshot
	// of the run's metrics for a node_exporter textfile collector.
	TextfilePath string `json:"textfile_path" yaml:"textfile_path" mapstructure:"textfile_path"`
}

// FetchConfig holds settings for downloading the source archive.
type FetchConfig struct {
	// URL of the source archive.
	URL string `json:"url" yaml:"url" mapstructure:"url" validate:"required,url"`

	// Timeout is the HTTP request timeout (default 10m).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 and 5xx (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Source         SourceConfig         `json:"source" yaml:"source" mapstructure:"source"`
	Reconstruction ReconstructionConfig `json:"reconstruction" yaml:"reconstruction" mapstructure:"reconstruction"`
	Output         OutputConfig         `json:"output" yaml:"output" mapstructure:"output"`
	Catalog        CatalogConfig        `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
	Metrics        MetricsConfig        `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Fetch          FetchConfig          `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Log            LogConfig            `json:"log" yaml:"log" mapstructure:"log"`
}
