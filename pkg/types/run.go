// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunStatus tracks the outcome of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the catalog record of one pipeline invocation.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Status     RunStatus `json:"status" yaml:"status"`

	InputPath  string `json:"input_path" yaml:"input_path"`
	OutputDir  string `json:"output_dir" yaml:"output_dir"`
	GlobalMean bool   `json:"global_mean" yaml:"global_mean"`
	SkipMonths int    `json:"skip_months" yaml:"skip_months"`

	// Grid shape of the written dataset. Zero until the run succeeds.
	NTime int `json:"n_time" yaml:"n_time"`
	NLat  int `json:"n_lat" yaml:"n_lat"`
	NLon  int `json:"n_lon" yaml:"n_lon"`

	// First and last derived timestamps.
	TimeStart time.Time `json:"time_start,omitempty" yaml:"time_start,omitempty"`
	TimeEnd   time.Time `json:"time_end,omitempty" yaml:"time_end,omitempty"`

	// Error holds the failure message for failed runs.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
