// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "obs_wrangler"

// Pipeline stage labels.
const (
	StageLoad        = "load"
	StageReconstruct = "reconstruct"
	StageAssemble    = "assemble"
	StageWrite       = "write"
)

// Metrics holds the Prometheus gauges and counters for one pipeline run.
// A batch job has no scrape endpoint, so the registry is written out as a
// node_exporter textfile at the end of the run.
type Metrics struct {
	registry *prometheus.Registry

	StageDuration      *prometheus.GaugeVec // labels: stage={load,reconstruct,assemble,write}
	CellsReconstructed prometheus.Counter
	MissingCells       prometheus.Gauge
	TimeSteps          prometheus.Gauge
	LastRunSuccess     prometheus.Gauge
	LastSuccess        prometheus.Gauge
}

// NewMetrics creates all run metrics and registers them with a fresh
// registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage in the last run.",
		}, []string{"stage"}),
		CellsReconstructed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_reconstructed_total",
			Help:      "Grid cells of absolute temperature produced.",
		}),
		MissingCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missing_cells",
			Help:      "Grid cells without a value (NaN) in the last reconstructed field.",
		}),
		TimeSteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "time_steps",
			Help:      "Monthly time steps retained in the last run.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 when the last run succeeded, 0 otherwise.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}

	m.registry.MustRegister(
		m.StageDuration,
		m.CellsReconstructed,
		m.MissingCells,
		m.TimeSteps,
		m.LastRunSuccess,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting returns Metrics backed by their own registry.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveStage records the duration of a stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Set(d.Seconds())
}

// RecordOutcome sets the success gauges. now is used for the last-success
// timestamp.
func (m *Metrics) RecordOutcome(ok bool, now time.Time) {
	if !ok {
		m.LastRunSuccess.Set(0)
		return
	}
	m.LastRunSuccess.Set(1)
	m.LastSuccess.Set(float64(now.Unix()))
}

// WriteTextfile writes the registry in Prometheus text format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}
